package root

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gifforge/internal/metric"
)

func TestGetComponentDefaultsToNullMetric(t *testing.T) {
	cmpt := GetComponent(false, false, false, false)

	require.NotNil(t, cmpt.Metric)
	assert.IsType(t, &metric.Null{}, cmpt.Metric)

	assert.Nil(t, cmpt.DB)
	assert.Nil(t, cmpt.Channel)
	assert.Nil(t, cmpt.Bucket)
}
