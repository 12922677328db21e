package autoscaler

import (
	"context"
	"testing"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gifforge/internal/metric"
)

type fakeMetric struct {
	added []metric.Metric
}

func (f *fakeMetric) Add(m metric.Metric) {
	f.added = append(f.added, m)
}

func (f *fakeMetric) Send(metrics ...*influxdb2.Point) {
}

func (f *fakeMetric) Ticker(ctx context.Context, duration time.Duration) {
}

func TestObserveInstances(t *testing.T) {
	client := &fakeMetric{}
	as := autoscaler{metric: client}

	instancesMetric := as.observeInstances("gifforge-workers")

	require.Len(t, client.added, 1)
	assert.Equal(t, metric.Metric(instancesMetric), client.added[0])

	instancesMetric.Gauge = 3

	point := instancesMetric.Metric()
	assert.Equal(t, "gifforge_autoscaler_instances", point.Name())

	tags := make(map[string]string)
	for _, tag := range point.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{"group": "gifforge-workers"}, tags)

	fields := make(map[string]interface{})
	for _, field := range point.FieldList() {
		fields[field.Key] = field.Value
	}
	assert.Equal(t, map[string]interface{}{"gauge": float64(3)}, fields)
}
