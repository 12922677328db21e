package pipeline

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetHeight(t *testing.T) {
	cases := []struct {
		width, srcW, srcH int
		want              int
	}{
		{480, 1920, 1080, 270}, // 16:9
		{480, 1280, 720, 270},
		{320, 640, 480, 240}, // 4:3
		{480, 1000, 333, 160},
		{100, 100, 100, 100},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, targetHeight(tc.width, tc.srcW, tc.srcH))
	}
}

func TestFrameDelayMS(t *testing.T) {
	assert.Equal(t, 100, frameDelayMS(10))
	assert.Equal(t, 42, frameDelayMS(24))
	assert.Equal(t, 1000, frameDelayMS(1))
	assert.Equal(t, 67, frameDelayMS(15))
}

func TestSizeMB(t *testing.T) {
	assert.Equal(t, "1.50", (&Result{Size: 1536 * 1024}).SizeMB())
	assert.Equal(t, "0.00", (&Result{}).SizeMB())
	assert.Equal(t, "2.00", (&Result{Size: 2 << 20}).SizeMB())
}

func TestConvertRejectsBadSpec(t *testing.T) {
	c := NewConverter()

	_, err := c.Convert(context.Background(), Spec{Input: "in.mp4", Width: 0, Rate: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "width")

	_, err = c.Convert(context.Background(), Spec{Input: "in.mp4", Width: 480, Rate: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate")
}

func TestSupersede(t *testing.T) {
	c := NewConverter()

	// the sampler's stop condition, built the way Convert builds it
	epoch := atomic.AddUint64(&c.epoch, 1)
	superseded := func() bool {
		return atomic.LoadUint64(&c.epoch) != epoch
	}

	assert.False(t, superseded())

	c.Supersede()
	assert.True(t, superseded())

	// a job started after the takeover is current again
	epoch = atomic.AddUint64(&c.epoch, 1)
	assert.False(t, superseded())
}

func TestConvertRejectsNonVideo(t *testing.T) {
	c := NewConverter()

	// rejected synchronously at selection time, before any bootstrap or probe
	_, err := c.Convert(context.Background(), Spec{Input: "notes.txt", Width: 480, Rate: 10})

	assert.Equal(t, ErrUnsupportedInput, errors.Cause(err))
}
