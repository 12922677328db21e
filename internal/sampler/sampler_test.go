package sampler_test

import (
	"context"
	"image"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gifforge/internal/sampler"
)

type fakeSource struct {
	seeks []float64
	err   error
}

func (f *fakeSource) Frame(ctx context.Context, ts float64) (image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.seeks = append(f.seeks, ts)

	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

type fakeDriver struct {
	frames  int
	delays  []int
	renders int
	addErr  error
}

func (f *fakeDriver) AddFrame(img image.Image, delayMS int) error {
	if f.addErr != nil {
		return f.addErr
	}

	f.frames++
	f.delays = append(f.delays, delayMS)

	return nil
}

func (f *fakeDriver) Render() error {
	f.renders++
	return nil
}

func run(t *testing.T, duration, rate float64, maxFrames int) (*fakeSource, *fakeDriver, *sampler.Sampler) {
	t.Helper()

	src := &fakeSource{}
	drv := &fakeDriver{}

	smp := sampler.New(src, drv, sampler.Config{
		Duration:  duration,
		Interval:  1 / rate,
		MaxFrames: maxFrames,
		DelayMS:   100,
	})

	require.NoError(t, smp.Run(context.Background()))

	return src, drv, smp
}

func TestSampleCount(t *testing.T) {
	cases := []struct {
		name      string
		duration  float64
		rate      float64
		maxFrames int
	}{
		{"two seconds at 10fps", 2, 10, 300},
		{"fractional tail", 2.05, 10, 300},
		{"one second at 1fps", 1, 1, 300},
		{"short clip", 0.5, 1, 300},
		{"cap reached exactly", 30, 10, 300},
		{"cap truncates long video", 120, 10, 300},
		{"high rate", 3, 24, 300},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, drv, _ := run(t, tc.duration, tc.rate, tc.maxFrames)

			want := int(math.Ceil(tc.duration * tc.rate))

			if want > tc.maxFrames {
				want = tc.maxFrames
			}

			assert.Equal(t, want, drv.frames)
		})
	}
}

func TestTimestampsOrdered(t *testing.T) {
	src, drv, smp := run(t, 3, 10, 300)

	require.Equal(t, drv.frames, len(src.seeks))
	assert.Equal(t, drv.frames, smp.Frames())

	for i, ts := range src.seeks {
		assert.InDelta(t, float64(i)/10, ts, 1e-9)
		assert.Less(t, ts, 3.0)

		if i > 0 {
			assert.Greater(t, ts, src.seeks[i-1])
		}
	}
}

func TestRenderTriggeredOnce(t *testing.T) {
	_, drv, smp := run(t, 2, 10, 300)

	assert.Equal(t, 1, drv.renders)
	assert.Equal(t, sampler.RenderTriggered, smp.State())
}

func TestFrameCap(t *testing.T) {
	// any duration >= 30s at 10fps must yield exactly 300 frames
	_, drv, _ := run(t, 45, 10, 300)

	assert.Equal(t, 300, drv.frames)
}

func TestSuperseded(t *testing.T) {
	src := &fakeSource{}
	drv := &fakeDriver{}

	smp := sampler.New(src, drv, sampler.Config{
		Duration:  10,
		Interval:  0.1,
		MaxFrames: 300,
		DelayMS:   100,
		Superseded: func() bool {
			return drv.frames >= 3
		},
	})

	err := smp.Run(context.Background())

	assert.Equal(t, sampler.ErrSuperseded, err)
	assert.Equal(t, 3, drv.frames)
	assert.Equal(t, 0, drv.renders, "a superseded sampler must never trigger a render")
}

func TestContextCancelled(t *testing.T) {
	src := &fakeSource{}
	drv := &fakeDriver{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	smp := sampler.New(src, drv, sampler.Config{Duration: 10, Interval: 0.1, MaxFrames: 300})

	err := smp.Run(ctx)

	assert.Equal(t, context.Canceled, errors.Cause(err))
	assert.Equal(t, 0, drv.renders)
}

func TestSourceErrorPropagates(t *testing.T) {
	src := &fakeSource{err: errors.New("seek stalled")}
	drv := &fakeDriver{}

	smp := sampler.New(src, drv, sampler.Config{Duration: 10, Interval: 0.1, MaxFrames: 300})

	err := smp.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "seek stalled")
	assert.Equal(t, 0, drv.renders)
}

func TestDriverErrorPropagates(t *testing.T) {
	src := &fakeSource{}
	drv := &fakeDriver{addErr: errors.New("job already rendering")}

	smp := sampler.New(src, drv, sampler.Config{Duration: 10, Interval: 0.1, MaxFrames: 300})

	err := smp.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "submit frame")
}

func TestRunTwice(t *testing.T) {
	_, _, smp := run(t, 1, 10, 300)

	assert.Error(t, smp.Run(context.Background()))
}

func TestProgress(t *testing.T) {
	var progress []float64

	src := &fakeSource{}
	drv := &fakeDriver{}

	smp := sampler.New(src, drv, sampler.Config{
		Duration:  2,
		Interval:  0.1,
		MaxFrames: 300,
		DelayMS:   100,
		OnProgress: func(fraction float64) {
			progress = append(progress, fraction)
		},
	})

	require.NoError(t, smp.Run(context.Background()))
	require.Equal(t, drv.frames, len(progress))

	for i, p := range progress {
		assert.LessOrEqual(t, p, 1.0)

		if i > 0 {
			assert.GreaterOrEqual(t, p, progress[i-1])
		}
	}

	assert.InDelta(t, 1.0, progress[len(progress)-1], 1e-9)
}
