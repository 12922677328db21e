// Package pipeline runs one complete video to GIF conversion: input
// validation, toolchain bootstrap, source probe, frame sampling and the
// asynchronous encode, reporting the two phases separately.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"gifforge/internal/gifenc"
	"gifforge/internal/media"
	"gifforge/internal/sampler"
)

const (
	// DefaultMaxFrames caps sampling on long sources so memory stays bounded
	// whatever the duration.
	DefaultMaxFrames = 300

	// encodeWorkers is the encoder parallelism hint, fixed for this
	// application.
	encodeWorkers = 2

	largeInputBytes = int64(256) << 20
	longDurationSec = 300.0
)

var ErrUnsupportedInput = errors.New("input is not a video file")

// ErrSuperseded mirrors the sampler's: the conversion was taken over by a
// newer one and produced nothing.
var ErrSuperseded = sampler.ErrSuperseded

type Phase string

const (
	PhaseCapture Phase = "capture"
	PhaseEncode  Phase = "encode"
)

type Spec struct {
	Input string

	// Width of the produced GIF in pixels; height follows the source aspect
	// ratio.
	Width int

	// Rate is sampled frames per second of source video.
	Rate float64

	Loop      bool
	MaxFrames int
}

type Result struct {
	Data   []byte
	Size   int64
	Frames int
	Width  int
	Height int
}

// SizeMB renders the artifact size in megabytes with two decimals.
func (r *Result) SizeMB() string {
	return fmt.Sprintf("%.2f", float64(r.Size)/(1024*1024))
}

type Converter struct {
	epoch uint64

	// OnProgress receives fractions in [0,1] for each phase. The capture and
	// encode phases are sequential and reported under distinct labels; they
	// must not be folded into one percentage.
	OnProgress func(phase Phase, fraction float64)

	// LogWriter receives subprocess command lines and stderr, defaults to
	// discard.
	LogWriter io.Writer
}

func NewConverter() *Converter {
	return &Converter{LogWriter: ioutil.Discard}
}

// Supersede invalidates any in-flight conversion. Its sampler stops before
// the next submission and its result is discarded.
func (c *Converter) Supersede() {
	atomic.AddUint64(&c.epoch, 1)
}

// Convert runs one job to completion. Calling Convert again while a previous
// call is still in flight supersedes the old job: the stale sampler detects
// the epoch change and stops without submitting further frames.
func (c *Converter) Convert(ctx context.Context, spec Spec) (*Result, error) {
	if spec.Width <= 0 {
		return nil, errors.New("width must be a positive integer")
	}

	if spec.Rate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}

	if spec.MaxFrames <= 0 {
		spec.MaxFrames = DefaultMaxFrames
	}

	if !media.DeclaredVideo(spec.Input) {
		return nil, ErrUnsupportedInput
	}

	worker, err := media.EnsureWorkerReady()

	if err != nil {
		return nil, errors.Wrap(err, "worker bootstrap")
	}

	meta, err := media.Probe(ctx, worker, spec.Input)

	if err != nil {
		return nil, errors.Wrap(err, "probe input")
	}

	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, errors.New("source has no usable video stream")
	}

	if meta.Duration <= 0 {
		return nil, errors.New("source has no duration")
	}

	c.advise(spec.Input, meta)

	height := targetHeight(spec.Width, meta.Width, meta.Height)
	epoch := atomic.AddUint64(&c.epoch, 1)

	job, err := gifenc.NewJob(gifenc.Config{
		Worker:  worker,
		Width:   spec.Width,
		Height:  height,
		Loop:    spec.Loop,
		Workers: encodeWorkers,
	})

	if err != nil {
		return nil, err
	}

	done := make(chan *gifenc.Result, 1)
	fail := make(chan error, 1)

	job.OnProgress = func(fraction float64) {
		c.report(PhaseEncode, fraction)
	}
	job.OnComplete = func(res *gifenc.Result) {
		done <- res
	}
	job.OnError = func(err error) {
		fail <- err
	}

	src := media.NewFrameSource(worker, spec.Input, spec.Width, height, c.LogWriter)

	smp := sampler.New(src, job, sampler.Config{
		Duration:  meta.Duration,
		Interval:  1 / spec.Rate,
		MaxFrames: spec.MaxFrames,
		DelayMS:   frameDelayMS(spec.Rate),
		OnProgress: func(fraction float64) {
			c.report(PhaseCapture, fraction)
		},
		Superseded: func() bool {
			return atomic.LoadUint64(&c.epoch) != epoch
		},
	})

	if err := smp.Run(ctx); err != nil {
		return nil, err
	}

	select {
	case res := <-done:
		if atomic.LoadUint64(&c.epoch) != epoch {
			return nil, ErrSuperseded
		}

		return &Result{
			Data:   res.Data,
			Size:   res.Size,
			Frames: smp.Frames(),
			Width:  spec.Width,
			Height: height,
		}, nil
	case err := <-fail:
		return nil, errors.Wrap(err, "encode")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Converter) report(phase Phase, fraction float64) {
	if c.OnProgress != nil {
		c.OnProgress(phase, fraction)
	}
}

// advise warns about inputs likely to produce slow jobs or heavy artifacts.
// Advisory only, nothing is enforced.
func (c *Converter) advise(input string, meta *media.Metadata) {
	if fi, err := os.Stat(input); err == nil && fi.Size() > largeInputBytes {
		log.WithFields(log.Fields{
			"input": input,
			"size":  fi.Size(),
		}).Warn("large input file, conversion may be slow")
	}

	if meta.Duration > longDurationSec {
		log.WithFields(log.Fields{
			"input":    input,
			"duration": meta.Duration,
		}).Warn("long source video, frame cap will truncate the result")
	}
}

// targetHeight derives the GIF height from the requested width and the
// source aspect ratio, rounded to the nearest integer.
func targetHeight(width, srcWidth, srcHeight int) int {
	return int(math.Round(float64(width) * float64(srcHeight) / float64(srcWidth)))
}

// frameDelayMS is the per-frame display duration, the reciprocal of the
// sample rate.
func frameDelayMS(rate float64) int {
	return int(math.Round(1000 / rate))
}
