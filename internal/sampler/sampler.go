// Package sampler walks a video source along evenly spaced timestamps and
// feeds the captured frames, in order, to an encode job.
package sampler

import (
	"context"
	"image"
	"runtime"

	"github.com/pkg/errors"
)

type State int

const (
	Idle State = iota
	Seeking
	Capturing
	Exhausted
	RenderTriggered
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Seeking:
		return "seeking"
	case Capturing:
		return "capturing"
	case Exhausted:
		return "exhausted"
	case RenderTriggered:
		return "render-triggered"
	}

	return "unknown"
}

// Source yields the frame displayed at a given timestamp (seconds).
type Source interface {
	Frame(ctx context.Context, ts float64) (image.Image, error)
}

// Driver receives frames in strictly increasing timestamp order, then a
// single Render call once sampling is exhausted. *gifenc.Job satisfies this.
type Driver interface {
	AddFrame(img image.Image, delayMS int) error
	Render() error
}

// ErrSuperseded is returned when a newer job took over mid-run. The sampler
// stops before its next submission and never triggers a render.
var ErrSuperseded = errors.New("sampler superseded by a newer job")

type Config struct {
	// Duration is the source length in seconds; sampling never reaches it.
	Duration float64

	// Interval is the gap between sampled timestamps, the reciprocal of the
	// sample rate.
	Interval float64

	// MaxFrames caps the number of samples regardless of duration.
	MaxFrames int

	// DelayMS is the display duration submitted with every frame.
	DelayMS int

	// OnProgress receives the capture fraction in [0,1] after each frame.
	OnProgress func(fraction float64)

	// Superseded is polled at the top of every cycle; returning true stops
	// the run silently.
	Superseded func() bool
}

type Sampler struct {
	source Source
	driver Driver
	cfg    Config

	state State
	n     int
}

func New(source Source, driver Driver, cfg Config) *Sampler {
	return &Sampler{source: source, driver: driver, cfg: cfg}
}

func (s *Sampler) State() State {
	return s.state
}

// Frames is the number of samples submitted so far.
func (s *Sampler) Frames() int {
	return s.n
}

func (s *Sampler) target() float64 {
	return float64(s.n) * s.cfg.Interval
}

// Progress is the fraction of the source duration sampled so far.
func (s *Sampler) Progress() float64 {
	if s.cfg.Duration <= 0 {
		return 1
	}

	p := s.target() / s.cfg.Duration

	if p > 1 {
		return 1
	}

	return p
}

// Run drives the sampler from Idle to RenderTriggered. It yields between
// samples so a long capture run cannot monopolize the scheduler, and
// re-checks supersession and cancellation before every seek.
func (s *Sampler) Run(ctx context.Context) error {
	if s.state != Idle {
		return errors.Errorf("sampler started twice, state %s", s.state)
	}

	for {
		if s.cfg.Superseded != nil && s.cfg.Superseded() {
			return ErrSuperseded
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if s.n >= s.cfg.MaxFrames || s.target() >= s.cfg.Duration {
			s.state = Exhausted
			break
		}

		s.state = Seeking
		ts := s.target()

		img, err := s.source.Frame(ctx, ts)

		if err != nil {
			return errors.Wrapf(err, "seek to %.3fs", ts)
		}

		s.state = Capturing

		if err := s.driver.AddFrame(img, s.cfg.DelayMS); err != nil {
			return errors.Wrapf(err, "submit frame %d", s.n)
		}

		s.n++

		if s.cfg.OnProgress != nil {
			s.cfg.OnProgress(s.Progress())
		}

		runtime.Gosched()
	}

	s.state = RenderTriggered

	if err := s.driver.Render(); err != nil {
		return errors.Wrap(err, "trigger render")
	}

	return nil
}
