// Package gifenc assembles sampled frames into an animated GIF. A Job owns
// one conversion: frames go in one at a time, Render finalizes submission and
// encodes asynchronously, and the caller observes progress and completion
// through callbacks.
package gifenc

import (
	"bytes"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"

	"github.com/pkg/errors"

	"gifforge/internal/media"
)

var (
	// ErrNotReady means the job was created before the worker toolchain was
	// prepared, see media.EnsureWorkerReady.
	ErrNotReady = errors.New("encoder worker not ready")

	ErrRendered = errors.New("job already rendering")
	ErrNoFrames = errors.New("no frames submitted")
)

type Config struct {
	// Worker is the prepared toolchain handle. Jobs cannot be created
	// without one.
	Worker *media.Worker

	Width  int
	Height int

	// Loop true repeats the animation forever, false plays it once.
	Loop bool

	// Workers is the encoder parallelism for frame quantization.
	Workers int
}

type Result struct {
	Data []byte
	Size int64
}

// Job is a single conversion. Frames must be submitted by one goroutine, in
// display order, strictly before Render.
type Job struct {
	cfg      Config
	frames   []*image.RGBA
	delays   []int // 1/100s per frame, gif wire units
	rendered bool

	// OnProgress receives encode-phase fractions in [0,1], zero or more
	// times. OnComplete fires exactly once with the artifact; after that the
	// job is terminal. Set both before Render.
	OnProgress func(fraction float64)
	OnComplete func(res *Result)
	OnError    func(err error)
}

func NewJob(cfg Config) (*Job, error) {
	if cfg.Worker == nil {
		return nil, ErrNotReady
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Errorf("invalid target size %dx%d", cfg.Width, cfg.Height)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	return &Job{cfg: cfg}, nil
}

// repeat maps the loop flag to the GIF loop count: 0 repeats forever, -1
// plays once.
func (j *Job) repeat() int {
	if j.cfg.Loop {
		return 0
	}

	return -1
}

// AddFrame appends one frame with its display duration in milliseconds. The
// pixel buffer is copied before return; the caller may reuse it.
func (j *Job) AddFrame(img image.Image, delayMS int) error {
	if j.rendered {
		return ErrRendered
	}

	b := img.Bounds()
	cp := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(cp, cp.Bounds(), img, b.Min, draw.Src)

	j.frames = append(j.frames, cp)
	j.delays = append(j.delays, (delayMS+5)/10)

	return nil
}

func (j *Job) Frames() int {
	return len(j.frames)
}

// Render finalizes frame submission and starts the asynchronous encode. No
// further AddFrame calls are valid afterward. The outcome arrives through
// OnComplete or OnError.
func (j *Job) Render() error {
	if j.rendered {
		return ErrRendered
	}

	j.rendered = true

	go j.render(j.frames, j.delays)

	return nil
}

func (j *Job) render(frames []*image.RGBA, delays []int) {
	if len(frames) == 0 {
		j.fail(ErrNoFrames)
		return
	}

	paletted := make([]*image.Paletted, len(frames))

	workers := j.cfg.Workers

	if workers > len(frames) {
		workers = len(frames)
	}

	todo := make(chan int)
	done := make(chan int)

	for w := 0; w < workers; w++ {
		go func() {
			for i := range todo {
				paletted[i] = quantize(frames[i])
				done <- i
			}
		}()
	}

	go func() {
		for i := range frames {
			todo <- i
		}
		close(todo)
	}()

	for n := 1; n <= len(frames); n++ {
		<-done
		j.progress(float64(n) / float64(len(frames)))
	}

	out := &gif.GIF{
		Image:     paletted,
		Delay:     delays,
		LoopCount: j.repeat(),
	}

	var buf bytes.Buffer

	if err := gif.EncodeAll(&buf, out); err != nil {
		j.fail(errors.Wrap(err, "gif encode"))
		return
	}

	if j.OnComplete != nil {
		j.OnComplete(&Result{Data: buf.Bytes(), Size: int64(buf.Len())})
	}
}

func (j *Job) progress(fraction float64) {
	if j.OnProgress != nil {
		j.OnProgress(fraction)
	}
}

func (j *Job) fail(err error) {
	if j.OnError != nil {
		j.OnError(err)
	}
}

func quantize(src *image.RGBA) *image.Paletted {
	dst := image.NewPaletted(src.Bounds(), palette.Plan9)
	draw.FloydSteinberg.Draw(dst, src.Bounds(), src, src.Bounds().Min)
	return dst
}
