package media

import (
	"context"
	"fmt"
	"image"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"gifforge/internal/executor"
)

// DefaultSeekTimeout bounds a single frame extraction. A source whose seek
// never settles (corrupt or unsupported file) fails the job instead of
// stalling it forever.
const DefaultSeekTimeout = 30 * time.Second

// FrameSource extracts single frames from a video file at arbitrary
// timestamps, scaled to the target size. The scale filter performs the
// resize; callers derive the target height from the source aspect ratio.
type FrameSource struct {
	worker *Worker
	exec   *executor.Executor
	input  string
	width  int
	height int

	// Timeout bounds each seek, DefaultSeekTimeout when zero.
	Timeout time.Duration
}

func NewFrameSource(worker *Worker, input string, width, height int, logw io.Writer) *FrameSource {
	return &FrameSource{
		worker: worker,
		exec:   executor.NewExecutor(logw),
		input:  input,
		width:  width,
		height: height,
	}
}

// Frame seeks to ts (seconds) and returns the frame displayed there.
func (f *FrameSource) Frame(ctx context.Context, ts float64) (image.Image, error) {
	timeout := f.Timeout

	if timeout == 0 {
		timeout = DefaultSeekTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := &executor.Cmd{Binary: f.worker.FFmpeg}
	cmd.Add("-hide_banner", "-loglevel", "error")
	cmd.Add("-ss", strconv.FormatFloat(ts, 'f', 3, 64))
	cmd.Add("-i", f.input)
	cmd.Add("-frames:v", "1")
	cmd.Add("-vf", fmt.Sprintf("scale=%d:%d:flags=lanczos", f.width, f.height))
	cmd.Add("-f", "rawvideo", "-pix_fmt", "rgba")
	cmd.Add("pipe:1")

	data, err := f.exec.Capture(ctx, cmd)

	if err != nil {
		return nil, errors.Wrapf(err, "extract frame at %.3fs", ts)
	}

	want := f.width * f.height * 4

	if len(data) != want {
		return nil, errors.Errorf("frame at %.3fs: got %d bytes, want %d", ts, len(data), want)
	}

	return &image.RGBA{
		Pix:    data,
		Stride: f.width * 4,
		Rect:   image.Rect(0, 0, f.width, f.height),
	}, nil
}
