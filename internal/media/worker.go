package media

import (
	"os/exec"
	"sync"

	"github.com/pkg/errors"
)

// Worker is the resolved media toolchain used to seek and decode source
// frames. It is prepared at most once per process and shared by every job.
type Worker struct {
	FFmpeg  string
	FFprobe string
}

var (
	workerMu sync.Mutex
	worker   *Worker

	lookPath = exec.LookPath
)

// EnsureWorkerReady resolves the ffmpeg and ffprobe executables and caches
// the handles for the rest of the session. Idempotent: once prepared, later
// calls return the cached worker without touching the system again. A failed
// attempt leaves the state unprepared, so calling again acts as a manual
// retry; there is no automatic retry or backoff.
func EnsureWorkerReady() (*Worker, error) {
	workerMu.Lock()
	defer workerMu.Unlock()

	if worker != nil {
		return worker, nil
	}

	ffmpeg, err := lookPath("ffmpeg")

	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg not available")
	}

	ffprobe, err := lookPath("ffprobe")

	if err != nil {
		return nil, errors.Wrap(err, "ffprobe not available")
	}

	worker = &Worker{FFmpeg: ffmpeg, FFprobe: ffprobe}

	return worker, nil
}
