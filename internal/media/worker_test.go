package media

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetWorker(t *testing.T) {
	t.Helper()

	orig := lookPath

	workerMu.Lock()
	worker = nil
	workerMu.Unlock()

	t.Cleanup(func() {
		workerMu.Lock()
		worker = nil
		workerMu.Unlock()

		lookPath = orig
	})
}

func TestEnsureWorkerReadyIdempotent(t *testing.T) {
	resetWorker(t)

	lookups := 0
	lookPath = func(file string) (string, error) {
		lookups++
		return "/usr/bin/" + file, nil
	}

	first, err := EnsureWorkerReady()
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "/usr/bin/ffmpeg", first.FFmpeg)
	assert.Equal(t, "/usr/bin/ffprobe", first.FFprobe)
	assert.Equal(t, 2, lookups)

	second, err := EnsureWorkerReady()
	require.NoError(t, err)
	assert.True(t, first == second)
	assert.Equal(t, 2, lookups, "a prepared worker must not be resolved again")
}

func TestEnsureWorkerReadyRetryAfterFailure(t *testing.T) {
	resetWorker(t)

	failing := true
	lookPath = func(file string) (string, error) {
		if failing {
			return "", errors.Errorf("%s not found", file)
		}

		return "/opt/ffmpeg/" + file, nil
	}

	_, err := EnsureWorkerReady()
	require.Error(t, err)

	// a failed bootstrap leaves the state unprepared, so the next call is a
	// fresh attempt
	failing = false

	w, err := EnsureWorkerReady()
	require.NoError(t, err)
	assert.Equal(t, "/opt/ffmpeg/ffmpeg", w.FFmpeg)
}
