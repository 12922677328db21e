package watcher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gifforge/internal/queue"
)

type fakeDB struct {
	key        string
	data       string
	expiration time.Duration
}

func (f *fakeDB) Get(key string) (string, error) {
	return f.data, nil
}

func (f *fakeDB) Set(key string, data string, expiration time.Duration) error {
	f.key = key
	f.data = data
	f.expiration = expiration
	return nil
}

func (f *fakeDB) Delete(key string) error {
	return nil
}

type fakeBucket struct {
	deleted []string
}

func (f *fakeBucket) Get(key string) ([]byte, error) {
	return nil, nil
}

func (f *fakeBucket) Store(key string, data []byte) error {
	return nil
}

func (f *fakeBucket) Delete(key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func TestHandleResponseDone(t *testing.T) {
	db := &fakeDB{}
	bucket := &fakeBucket{}
	w := watcher{db: db, bucket: bucket}

	err := w.HandleResponse(queue.ConvertResponse{
		UID:    "abc123",
		Source: "abc123/source.mp4",
		Output: "abc123/converted.gif",
		Size:   1024,
		Frames: 42,
	})

	require.NoError(t, err)
	assert.Equal(t, "abc123.status", db.key)
	assert.Equal(t, 24*time.Hour, db.expiration)

	var status JobStatus
	require.NoError(t, json.Unmarshal([]byte(db.data), &status))

	assert.Equal(t, "done", status.State)
	assert.Equal(t, "abc123/converted.gif", status.Output)
	assert.Equal(t, 42, status.Frames)

	// the uploaded source is released once the job is done
	assert.Equal(t, []string{"abc123/source.mp4"}, bucket.deleted)
}

func TestHandleResponseFailed(t *testing.T) {
	db := &fakeDB{}
	bucket := &fakeBucket{}
	w := watcher{db: db, bucket: bucket}

	err := w.HandleResponse(queue.ConvertResponse{
		UID:    "abc123",
		Source: "abc123/source.mp4",
		Error:  "probe input: no such file",
	})

	require.NoError(t, err)

	var status JobStatus
	require.NoError(t, json.Unmarshal([]byte(db.data), &status))

	assert.Equal(t, "failed", status.State)
	assert.Equal(t, "probe input: no such file", status.Error)

	// failed jobs keep their source for inspection
	assert.Empty(t, bucket.deleted)
}
