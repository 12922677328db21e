package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const probeJSON = `{
	"streams": [
		{
			"codec_type": "audio",
			"codec_name": "aac"
		},
		{
			"codec_type": "video",
			"codec_name": "h264",
			"width": 1920,
			"height": 1080
		}
	],
	"format": {
		"filename": "input.mp4",
		"duration": "12.345600"
	}
}`

func TestParseMetadata(t *testing.T) {
	meta, err := parseMetadata([]byte(probeJSON))

	require.NoError(t, err)
	assert.InDelta(t, 12.3456, meta.Duration, 1e-9)
	assert.Equal(t, 1920, meta.Width)
	assert.Equal(t, 1080, meta.Height)
}

func TestParseMetadataNoVideoStream(t *testing.T) {
	meta, err := parseMetadata([]byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"3.5"}}`))

	require.NoError(t, err)
	assert.Equal(t, 0, meta.Width)
	assert.Equal(t, 0, meta.Height)
	assert.InDelta(t, 3.5, meta.Duration, 1e-9)
}

func TestParseMetadataGarbage(t *testing.T) {
	_, err := parseMetadata([]byte("not json"))

	assert.Error(t, err)
}

func TestDeclaredVideo(t *testing.T) {
	cases := map[string]bool{
		"movie.mp4":        true,
		"movie.MP4":        true,
		"clip.webm":        true,
		"old.avi":          true,
		"trailer.mov":      true,
		"notes.txt":        false,
		"image.png":        false,
		"archive.tar.gz":   false,
		"noextension":      false,
		"/tmp/a/movie.mkv": true,
	}

	for path, want := range cases {
		assert.Equal(t, want, DeclaredVideo(path), path)
	}
}
