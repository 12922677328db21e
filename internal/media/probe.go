package media

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Metadata struct {
	Duration float64
	Width    int
	Height   int
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe reads duration and video dimensions from the source file.
func Probe(ctx context.Context, worker *Worker, inputPath string) (*Metadata, error) {
	var outb, errb bytes.Buffer

	args := []string{"-i", inputPath, "-print_format", "json", "-show_format", "-show_streams", "-show_error"}

	cmd := exec.CommandContext(ctx, worker.FFprobe, args...)
	cmd.Stdout = &outb
	cmd.Stderr = &errb

	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "ffprobe '%s': %s", inputPath, errb.String())
	}

	return parseMetadata(outb.Bytes())
}

func parseMetadata(data []byte) (*Metadata, error) {
	var out probeOutput

	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "decode ffprobe output")
	}

	meta := &Metadata{}
	meta.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)

	for _, stream := range out.Streams {
		if stream.CodecType == "video" {
			meta.Width = stream.Width
			meta.Height = stream.Height
			break
		}
	}

	return meta, nil
}

var videoExtensions = map[string]bool{
	".avi":  true,
	".flv":  true,
	".m4v":  true,
	".mkv":  true,
	".mov":  true,
	".mp4":  true,
	".mpeg": true,
	".mpg":  true,
	".ogv":  true,
	".ts":   true,
	".webm": true,
}

// DeclaredVideo reports whether the file claims to be a video, judged only by
// its name. No container or codec validation happens here.
func DeclaredVideo(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))

	if videoExtensions[ext] {
		return true
	}

	return strings.HasPrefix(mime.TypeByExtension(ext), "video/")
}
