package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// VideoTranscoder shrinks videos with an external ffmpeg binary.
type VideoTranscoder struct {
	FFmpegPath string // defaults to "ffmpeg" on PATH
	MaxHeight  int    // output height cap, aspect ratio preserved
	Bitrate    string // target video bitrate, e.g. "1M"
}

// Compress transcodes src to H.264/AAC MP4. The result is rejected with
// ErrNotSmaller if it does not save space.
func (v VideoTranscoder) Compress(ctx context.Context, src []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "pairchat-video-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out.mp4")
	if err := os.WriteFile(in, src, 0o600); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, v.binary(), v.args(in, out)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.Bytes()))
	}

	result, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	if len(result) == 0 || len(result) >= len(src) {
		return nil, ErrNotSmaller
	}
	return result, nil
}

func (v VideoTranscoder) binary() string {
	if v.FFmpegPath == "" {
		return "ffmpeg"
	}
	return v.FFmpegPath
}

func (v VideoTranscoder) args(in, out string) []string {
	height := v.MaxHeight
	if height <= 0 {
		height = 720
	}
	bitrate := v.Bitrate
	if bitrate == "" {
		bitrate = "1M"
	}
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-vf", "scale=-2:'min(" + strconv.Itoa(height) + ",ih)'",
		"-c:v", "libx264", "-preset", "veryfast", "-b:v", bitrate,
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		out,
	}
}

func lastLine(b []byte) string {
	b = bytes.TrimSpace(b)
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	}
	return string(b)
}
