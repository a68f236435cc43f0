package remux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFmpeg invocation constants. The remux copies codec streams and fixes
// AAC bitstream framing; nothing is re-encoded.
const (
	DefaultFFmpegCommand = "ffmpeg"
	AudioBitstreamFilter = "aac_adtstoasc"
)

// Remuxer repackages a concatenated transport-stream file into a target
// container. Implementations must treat the tool as a black box: it either
// succeeds or fails deterministically.
type Remuxer interface {
	// Available reports whether the external tool can be invoked at all.
	Available() bool

	// Remux repackages src into dst without re-encoding.
	Remux(ctx context.Context, src, dst string) error
}

// FFmpeg is the production Remuxer backed by the ffmpeg binary.
type FFmpeg struct {
	command string
}

// NewFFmpeg creates a remuxer using the given ffmpeg path, or the binary
// found on PATH when path is empty.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = DefaultFFmpegCommand
	}
	return &FFmpeg{command: path}
}

// Available reports whether the configured ffmpeg binary resolves.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.command)
	return err == nil
}

// BuildArgs builds the ffmpeg argument list for a copy remux.
func (f *FFmpeg) BuildArgs(src, dst string) []string {
	return []string{
		"-y",
		"-i", src,
		"-c", "copy",
		"-bsf:a", AudioBitstreamFilter,
		dst,
	}
}

// Remux runs ffmpeg. On failure the first stderr line is carried in the
// returned error so the cause is visible without raising the log level.
func (f *FFmpeg) Remux(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, f.command, f.BuildArgs(src, dst)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg remux failed: %w: %s", err, firstLine(stderr.String()))
	}
	return nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return "unknown error"
}
