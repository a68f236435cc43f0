package remux

import (
	"strings"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	f := NewFFmpeg("")
	args := f.BuildArgs("/tmp/in.ts", "/tmp/out.mp4")

	joined := strings.Join(args, " ")
	expected := "-y -i /tmp/in.ts -c copy -bsf:a aac_adtstoasc /tmp/out.mp4"
	if joined != expected {
		t.Errorf("args = %q, expected %q", joined, expected)
	}
}

func TestAvailable_MissingBinary(t *testing.T) {
	f := NewFFmpeg("definitely-not-a-real-binary-name")
	if f.Available() {
		t.Error("nonexistent binary must report unavailable")
	}
}

func TestNewFFmpeg_DefaultsCommand(t *testing.T) {
	f := NewFFmpeg("")
	if f.command != DefaultFFmpegCommand {
		t.Errorf("command = %q, expected %q", f.command, DefaultFFmpegCommand)
	}

	f = NewFFmpeg("/opt/ffmpeg/bin/ffmpeg")
	if f.command != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("explicit path not kept: %q", f.command)
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"single line", "single line"},
		{"first\nsecond\nthird", "first"},
		{"  padded  \nrest", "padded"},
		{"", "unknown error"},
	}

	for _, tt := range tests {
		if got := firstLine(tt.input); got != tt.expected {
			t.Errorf("firstLine(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
