// Package media wraps the ffmpeg and ffprobe command-line tools and the
// audio duration helpers built on them.
package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Audio constants shared by every ffmpeg invocation.
const (
	AudioBitrate    = "192k"
	AudioSampleRate = "44100"
)

// Tools locates the external media binaries.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

// DefaultTools resolves ffmpeg and ffprobe from PATH.
func DefaultTools() Tools {
	return Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
}

// FFmpegAvailable reports whether the ffmpeg binary can be found.
func (t Tools) FFmpegAvailable() bool {
	_, err := exec.LookPath(t.ffmpeg())
	return err == nil
}

// IsUnavailable reports whether err means a binary or script is missing.
func IsUnavailable(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// Run executes ffmpeg with args. Stderr is captured into the error.
func (t Tools) Run(ctx context.Context, args ...string) error {
	return run(ctx, t.ffmpeg(), args...)
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", filepath.Base(name), ctx.Err())
		}
		return fmt.Errorf("%s failed: %w\n%s", filepath.Base(name), err, tail(stderr.String(), 2000))
	}
	return nil
}

// AdjustTempo re-times the audio at path by speed using the atempo filter.
// The result is written to a sibling file and renamed over path, so a failed
// pass never leaves a half-written container behind.
func (t Tools) AdjustTempo(ctx context.Context, path string, speed float64) error {
	if speed < 0.5 || speed > 2.0 {
		return fmt.Errorf("atempo speed %.2f outside 0.5-2.0", speed)
	}
	tmp := TempoPath(path)
	err := t.Run(ctx,
		"-i", path,
		"-filter:a", "atempo="+strconv.FormatFloat(speed, 'f', -1, 64),
		"-b:a", AudioBitrate,
		"-y",
		tmp,
	)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("adjust tempo: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace audio after tempo pass: %w", err)
	}
	return nil
}

// TempoPath returns the sibling path used during AdjustTempo. The extension is
// kept so ffmpeg selects the same muxer.
func TempoPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".tempo" + ext
}

// VerifyOutput checks that path exists and is not empty.
func VerifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output file is empty")
	}
	return nil
}

func (t Tools) ffmpeg() string {
	if t.FFmpeg == "" {
		return "ffmpeg"
	}
	return t.FFmpeg
}

func (t Tools) ffprobe() string {
	if t.FFprobe == "" {
		return "ffprobe"
	}
	return t.FFprobe
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
