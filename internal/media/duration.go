package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hajimehoshi/go-mp3"
)

// CharsPerMinute is the speaking rate used when the audio cannot be measured.
const CharsPerMinute = 150

// Duration sources, reported alongside the measured value.
const (
	SourceProbe    = "ffprobe"
	SourceDecode   = "mp3"
	SourceEstimate = "estimate"
)

// ProbeDuration asks ffprobe for the container duration in seconds.
func (t Tools) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, t.ffprobe(),
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("ffprobe %s: unparseable duration %q", path, strings.TrimSpace(string(out)))
	}
	return secs, nil
}

// DecodeMP3Duration decodes an MP3 file and derives its length from the PCM
// sample count. go-mp3 always emits 16-bit stereo, so 4 bytes per sample.
func DecodeMP3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	d, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("decode mp3 %s: %w", path, err)
	}
	if d.SampleRate() <= 0 || d.Length() <= 0 {
		return 0, fmt.Errorf("decode mp3 %s: no audio frames", path)
	}
	return float64(d.Length()) / 4 / float64(d.SampleRate()), nil
}

// EstimateDuration converts script length to seconds at CharsPerMinute.
func EstimateDuration(script string) float64 {
	chars := utf8.RuneCountInString(script)
	return round2(float64(chars) / CharsPerMinute * 60)
}

// Duration measures audio at path, preferring ffprobe, then MP3 decoding,
// then the script estimate. It never fails.
func (t Tools) Duration(ctx context.Context, path, script string) (float64, string) {
	if path != "" {
		if secs, err := t.ProbeDuration(ctx, path); err == nil {
			return round2(secs), SourceProbe
		}
		if strings.HasSuffix(strings.ToLower(path), ".mp3") {
			if secs, err := DecodeMP3Duration(path); err == nil {
				return round2(secs), SourceDecode
			}
		}
	}
	return EstimateDuration(script), SourceEstimate
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
