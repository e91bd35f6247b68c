package render

import (
	"context"
	"fmt"
	"strconv"

	"github.com/apresai/talkinghead/internal/config"
	"github.com/apresai/talkinghead/internal/media"
)

// FFmpeg composes a static-image video: the avatar is looped for the length
// of the audio and letterboxed into a square frame.
type FFmpeg struct {
	Tools        media.Tools
	Quality      config.QualityPreset
	FPS          int
	AudioBitrate string
}

func (f FFmpeg) Name() string { return "ffmpeg" }

func (f FFmpeg) Render(ctx context.Context, imagePath, audioPath, outputPath string) error {
	if !f.Tools.FFmpegAvailable() {
		return fmt.Errorf("%w: ffmpeg not found", ErrUnavailable)
	}
	return f.Tools.Run(ctx, f.Args(imagePath, audioPath, outputPath)...)
}

// Args returns the ffmpeg argument list for one render.
func (f FFmpeg) Args(imagePath, audioPath, outputPath string) []string {
	size := f.Quality.Size
	if size <= 0 {
		size = config.QualityPresets[config.DefaultVideoQuality].Size
	}
	fps := f.FPS
	if fps <= 0 {
		fps = config.DefaultVideoFPS
	}
	bitrate := f.AudioBitrate
	if bitrate == "" {
		bitrate = media.AudioBitrate
	}
	preset := f.Quality.Preset
	if preset == "" {
		preset = "medium"
	}
	crf := f.Quality.CRF
	if crf == "" {
		crf = "23"
	}

	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2", size, size, size, size)
	return []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", crf,
		"-r", strconv.Itoa(fps),
		"-c:a", "aac",
		"-b:a", bitrate,
		"-pix_fmt", "yuv420p",
		"-vf", scale,
		"-shortest",
		"-movflags", "+faststart",
		outputPath,
	}
}
