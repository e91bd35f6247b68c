package config

import (
	"fmt"
	"os"
	"os/exec"
)

// LookPath resolves external tool binaries. Tests replace it.
var LookPath = exec.LookPath

// Problems reports non-fatal configuration issues. None of them stop the
// service: each one maps to a degraded mode (mock uploads, fallback renderer).
func (c Config) Problems() []string {
	var problems []string

	if c.AWS.AccessKeyID == "" && c.AWS.SecretKey == "" && c.AWS.SharedProfile == "" {
		problems = append(problems, "AWS credentials not set in environment (S3 uploads will be mocked unless an instance role is available)")
	}

	switch c.TTS.Provider {
	case "elevenlabs":
		if c.TTS.ElevenLabsAPIKey == "" {
			problems = append(problems, "ELEVENLABS_API_KEY not set (speech synthesis and voice cloning will fail)")
		}
	case "google":
		if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			problems = append(problems, "GOOGLE_APPLICATION_CREDENTIALS not set (relying on default Google credentials)")
		}
	}

	if c.Paths.TempDir != "" {
		if err := os.MkdirAll(c.Paths.TempDir, 0o755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create temp directory %s: %v", c.Paths.TempDir, err))
		}
	}
	if c.Paths.LogDir != "" {
		if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory %s: %v", c.Paths.LogDir, err))
		}
	}

	if _, err := LookPath("ffmpeg"); err != nil {
		problems = append(problems, "ffmpeg not found (video rendering falls back to placeholder output)")
	}
	if _, err := LookPath("ffprobe"); err != nil {
		problems = append(problems, "ffprobe not found (durations are decoded or estimated)")
	}

	if c.Render.Renderer == "sadtalker" && c.Render.SadTalkerDir == "" {
		problems = append(problems, "SADTALKER_DIR not set (sadtalker renderer unavailable, ffmpeg composer will be used)")
	}
	return problems
}
