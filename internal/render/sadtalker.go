package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// SadTalker runs the SadTalker neural lip-sync model as a subprocess.
// Any failure of the model (missing checkout, crash, no output) is reported
// as ErrUnavailable so the chain falls back to a simpler renderer.
type SadTalker struct {
	Dir    string // SadTalker checkout containing inference.py
	Python string
}

func (s SadTalker) Name() string { return "sadtalker" }

func (s SadTalker) script() string { return filepath.Join(s.Dir, "inference.py") }

// Available reports whether the SadTalker checkout is present.
func (s SadTalker) Available() bool {
	if s.Dir == "" {
		return false
	}
	_, err := os.Stat(s.script())
	return err == nil
}

func (s SadTalker) Render(ctx context.Context, imagePath, audioPath, outputPath string) error {
	if !s.Available() {
		return fmt.Errorf("%w: sadtalker inference.py not found", ErrUnavailable)
	}

	absImage, err := filepath.Abs(imagePath)
	if err != nil {
		return err
	}
	absAudio, err := filepath.Abs(audioPath)
	if err != nil {
		return err
	}
	absOut, err := filepath.Abs(outputPath)
	if err != nil {
		return err
	}

	// Results go next to the output so they share the job's scratch namespace.
	resultDir := strings.TrimSuffix(absOut, filepath.Ext(absOut)) + "_sadtalker"
	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		return fmt.Errorf("create sadtalker result dir: %w", err)
	}
	defer os.RemoveAll(resultDir)

	python := s.Python
	if python == "" {
		python = "python3"
	}
	cmd := exec.CommandContext(ctx, python, s.script(),
		"--driven_audio", absAudio,
		"--source_image", absImage,
		"--result_dir", resultDir,
		"--still",
		"--preprocess", "full",
		"--verbose",
	)
	cmd.Dir = s.Dir
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("sadtalker: %w", ctx.Err())
		}
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return fmt.Errorf("%w: sadtalker failed: %v\n%s", ErrUnavailable, err, lastLines(stderr.String(), 20))
	}

	found, err := findVideo(resultDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return moveFile(found, absOut)
}

// findVideo returns the newest .mp4 below dir. SadTalker writes into a
// timestamped subdirectory, or directly into dir for some versions.
func findVideo(dir string) (string, error) {
	var newest string
	var newestMod time.Time
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".mp4") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest, newestMod = path, info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan sadtalker results: %w", err)
	}
	if newest == "" {
		return "", fmt.Errorf("sadtalker completed but no output file found")
	}
	return newest, nil
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read sadtalker output: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write video: %w", err)
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
