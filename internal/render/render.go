// Package render turns a still avatar image and a speech track into a video.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/apresai/talkinghead/internal/media"
)

// ErrUnavailable marks a renderer that cannot produce output in this
// environment. The chain moves on to the next renderer.
var ErrUnavailable = errors.New("renderer unavailable")

// Renderer combines an image and an audio file into a video at outputPath.
type Renderer interface {
	Name() string
	Render(ctx context.Context, imagePath, audioPath, outputPath string) error
}

// Stage is one renderer in a Chain with its wall-clock budget.
type Stage struct {
	Renderer Renderer
	Timeout  time.Duration
}

// Chain tries each stage in order and ends with a placeholder, so a video
// artifact is always produced unless a renderer fails for a non-environmental
// reason (a corrupt input, for example).
type Chain struct {
	stages []Stage
	final  Renderer
	logger *slog.Logger
}

// NewChain builds a chain. The placeholder renderer is always appended.
func NewChain(logger *slog.Logger, stages ...Stage) *Chain {
	return &Chain{
		stages: stages,
		final:  Placeholder{},
		logger: logger.With("component", "render"),
	}
}

// Names lists the renderers in the order they are attempted.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.stages)+1)
	for _, s := range c.stages {
		names = append(names, s.Renderer.Name())
	}
	return append(names, c.final.Name())
}

// Render runs the chain and returns the name of the renderer that produced
// outputPath.
func (c *Chain) Render(ctx context.Context, imagePath, audioPath, outputPath string) (string, error) {
	for _, s := range c.stages {
		name := s.Renderer.Name()
		if ctx.Err() != nil {
			c.logger.WarnContext(ctx, "Render budget exhausted, skipping renderer", "renderer", name)
			continue
		}

		rctx := ctx
		cancel := func() {}
		if s.Timeout > 0 {
			rctx, cancel = context.WithTimeout(ctx, s.Timeout)
		}
		start := time.Now()
		err := s.Renderer.Render(rctx, imagePath, audioPath, outputPath)
		timedOut := errors.Is(rctx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			if verr := media.VerifyOutput(outputPath); verr != nil {
				err = fmt.Errorf("%w: %s produced no output: %v", ErrUnavailable, name, verr)
			} else {
				c.logger.InfoContext(ctx, "Rendered video", "renderer", name, "elapsed", time.Since(start).Round(time.Millisecond))
				return name, nil
			}
		}

		if timedOut || degradable(err) {
			os.Remove(outputPath)
			c.logger.WarnContext(ctx, "Renderer unavailable, falling back", "renderer", name, "timed_out", timedOut, "error", err)
			continue
		}
		os.Remove(outputPath)
		return "", fmt.Errorf("%s: %w", name, err)
	}

	if err := c.final.Render(ctx, imagePath, audioPath, outputPath); err != nil {
		return "", fmt.Errorf("%s: %w", c.final.Name(), err)
	}
	c.logger.WarnContext(ctx, "Produced placeholder video", "renderer", c.final.Name())
	return c.final.Name(), nil
}

func degradable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		media.IsUnavailable(err) ||
		errors.Is(err, context.DeadlineExceeded)
}
