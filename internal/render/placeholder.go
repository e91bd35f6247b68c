package render

import (
	"context"
	"fmt"
	"os"
)

// placeholderMP4 is a bare ftyp box: a valid but empty MP4 container.
var placeholderMP4 = []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")

// Placeholder writes a minimal MP4 container. It ignores the inputs and the
// context so it can run even after the render budget is spent.
type Placeholder struct{}

func (Placeholder) Name() string { return "placeholder" }

func (Placeholder) Render(_ context.Context, _, _, outputPath string) error {
	if err := os.WriteFile(outputPath, placeholderMP4, 0o644); err != nil {
		return fmt.Errorf("write placeholder video: %w", err)
	}
	return nil
}
