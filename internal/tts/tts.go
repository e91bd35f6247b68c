// Package tts turns lesson scripts into speech audio files and manages
// cloned voices with providers that support them.
package tts

import (
	"context"
	"errors"
)

// VoiceConfig selects how a script is spoken.
type VoiceConfig struct {
	Language string  // BCP 47 tag, e.g. "en" or "en-US"
	Speed    float64 // 0.5-2.0, 0 means 1.0
	VoiceID  string  // provider voice id, empty for the provider default
}

// Synthesizer writes speech audio for text to outputPath.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string, voice VoiceConfig, outputPath string) error
}

// VoiceCloner registers and removes voices built from audio samples.
type VoiceCloner interface {
	CloneVoice(ctx context.Context, samplePath, label string) (string, error)
	DeleteVoice(ctx context.Context, voiceID string) error
}

// ErrCloningUnsupported is returned by providers without voice cloning.
var ErrCloningUnsupported = errors.New("voice cloning not supported by this provider")

// SupportsCloning reports whether v can clone voices. Implementations that
// wrap a provider expose CanClone; any other VoiceCloner is assumed capable.
func SupportsCloning(v any) (VoiceCloner, bool) {
	cloner, ok := v.(VoiceCloner)
	if !ok {
		return nil, false
	}
	if c, ok := v.(interface{ CanClone() bool }); ok && !c.CanClone() {
		return nil, false
	}
	return cloner, true
}
