package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/apresai/talkinghead/internal/media"
)

// TempoAdjuster re-times an audio file in place.
type TempoAdjuster interface {
	AdjustTempo(ctx context.Context, path string, speed float64) error
}

// Speech adapts a Provider to the Synthesizer and VoiceCloner contracts:
// it normalizes text, retries transient provider failures, writes the audio
// file and applies speeds the provider cannot render natively.
type Speech struct {
	provider Provider
	tempo    TempoAdjuster
	logger   *slog.Logger
}

func NewSpeech(provider Provider, tempo TempoAdjuster, logger *slog.Logger) *Speech {
	return &Speech{
		provider: provider,
		tempo:    tempo,
		logger:   logger.With("component", "tts", "provider", provider.Name()),
	}
}

func (s *Speech) Name() string { return s.provider.Name() }

func (s *Speech) Synthesize(ctx context.Context, text string, voice VoiceConfig, outputPath string) error {
	text = NormalizeText(text)
	if text == "" {
		return errors.New("nothing to synthesize")
	}

	speed := voice.Speed
	if speed == 0 {
		speed = 1.0
	}
	lo, hi := s.provider.SpeedRange()
	native := speed >= lo && speed <= hi

	req := Request{Text: text, VoiceID: voice.VoiceID, Language: voice.Language, Speed: 1.0}
	if native {
		req.Speed = speed
	}

	var result AudioResult
	err := WithRetry(ctx, func() error {
		var err error
		result, err = s.provider.Synthesize(ctx, req)
		if err != nil {
			var retryable *RetryableError
			if errors.As(err, &retryable) {
				s.logger.WarnContext(ctx, "Retrying synthesis", "status", retryable.StatusCode)
			}
		}
		return err
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, result.Data, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}

	if !native {
		if s.tempo == nil {
			return fmt.Errorf("speed %.2f needs a tempo pass but none is configured", speed)
		}
		err := s.tempo.AdjustTempo(ctx, outputPath, speed)
		switch {
		case media.IsUnavailable(err):
			s.logger.WarnContext(ctx, "ffmpeg unavailable, keeping audio at native speed", "requested_speed", speed, "error", err)
			speed = req.Speed
		case err != nil:
			return err
		default:
			s.logger.DebugContext(ctx, "Applied tempo post-process", "speed", speed)
		}
	}

	s.logger.InfoContext(ctx, "Synthesized speech", "chars", len(text), "bytes", len(result.Data), "speed", speed, "native_speed", native)
	return nil
}

// CanClone reports whether the provider manages cloned voices.
func (s *Speech) CanClone() bool {
	_, ok := s.provider.(VoiceCloner)
	return ok
}

func (s *Speech) CloneVoice(ctx context.Context, samplePath, label string) (string, error) {
	cloner, ok := s.provider.(VoiceCloner)
	if !ok {
		return "", ErrCloningUnsupported
	}
	return cloner.CloneVoice(ctx, samplePath, label)
}

func (s *Speech) DeleteVoice(ctx context.Context, voiceID string) error {
	cloner, ok := s.provider.(VoiceCloner)
	if !ok {
		return ErrCloningUnsupported
	}
	return cloner.DeleteVoice(ctx, voiceID)
}

func (s *Speech) Close() error { return s.provider.Close() }
