package tts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/apresai/talkinghead/internal/config"
)

// AudioFormat represents the audio encoding returned by a provider.
type AudioFormat string

const (
	FormatMP3 AudioFormat = "mp3"
	FormatWAV AudioFormat = "wav"
)

// Request is a single synthesis call.
type Request struct {
	Text     string
	VoiceID  string
	Language string
	Speed    float64
}

// AudioResult is the output of a synthesis call.
type AudioResult struct {
	Data   []byte
	Format AudioFormat
}

// Provider is a remote speech backend.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (AudioResult, error)
	// SpeedRange is the speed window the backend applies natively.
	// Speeds outside it are applied afterwards with ffmpeg.
	SpeedRange() (min, max float64)
	Close() error
}

// Retry constants shared by all providers.
const (
	defaultMaxAttempts  = 3
	defaultBackoffMulti = 2
	defaultMaxBackoff   = 10 * time.Second
)

// initialBackoff is a variable so tests can shorten it.
var initialBackoff = 1 * time.Second

// RetryableError signals that the operation can be retried.
type RetryableError struct {
	StatusCode int
	Body       string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// APIError is a non-retryable provider response. StatusCode is propagated
// to HTTP callers of voice cleanup.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// WithRetry executes fn with exponential backoff on RetryableError.
func WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= defaultMaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var retryable *RetryableError
		if !errors.As(err, &retryable) {
			return err
		}
		lastErr = err

		if attempt < defaultMaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= time.Duration(defaultBackoffMulti)
			if backoff > defaultMaxBackoff {
				backoff = defaultMaxBackoff
			}
		}
	}

	return lastErr
}

// NewProvider creates the provider selected by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.TTSConfig, awsCfg aws.Config) (Provider, error) {
	switch cfg.Provider {
	case "elevenlabs":
		return NewElevenLabsProvider(cfg), nil
	case "google":
		return NewGoogleProvider(ctx, cfg.GoogleVoice)
	case "polly":
		return NewPollyProvider(awsCfg, cfg.PollyVoice, cfg.PollyEngine), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose elevenlabs, google, or polly", cfg.Provider)
	}
}
