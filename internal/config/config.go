// Package config loads and validates the talkinghead service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	ServiceName = "talkinghead"

	DefaultPort              = 5001
	DefaultMaxConcurrentJobs = 5
	DefaultMaxFileSize       = 100 * 1024 * 1024
	DefaultMaxScriptLength   = 10000
	DefaultRequestTimeout    = 180 * time.Second
	DefaultFetchTimeout      = 30 * time.Second
	DefaultSynthesisTimeout  = 60 * time.Second
	DefaultRenderTimeout     = 300 * time.Second
	DefaultPublishTimeout    = 120 * time.Second
	DefaultVideoFPS          = 25
	DefaultVideoQuality      = "medium"
	DefaultAudioBitrate      = "192k"
	DefaultRateLimitRequests = 100
	DefaultRateLimitWindow   = time.Hour
	DefaultRegion            = "us-east-1"
	DefaultBucket            = "talkinghead-assets"
	DefaultTTSProvider       = "elevenlabs"
	DefaultRenderer          = "sadtalker"
	DefaultTavusURL          = "https://tavusapi.com/v2/replicas"
)

// DefaultLanguages is the primary-subtag set accepted in voice_options.language.
var DefaultLanguages = []string{"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh"}

// Seconds is a duration stored as whole seconds in TOML and the environment.
type Seconds int

func (s Seconds) Duration() time.Duration { return time.Duration(s) * time.Second }

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port              int     `toml:"port"`
	RateLimitRequests int     `toml:"rate_limit_requests"`
	RateLimitWindow   Seconds `toml:"rate_limit_window"`
}

// LimitsConfig bounds admitted work.
type LimitsConfig struct {
	MaxConcurrentJobs  int      `toml:"max_concurrent_jobs"`
	MaxFileSize        int64    `toml:"max_file_size"`
	MaxScriptLength    int      `toml:"max_script_length"`
	SupportedLanguages []string `toml:"supported_languages"`
	RequestTimeout     Seconds  `toml:"request_timeout"`
	FetchTimeout       Seconds  `toml:"fetch_timeout"`
	SynthesisTimeout   Seconds  `toml:"synthesis_timeout"`
	RenderTimeout      Seconds  `toml:"render_timeout"`
	PublishTimeout     Seconds  `toml:"publish_timeout"`
}

// AWSConfig covers S3 publishing, job history and secrets.
type AWSConfig struct {
	Region        string `toml:"region"`
	Bucket        string `toml:"bucket"`
	CDNBaseURL    string `toml:"cdn_base_url"`
	HistoryTable  string `toml:"history_table"`
	SecretPrefix  string `toml:"secret_prefix"`
	AccessKeyID   string `toml:"-"`
	SecretKey     string `toml:"-"`
	SharedProfile string `toml:"-"`
}

// TTSConfig selects and configures the speech synthesizer.
type TTSConfig struct {
	Provider          string `toml:"provider"`
	ElevenLabsAPIKey  string `toml:"-"`
	ElevenLabsVoiceID string `toml:"elevenlabs_voice_id"`
	ElevenLabsModelID string `toml:"elevenlabs_model_id"`
	GoogleVoice       string `toml:"google_voice"`
	PollyVoice        string `toml:"polly_voice"`
	PollyEngine       string `toml:"polly_engine"`
}

// RenderConfig selects the renderer and encoder settings.
type RenderConfig struct {
	Renderer        string `toml:"renderer"`
	SadTalkerDir    string `toml:"sadtalker_dir"`
	SadTalkerPython string `toml:"sadtalker_python"`
	VideoFPS        int    `toml:"video_fps"`
	VideoQuality    string `toml:"video_quality"`
	AudioBitrate    string `toml:"audio_bitrate"`
}

// TavusConfig enables the hosted rendering path.
type TavusConfig struct {
	APIKey string `toml:"-"`
	APIURL string `toml:"api_url"`
}

// PathsConfig holds scratch and log directories.
type PathsConfig struct {
	TempDir string `toml:"temp_dir"`
	LogDir  string `toml:"log_dir"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig `toml:"server"`
	Limits LimitsConfig `toml:"limits"`
	AWS    AWSConfig    `toml:"aws"`
	TTS    TTSConfig    `toml:"tts"`
	Render RenderConfig `toml:"render"`
	Tavus  TavusConfig  `toml:"tavus"`
	Paths  PathsConfig  `toml:"paths"`
	Log    LogConfig    `toml:"log"`
}

// Default returns a Config populated with production defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:              DefaultPort,
			RateLimitRequests: DefaultRateLimitRequests,
			RateLimitWindow:   Seconds(DefaultRateLimitWindow / time.Second),
		},
		Limits: LimitsConfig{
			MaxConcurrentJobs:  DefaultMaxConcurrentJobs,
			MaxFileSize:        DefaultMaxFileSize,
			MaxScriptLength:    DefaultMaxScriptLength,
			SupportedLanguages: append([]string(nil), DefaultLanguages...),
			RequestTimeout:     Seconds(DefaultRequestTimeout / time.Second),
			FetchTimeout:       Seconds(DefaultFetchTimeout / time.Second),
			SynthesisTimeout:   Seconds(DefaultSynthesisTimeout / time.Second),
			RenderTimeout:      Seconds(DefaultRenderTimeout / time.Second),
			PublishTimeout:     Seconds(DefaultPublishTimeout / time.Second),
		},
		AWS: AWSConfig{
			Region: DefaultRegion,
			Bucket: DefaultBucket,
		},
		TTS: TTSConfig{
			Provider:    DefaultTTSProvider,
			PollyEngine: "neural",
		},
		Render: RenderConfig{
			Renderer:        DefaultRenderer,
			SadTalkerPython: "python3",
			VideoFPS:        DefaultVideoFPS,
			VideoQuality:    DefaultVideoQuality,
			AudioBitrate:    DefaultAudioBitrate,
		},
		Tavus: TavusConfig{
			APIURL: DefaultTavusURL,
		},
		Paths: PathsConfig{
			TempDir: filepath.Join(os.TempDir(), ServiceName),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate normalizes list values and rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Limits.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("config: max_concurrent_jobs must be positive, got %d", c.Limits.MaxConcurrentJobs)
	}
	if c.Limits.MaxFileSize <= 0 {
		return fmt.Errorf("config: max_file_size must be positive, got %d", c.Limits.MaxFileSize)
	}
	if c.Limits.MaxScriptLength <= 0 {
		return fmt.Errorf("config: max_script_length must be positive, got %d", c.Limits.MaxScriptLength)
	}

	langs := make([]string, 0, len(c.Limits.SupportedLanguages))
	for _, l := range c.Limits.SupportedLanguages {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		return fmt.Errorf("config: supported_languages must not be empty")
	}
	c.Limits.SupportedLanguages = langs

	for name, s := range map[string]Seconds{
		"request_timeout":   c.Limits.RequestTimeout,
		"fetch_timeout":     c.Limits.FetchTimeout,
		"synthesis_timeout": c.Limits.SynthesisTimeout,
		"render_timeout":    c.Limits.RenderTimeout,
		"publish_timeout":   c.Limits.PublishTimeout,
		"rate_limit_window": c.Server.RateLimitWindow,
	} {
		if s <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", name, s)
		}
	}

	c.TTS.Provider = strings.ToLower(c.TTS.Provider)
	switch c.TTS.Provider {
	case "elevenlabs", "google", "polly":
	default:
		return fmt.Errorf("config: unknown tts provider %q: choose elevenlabs, google, or polly", c.TTS.Provider)
	}

	c.Render.Renderer = strings.ToLower(c.Render.Renderer)
	switch c.Render.Renderer {
	case "sadtalker", "ffmpeg", "placeholder":
	default:
		return fmt.Errorf("config: unknown renderer %q: choose sadtalker, ffmpeg, or placeholder", c.Render.Renderer)
	}

	if _, ok := QualityPresets[c.Render.VideoQuality]; !ok {
		return fmt.Errorf("config: unknown video quality %q: choose low, medium, or high", c.Render.VideoQuality)
	}
	if c.Render.VideoFPS <= 0 {
		return fmt.Errorf("config: video_fps must be positive, got %d", c.Render.VideoFPS)
	}

	if c.Log.Format != "" && c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("config: log format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// QualityPreset holds the ffmpeg encoder settings for a quality level.
type QualityPreset struct {
	Preset string
	CRF    string
	Size   int
}

// QualityPresets maps VIDEO_QUALITY values to encoder settings.
var QualityPresets = map[string]QualityPreset{
	"low":    {Preset: "fast", CRF: "28", Size: 256},
	"medium": {Preset: "medium", CRF: "23", Size: 512},
	"high":   {Preset: "slow", CRF: "18", Size: 1024},
}

// Quality returns the encoder preset for the configured quality.
func (c Config) Quality() QualityPreset {
	if p, ok := QualityPresets[c.Render.VideoQuality]; ok {
		return p
	}
	return QualityPresets[DefaultVideoQuality]
}
