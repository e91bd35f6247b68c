package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Loader builds a Config from defaults, .env files, an optional TOML file and
// the process environment, in that order of precedence (environment wins).
// Tests override Lookup to inject deterministic maps.
type Loader struct {
	Lookup     func(string) (string, bool)
	EnvFiles   []string
	ConfigFile string
}

// Load retrieves the configuration and validates it.
func (l Loader) Load() (Config, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	envFiles := l.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	dotenv := readEnvFiles(envFiles)
	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
		if v, ok := dotenv[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
		return "", false
	}

	cfg := Default()

	path := l.ConfigFile
	if path == "" {
		path, _ = get("TALKINGHEAD_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if err := applyEnv(get, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readEnvFiles merges the given dotenv files; missing files are skipped.
func readEnvFiles(files []string) map[string]string {
	merged := make(map[string]string)
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		values, err := godotenv.Read(f)
		if err != nil {
			continue
		}
		for k, v := range values {
			if _, seen := merged[k]; !seen {
				merged[k] = v
			}
		}
	}
	return merged
}

type getter func(string) (string, bool)

func applyEnv(get getter, cfg *Config) error {
	overrideString(get, "AWS_REGION", &cfg.AWS.Region)
	overrideString(get, "S3_BUCKET", &cfg.AWS.Bucket)
	overrideString(get, "CDN_BASE_URL", &cfg.AWS.CDNBaseURL)
	overrideString(get, "DYNAMODB_TABLE", &cfg.AWS.HistoryTable)
	overrideString(get, "SECRET_PREFIX", &cfg.AWS.SecretPrefix)
	overrideString(get, "AWS_ACCESS_KEY_ID", &cfg.AWS.AccessKeyID)
	overrideString(get, "AWS_SECRET_ACCESS_KEY", &cfg.AWS.SecretKey)
	overrideString(get, "AWS_PROFILE", &cfg.AWS.SharedProfile)

	overrideString(get, "TTS_PROVIDER", &cfg.TTS.Provider)
	overrideString(get, "ELEVENLABS_API_KEY", &cfg.TTS.ElevenLabsAPIKey)
	overrideString(get, "ELEVENLABS_VOICE_ID", &cfg.TTS.ElevenLabsVoiceID)
	overrideString(get, "ELEVENLABS_MODEL_ID", &cfg.TTS.ElevenLabsModelID)
	overrideString(get, "GOOGLE_TTS_VOICE", &cfg.TTS.GoogleVoice)
	overrideString(get, "POLLY_VOICE", &cfg.TTS.PollyVoice)
	overrideString(get, "POLLY_ENGINE", &cfg.TTS.PollyEngine)

	overrideString(get, "RENDERER", &cfg.Render.Renderer)
	overrideString(get, "SADTALKER_DIR", &cfg.Render.SadTalkerDir)
	overrideString(get, "SADTALKER_PYTHON", &cfg.Render.SadTalkerPython)
	overrideString(get, "VIDEO_QUALITY", &cfg.Render.VideoQuality)
	overrideString(get, "AUDIO_BITRATE", &cfg.Render.AudioBitrate)

	overrideString(get, "TAVUS_API_KEY", &cfg.Tavus.APIKey)
	overrideString(get, "TAVUS_API_URL", &cfg.Tavus.APIURL)

	overrideString(get, "TEMP_DIR", &cfg.Paths.TempDir)
	overrideString(get, "LOG_DIR", &cfg.Paths.LogDir)
	overrideString(get, "LOG_LEVEL", &cfg.Log.Level)
	overrideString(get, "LOG_FORMAT", &cfg.Log.Format)

	if v, ok := get("SUPPORTED_LANGUAGES"); ok {
		cfg.Limits.SupportedLanguages = strings.Split(v, ",")
	}

	ints := []struct {
		key    string
		target *int
	}{
		{"PORT", &cfg.Server.Port},
		{"RATE_LIMIT_REQUESTS", &cfg.Server.RateLimitRequests},
		{"MAX_CONCURRENT_JOBS", &cfg.Limits.MaxConcurrentJobs},
		{"MAX_SCRIPT_LENGTH", &cfg.Limits.MaxScriptLength},
		{"VIDEO_FPS", &cfg.Render.VideoFPS},
	}
	for _, o := range ints {
		if err := overrideInt(get, o.key, o.target); err != nil {
			return err
		}
	}

	if v, ok := get("MAX_FILE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: MAX_FILE_SIZE must be an integer: %w", err)
		}
		cfg.Limits.MaxFileSize = n
	}

	secs := []struct {
		key    string
		target *Seconds
	}{
		{"RATE_LIMIT_WINDOW", &cfg.Server.RateLimitWindow},
		{"REQUEST_TIMEOUT", &cfg.Limits.RequestTimeout},
		{"FETCH_TIMEOUT", &cfg.Limits.FetchTimeout},
		{"SYNTHESIS_TIMEOUT", &cfg.Limits.SynthesisTimeout},
		{"RENDER_TIMEOUT", &cfg.Limits.RenderTimeout},
		{"PUBLISH_TIMEOUT", &cfg.Limits.PublishTimeout},
	}
	for _, o := range secs {
		var n int
		if err := overrideInt(get, o.key, &n); err != nil {
			return err
		}
		if n != 0 {
			*o.target = Seconds(n)
		}
	}
	return nil
}

func overrideString(get getter, key string, target *string) {
	if v, ok := get(key); ok {
		*target = v
	}
}

func overrideInt(get getter, key string, target *int) error {
	v, ok := get(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	*target = n
	return nil
}
