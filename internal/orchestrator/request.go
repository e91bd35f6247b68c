package orchestrator

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
)

const (
	DefaultLanguage = "en"
	DefaultSpeed    = 1.0
	MinSpeed        = 0.5
	MaxSpeed        = 2.0
)

// VoiceOptions selects the voice for a request.
type VoiceOptions struct {
	Language       string   `json:"language,omitempty"`
	Speed          *float64 `json:"speed,omitempty"`
	VoiceSampleURL string   `json:"voice_sample_url,omitempty"`
	VoiceID        string   `json:"voice_id,omitempty"`
}

// GenerationRequest is the body of POST /generate-video.
type GenerationRequest struct {
	Script       string       `json:"script"`
	AvatarURL    string       `json:"avatar_url"`
	VoiceOptions VoiceOptions `json:"voice_options"`
	LessonID     string       `json:"lesson_id,omitempty"`
	UseTavus     bool         `json:"use_tavus,omitempty"`
}

// LanguageTag returns the requested language or DefaultLanguage.
func (r GenerationRequest) LanguageTag() string {
	if l := strings.TrimSpace(r.VoiceOptions.Language); l != "" {
		return l
	}
	return DefaultLanguage
}

// Speed returns the requested speed or DefaultSpeed.
func (r GenerationRequest) Speed() float64 {
	if r.VoiceOptions.Speed == nil {
		return DefaultSpeed
	}
	return *r.VoiceOptions.Speed
}

// DecodeRequest parses a request body.
func DecodeRequest(payload []byte) (GenerationRequest, error) {
	var req GenerationRequest
	if len(bytes.TrimSpace(payload)) == 0 {
		return req, invalid("body", "No JSON data provided")
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, invalid("body", "Invalid JSON body")
	}
	return req, nil
}

// Limits are the request bounds enforced by Validate.
type Limits struct {
	MaxScriptLength    int
	SupportedLanguages []string
}

// Validate trims req and checks it against limits. It returns the
// normalized request.
func Validate(req GenerationRequest, limits Limits) (GenerationRequest, error) {
	req.Script = strings.TrimSpace(req.Script)
	req.AvatarURL = strings.TrimSpace(req.AvatarURL)
	req.VoiceOptions.VoiceSampleURL = strings.TrimSpace(req.VoiceOptions.VoiceSampleURL)
	req.VoiceOptions.VoiceID = strings.TrimSpace(req.VoiceOptions.VoiceID)

	if req.Script == "" {
		return req, invalid("script", "Script text is required")
	}
	if utf8.RuneCountInString(req.Script) > limits.MaxScriptLength {
		return req, invalid("script", "Script too long (max %d characters)", limits.MaxScriptLength)
	}

	if req.AvatarURL == "" {
		return req, invalid("avatar_url", "Avatar URL is required")
	}
	if !isHTTPURL(req.AvatarURL) {
		return req, invalid("avatar_url", "Avatar URL must be a valid HTTP/HTTPS URL")
	}
	if s := req.VoiceOptions.VoiceSampleURL; s != "" && !isHTTPURL(s) {
		return req, invalid("voice_sample_url", "Voice sample URL must be a valid HTTP/HTTPS URL")
	}

	lang := PrimaryLanguage(req.LanguageTag())
	if !slices.Contains(limits.SupportedLanguages, lang) {
		return req, invalid("language", "Language '%s' not supported. Supported: %s",
			lang, strings.Join(limits.SupportedLanguages, ", "))
	}

	speed := req.Speed()
	if !(speed >= MinSpeed && speed <= MaxSpeed) {
		return req, invalid("speed", "Voice speed must be between 0.5 and 2.0")
	}
	return req, nil
}

// PrimaryLanguage returns the lower-case primary subtag of a BCP 47 tag,
// so "en-US", "EN" and "en_GB" all yield "en".
// Only an explicit subtag counts: "und-Cyrl" yields "und", never an inferred
// "ru", and deprecated codes such as "iw" are not canonicalized.
func PrimaryLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if t, err := language.Parse(tag); err == nil {
		if base, conf := t.Base(); conf == language.Exact && explicitBase(tag, base.String()) {
			return base.String()
		}
	}
	primary, _, _ := strings.Cut(strings.ReplaceAll(tag, "_", "-"), "-")
	return strings.ToLower(primary)
}

// explicitBase reports whether base is literally the first subtag of tag.
func explicitBase(tag, base string) bool {
	primary, _, _ := strings.Cut(strings.ReplaceAll(tag, "_", "-"), "-")
	return strings.EqualFold(primary, base)
}

func isHTTPURL(s string) bool {
	lower := strings.ToLower(s)
	return (strings.HasPrefix(lower, "http://") && len(s) > len("http://")) ||
		(strings.HasPrefix(lower, "https://") && len(s) > len("https://"))
}
