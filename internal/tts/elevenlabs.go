package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apresai/talkinghead/internal/config"
)

const (
	ElevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel

	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsModelID      = "eleven_flash_v2_5"
	elevenLabsOutputFormat = "mp3_44100_128"
	elevenLabsMinSpeed     = 0.7
	elevenLabsMaxSpeed     = 1.2
)

// ErrMissingAPIKey is returned when a provider call needs a key that is not configured.
var ErrMissingAPIKey = errors.New("ELEVENLABS_API_KEY not set")

type elevenLabsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	LanguageCode  string                 `json:"language_code,omitempty"`
	VoiceSettings *elevenLabsVoiceParams `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceParams struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed"`
}

type elevenLabsAddVoiceResponse struct {
	VoiceID string `json:"voice_id"`
}

// ElevenLabsProvider implements Provider and VoiceCloner using the ElevenLabs API.
type ElevenLabsProvider struct {
	apiKey       string
	baseURL      string
	modelID      string
	defaultVoice string
	httpClient   *http.Client
}

func NewElevenLabsProvider(cfg config.TTSConfig) *ElevenLabsProvider {
	p := &ElevenLabsProvider{
		apiKey:       cfg.ElevenLabsAPIKey,
		baseURL:      elevenLabsBaseURL,
		modelID:      elevenLabsModelID,
		defaultVoice: ElevenLabsDefaultVoice,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
	if cfg.ElevenLabsModelID != "" {
		p.modelID = cfg.ElevenLabsModelID
	}
	if cfg.ElevenLabsVoiceID != "" {
		p.defaultVoice = cfg.ElevenLabsVoiceID
	}
	return p
}

func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

func (p *ElevenLabsProvider) SpeedRange() (float64, float64) {
	return elevenLabsMinSpeed, elevenLabsMaxSpeed
}

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, r Request) (AudioResult, error) {
	if p.apiKey == "" {
		return AudioResult{}, ErrMissingAPIKey
	}

	voiceID := r.VoiceID
	if voiceID == "" {
		voiceID = p.defaultVoice
	}
	speed := r.Speed
	if speed == 0 {
		speed = 1.0
	}

	reqBody := elevenLabsRequest{
		Text:         r.Text,
		ModelID:      p.modelID,
		LanguageCode: primarySubtag(r.Language),
		VoiceSettings: &elevenLabsVoiceParams{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0.0,
			UseSpeakerBoost: true,
			Speed:           speed,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return AudioResult{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", p.baseURL, url.PathEscape(voiceID), elevenLabsOutputFormat)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return AudioResult{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return AudioResult{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if err := checkElevenLabsStatus(res); err != nil {
		return AudioResult{}, err
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return AudioResult{}, fmt.Errorf("read response: %w", err)
	}
	if len(data) == 0 {
		return AudioResult{}, fmt.Errorf("ElevenLabs returned empty audio")
	}

	return AudioResult{Data: data, Format: FormatMP3}, nil
}

// CloneVoice uploads the sample at samplePath as a new instant voice.
func (p *ElevenLabsProvider) CloneVoice(ctx context.Context, samplePath, label string) (string, error) {
	if p.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	sample, err := os.Open(samplePath)
	if err != nil {
		return "", fmt.Errorf("open voice sample: %w", err)
	}
	defer sample.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("name", label); err != nil {
		return "", err
	}
	if err := mw.WriteField("description", "Voice cloned for talking-head lesson video"); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("files", filepath.Base(samplePath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, sample); err != nil {
		return "", fmt.Errorf("read voice sample: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/voices/add", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if err := checkElevenLabsStatus(res); err != nil {
		return "", err
	}

	var out elevenLabsAddVoiceResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode voice response: %w", err)
	}
	if out.VoiceID == "" {
		return "", fmt.Errorf("ElevenLabs returned no voice_id")
	}
	return out.VoiceID, nil
}

// DeleteVoice removes a previously cloned voice.
func (p *ElevenLabsProvider) DeleteVoice(ctx context.Context, voiceID string) error {
	if p.apiKey == "" {
		return ErrMissingAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.baseURL+"/v1/voices/"+url.PathEscape(voiceID), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)

	res, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &APIError{Provider: "ElevenLabs", StatusCode: res.StatusCode, Body: strings.TrimSpace(string(errBody))}
	}
	return nil
}

func (p *ElevenLabsProvider) Close() error { return nil }

func checkElevenLabsStatus(res *http.Response) error {
	if res.StatusCode == http.StatusOK {
		return nil
	}
	errBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	body := strings.TrimSpace(string(errBody))
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
		return &RetryableError{StatusCode: res.StatusCode, Body: body}
	}
	return &APIError{Provider: "ElevenLabs", StatusCode: res.StatusCode, Body: body}
}
