// Package tavus calls the Tavus hosted video API, which synthesizes speech
// and renders a talking-head video in a single request.
package tavus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultVoice is sent when the request names no voice.
const DefaultVoice = "en-US-Wavenet-D"

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("TAVUS_API_KEY not set")

type generateRequest struct {
	Script    string `json:"script"`
	AvatarURL string `json:"avatar_url"`
	Voice     string `json:"voice"`
}

type generateResponse struct {
	VideoURL string `json:"video_url"`
}

// Client generates videos with Tavus.
type Client struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

// New returns a client. timeout bounds each call; 0 means 90s.
func New(apiKey, apiURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c != nil && c.apiKey != "" }

// Generate asks Tavus for a video of avatarURL speaking script and returns
// the hosted video URL.
func (c *Client) Generate(ctx context.Context, script, avatarURL, voice string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if voice == "" {
		voice = DefaultVoice
	}

	body, err := json.Marshal(generateRequest{Script: script, AvatarURL: avatarURL, Voice: voice})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("Tavus API error (status %d): %s", res.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var out generateResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.VideoURL == "" {
		return "", errors.New("Tavus response has no video_url")
	}
	return out.VideoURL, nil
}
