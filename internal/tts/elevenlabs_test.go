package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestElevenLabs(srv *httptest.Server) *ElevenLabsProvider {
	return &ElevenLabsProvider{
		apiKey:       "test-key",
		baseURL:      srv.URL,
		modelID:      "m1",
		defaultVoice: ElevenLabsDefaultVoice,
		httpClient:   srv.Client(),
	}
}

func TestElevenLabsSynthesizeRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/text-to-speech/"+ElevenLabsDefaultVoice, r.URL.Path)
		assert.Equal(t, "mp3_44100_128", r.URL.Query().Get("output_format"))
		assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))

		var payload elevenLabsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "hello world", payload.Text)
		assert.Equal(t, "m1", payload.ModelID)
		assert.Equal(t, "fr", payload.LanguageCode)
		require.NotNil(t, payload.VoiceSettings)
		assert.Equal(t, 1.1, payload.VoiceSettings.Speed)

		w.Write([]byte("mp3-data"))
	}))
	defer srv.Close()

	res, err := newTestElevenLabs(srv).Synthesize(context.Background(), Request{Text: "hello world", Language: "fr-CA", Speed: 1.1})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-data"), res.Data)
	assert.Equal(t, FormatMP3, res.Format)
}

func TestElevenLabsSynthesizeExplicitVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/custom-voice", r.URL.Path)
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	_, err := newTestElevenLabs(srv).Synthesize(context.Background(), Request{Text: "hi", VoiceID: "custom-voice"})
	require.NoError(t, err)
}

func TestElevenLabsErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusUnauthorized, false},
		{http.StatusUnprocessableEntity, false},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"detail":"nope"}`))
		}))

		_, err := newTestElevenLabs(srv).Synthesize(context.Background(), Request{Text: "hi"})
		srv.Close()

		require.Error(t, err)
		var retryable *RetryableError
		assert.Equal(t, tc.retryable, errors.As(err, &retryable), "status %d", tc.status)
		if !tc.retryable {
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.StatusCode)
		}
	}
}

func TestElevenLabsMissingKey(t *testing.T) {
	p := &ElevenLabsProvider{baseURL: "http://127.0.0.1:0", httpClient: http.DefaultClient}
	_, err := p.Synthesize(context.Background(), Request{Text: "hi"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = p.CloneVoice(context.Background(), "x", "y")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.ErrorIs(t, p.DeleteVoice(context.Background(), "v"), ErrMissingAPIKey)
}

func TestElevenLabsCloneVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/voices/add", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "user_voice_abc", r.FormValue("name"))

		f, hdr, err := r.FormFile("files")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "sample.mp3", hdr.Filename)
		assert.Equal(t, "sample-bytes", string(data))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"voice_id":"cloned-123"}`))
	}))
	defer srv.Close()

	sample := filepath.Join(t.TempDir(), "sample.mp3")
	require.NoError(t, os.WriteFile(sample, []byte("sample-bytes"), 0o600))

	id, err := newTestElevenLabs(srv).CloneVoice(context.Background(), sample, "user_voice_abc")
	require.NoError(t, err)
	assert.Equal(t, "cloned-123", id)
}

func TestElevenLabsCloneVoiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"sample too short"}`))
	}))
	defer srv.Close()

	sample := filepath.Join(t.TempDir(), "sample.mp3")
	require.NoError(t, os.WriteFile(sample, []byte("s"), 0o600))

	id, err := newTestElevenLabs(srv).CloneVoice(context.Background(), sample, "label")
	require.Error(t, err)
	assert.Empty(t, id)
}

func TestElevenLabsDeleteVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/v1/voices/known" {
			w.Write([]byte(`{"status":"ok"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"voice not found"}`))
	}))
	defer srv.Close()

	p := newTestElevenLabs(srv)
	require.NoError(t, p.DeleteVoice(context.Background(), "known"))

	err := p.DeleteVoice(context.Background(), "unknown")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "voice not found")
}
