package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apresai/talkinghead/internal/history"
	"github.com/apresai/talkinghead/internal/observability"
	"github.com/apresai/talkinghead/internal/render"
	"github.com/apresai/talkinghead/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls atomic.Int32
	fail  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url, dest, _ string) (int64, error) {
	f.calls.Add(1)
	if err := f.fail[url]; err != nil {
		return 0, err
	}
	return 4, os.WriteFile(dest, []byte("data"), 0o644)
}

type fakeSpeech struct {
	mu        sync.Mutex
	err       error
	lastVoice tts.VoiceConfig
	started   chan struct{}
	release   chan struct{}
}

func (f *fakeSpeech) Name() string { return "fake" }

func (f *fakeSpeech) Synthesize(_ context.Context, _ string, voice tts.VoiceConfig, out string) error {
	f.mu.Lock()
	f.lastVoice = voice
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(out, []byte("ID3 audio"), 0o644)
}

func (f *fakeSpeech) voice() tts.VoiceConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastVoice
}

type cloningSpeech struct {
	*fakeSpeech
	cloneID   string
	cloneErr  error
	deleteErr error
	deleted   []string
}

func (c *cloningSpeech) CloneVoice(_ context.Context, samplePath, label string) (string, error) {
	if _, err := os.Stat(samplePath); err != nil {
		return "", err
	}
	if c.cloneErr != nil {
		return "", c.cloneErr
	}
	return c.cloneID, nil
}

func (c *cloningSpeech) DeleteVoice(_ context.Context, voiceID string) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, voiceID)
	return nil
}

// providerlessSpeech looks like a cloner but its provider cannot clone.
type providerlessSpeech struct {
	*cloningSpeech
}

func (providerlessSpeech) CanClone() bool { return false }

type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) Render(_ context.Context, _, _, out string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "ffmpeg", os.WriteFile(out, []byte("mp4"), 0o644)
}

type fakePublisher struct {
	err error
}

func (f *fakePublisher) Publish(_ context.Context, localPath, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	return "https://bucket.s3.us-east-1.amazonaws.com/" + key, nil
}

func (f *fakePublisher) Available() bool { return f.err == nil }

type fakeProber struct{}

func (fakeProber) Duration(context.Context, string, string) (float64, string) { return 4.2, "probe" }

type fakeHosted struct {
	url string
	err error
}

func (f *fakeHosted) Configured() bool { return true }

func (f *fakeHosted) Generate(context.Context, string, string, string) (string, error) {
	return f.url, f.err
}

type unavailableRenderer struct{}

func (unavailableRenderer) Name() string { return "sadtalker" }

func (unavailableRenderer) Render(context.Context, string, string, string) error {
	return render.ErrUnavailable
}

type harness struct {
	o       *Orchestrator
	tempDir string
	fetcher *fakeFetcher
	speech  *fakeSpeech
	history *history.MemoryStore
}

func newHarness(t *testing.T, limit int, mutate func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		tempDir: filepath.Join(t.TempDir(), "scratch"),
		fetcher: &fakeFetcher{},
		speech:  &fakeSpeech{},
		history: history.NewMemoryStore(10),
	}
	deps := Deps{
		Fetcher:   h.fetcher,
		Speech:    h.speech,
		Renderer:  &fakeRenderer{},
		Publisher: &fakePublisher{},
		Prober:    fakeProber{},
		History:   h.history,
		Logger:    observability.Discard(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	h.o = New(Options{
		MaxConcurrentJobs:  limit,
		MaxScriptLength:    100,
		SupportedLanguages: []string{"en", "es", "fr"},
		TempDir:            h.tempDir,
		RendererName:       "ffmpeg",
		TTSProvider:        "fake",
	}, deps)
	return h
}

func (h *harness) assertNoScratch(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.tempDir)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries)
}

const validPayload = `{"script":"Hello world","avatar_url":"https://x/img.jpg","voice_options":{"language":"en-US","speed":1.0},"lesson_id":"L1"}`

func TestGenerateSuccess(t *testing.T) {
	h := newHarness(t, 2, nil)
	ctx := context.Background()

	res, err := h.o.Generate(ctx, []byte(validPayload))
	require.NoError(t, err)

	assert.NotEmpty(t, res.SessionID)
	assert.Contains(t, res.VideoURL, "generated/videos/")
	assert.Contains(t, res.VideoURL, res.SessionID+".mp4")
	assert.Contains(t, res.AudioURL, "generated/audio/")
	assert.Equal(t, 4.2, res.Duration)
	assert.Equal(t, "ffmpeg", res.Metadata.Renderer)
	assert.Equal(t, "en-US", res.Metadata.VoiceLanguage)
	assert.Equal(t, 1.0, res.Metadata.VoiceSpeed)
	assert.Equal(t, 11, res.Metadata.ScriptLength)
	assert.False(t, res.Metadata.VoiceCloned)

	second, err := h.o.Generate(ctx, []byte(validPayload))
	require.NoError(t, err)
	assert.NotEqual(t, res.SessionID, second.SessionID)

	h.assertNoScratch(t)
	assert.Empty(t, h.o.DescribeActiveJobs())

	rec, err := h.history.Get(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "L1", rec.LessonID)
	assert.Equal(t, res.VideoURL, rec.VideoURL)
}

func TestValidate(t *testing.T) {
	limits := Limits{MaxScriptLength: 10, SupportedLanguages: []string{"en", "es"}}
	speed := func(v float64) *float64 { return &v }
	base := func() GenerationRequest {
		return GenerationRequest{Script: "Hi", AvatarURL: "https://x/a.png"}
	}

	tests := []struct {
		name    string
		mutate  func(*GenerationRequest)
		wantErr string
	}{
		{"valid", func(*GenerationRequest) {}, ""},
		{"empty script", func(r *GenerationRequest) { r.Script = "   " }, "Script text is required"},
		{"long script", func(r *GenerationRequest) { r.Script = strings.Repeat("a", 11) }, "Script too long (max 10 characters)"},
		{"multibyte at limit", func(r *GenerationRequest) { r.Script = strings.Repeat("é", 10) }, ""},
		{"missing avatar", func(r *GenerationRequest) { r.AvatarURL = "" }, "Avatar URL is required"},
		{"ftp avatar", func(r *GenerationRequest) { r.AvatarURL = "ftp://x/a.png" }, "Avatar URL must be a valid HTTP/HTTPS URL"},
		{"bare scheme", func(r *GenerationRequest) { r.AvatarURL = "https://" }, "Avatar URL must be a valid HTTP/HTTPS URL"},
		{"bad sample url", func(r *GenerationRequest) { r.VoiceOptions.VoiceSampleURL = "file:///etc/passwd" }, "Voice sample URL"},
		{"region tag", func(r *GenerationRequest) { r.VoiceOptions.Language = "es-MX" }, ""},
		{"upper case", func(r *GenerationRequest) { r.VoiceOptions.Language = "EN-us" }, ""},
		{"underscore", func(r *GenerationRequest) { r.VoiceOptions.Language = "en_GB" }, ""},
		{"unsupported", func(r *GenerationRequest) { r.VoiceOptions.Language = "de-DE" }, "Language 'de' not supported"},
		{"undetermined", func(r *GenerationRequest) { r.VoiceOptions.Language = "und" }, "Language 'und' not supported"},
		{"undetermined with script", func(r *GenerationRequest) { r.VoiceOptions.Language = "und-Latn" }, "Language 'und' not supported"},
		{"undetermined with region", func(r *GenerationRequest) { r.VoiceOptions.Language = "und-ES" }, "Language 'und' not supported"},
		{"deprecated code", func(r *GenerationRequest) { r.VoiceOptions.Language = "iw" }, "Language 'iw' not supported"},
		{"speed low bound", func(r *GenerationRequest) { r.VoiceOptions.Speed = speed(0.5) }, ""},
		{"speed high bound", func(r *GenerationRequest) { r.VoiceOptions.Speed = speed(2.0) }, ""},
		{"speed too low", func(r *GenerationRequest) { r.VoiceOptions.Speed = speed(0.49) }, "Voice speed must be between 0.5 and 2.0"},
		{"speed too high", func(r *GenerationRequest) { r.VoiceOptions.Speed = speed(2.01) }, "Voice speed must be between 0.5 and 2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.mutate(&req)
			_, err := Validate(req, limits)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Message, tt.wantErr)
		})
	}
}

func TestPrimaryLanguage(t *testing.T) {
	tests := map[string]string{
		"en":         "en",
		"en-US":      "en",
		"EN_gb":      "en",
		"zh-Hant-TW": "zh",
		"und":        "und",
		"und-Cyrl":   "und",
		"und-Jpan":   "und",
		"und-TW":     "und",
		"iw":         "iw",
		" es-MX ":    "es",
	}
	for tag, want := range tests {
		assert.Equal(t, want, PrimaryLanguage(tag), tag)
	}
}

func TestValidateRejectsInferredLanguage(t *testing.T) {
	limits := Limits{MaxScriptLength: 10, SupportedLanguages: []string{"en", "ru", "ja", "zh", "he"}}
	for _, tag := range []string{"und", "und-Cyrl", "und-Jpan", "und-TW", "iw"} {
		_, err := Validate(GenerationRequest{
			Script:       "Hi",
			AvatarURL:    "https://x/a.png",
			VoiceOptions: VoiceOptions{Language: tag},
		}, limits)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, tag)
		assert.Equal(t, "language", ve.Field, tag)
	}
}

func TestValidateTrims(t *testing.T) {
	req, err := Validate(GenerationRequest{Script: "  Hi  ", AvatarURL: " https://x/a.png "},
		Limits{MaxScriptLength: 10, SupportedLanguages: []string{"en"}})
	require.NoError(t, err)
	assert.Equal(t, "Hi", req.Script)
	assert.Equal(t, "https://x/a.png", req.AvatarURL)
	assert.Equal(t, DefaultLanguage, req.LanguageTag())
	assert.Equal(t, DefaultSpeed, req.Speed())
}

func TestAdmitRejectsBeforeIO(t *testing.T) {
	h := newHarness(t, 2, nil)

	_, err := h.o.Admit(context.Background(), []byte(`{"script":"","avatar_url":"https://x/img.jpg"}`))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "script", ve.Field)

	_, err = h.o.Admit(context.Background(), nil)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "No JSON data provided", ve.Message)

	_, err = h.o.Admit(context.Background(), []byte(`{not json`))
	require.ErrorAs(t, err, &ve)

	assert.Zero(t, h.fetcher.calls.Load())
	assert.Zero(t, h.o.Registry().Len())
	_, statErr := os.Stat(h.tempDir)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestAdmitBusyBeforeValidation(t *testing.T) {
	h := newHarness(t, 1, nil)
	ctx := context.Background()

	job, err := h.o.Admit(ctx, []byte(validPayload))
	require.NoError(t, err)

	_, err = h.o.Admit(ctx, []byte(`garbage`))
	assert.ErrorIs(t, err, ErrBusy)
	_, err = h.o.AdmitRequest(ctx, GenerationRequest{})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, "Service busy. Maximum concurrent jobs reached.", PublicMessage(err))
	assert.Equal(t, "service busy: maximum concurrent jobs reached", ErrBusy.Error())

	_, err = h.o.Run(ctx, job)
	require.NoError(t, err)

	_, err = h.o.Admit(ctx, []byte(validPayload))
	assert.NoError(t, err)
}

func TestAdmitConcurrentNeverExceedsLimit(t *testing.T) {
	h := newHarness(t, 3, nil)
	req, err := DecodeRequest([]byte(validPayload))
	require.NoError(t, err)

	var admitted, busy atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.o.AdmitRequest(context.Background(), req)
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, ErrBusy):
				busy.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 3, admitted.Load())
	assert.EqualValues(t, 17, busy.Load())
	assert.Equal(t, 3, h.o.Registry().Len())
}

func TestRunStageFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Deps)
		stage   string
		message string
	}{
		{
			name: "fetch",
			mutate: func(d *Deps) {
				d.Fetcher = &fakeFetcher{fail: map[string]error{"https://x/img.jpg": errors.New("dial tcp: refused")}}
			},
			stage:   StageFetch,
			message: "Failed to download avatar image",
		},
		{
			name:    "synthesis",
			mutate:  func(d *Deps) { d.Speech = &fakeSpeech{err: errors.New("elevenlabs: 401")} },
			stage:   StageSynthesis,
			message: "Failed to generate TTS audio",
		},
		{
			name:    "render",
			mutate:  func(d *Deps) { d.Renderer = &fakeRenderer{err: errors.New("ffmpeg: exit status 1 /tmp/secret")} },
			stage:   StageRender,
			message: "Failed to generate video",
		},
		{
			name:    "publish",
			mutate:  func(d *Deps) { d.Publisher = &fakePublisher{err: errors.New("AccessDenied")} },
			stage:   StagePublish,
			message: "Failed to upload generated files",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 2, tt.mutate)
			ctx := context.Background()

			job, err := h.o.Admit(ctx, []byte(validPayload))
			require.NoError(t, err)

			_, err = h.o.Run(ctx, job)
			var pe *PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.stage, pe.Stage)
			assert.Equal(t, tt.message, PublicMessage(err))
			assert.NotContains(t, PublicMessage(err), "/tmp")

			for _, p := range job.Scratch().Paths() {
				assert.NoFileExists(t, p)
			}
			h.assertNoScratch(t)
			assert.Empty(t, h.o.DescribeActiveJobs())
			assert.Equal(t, StatusFailed, job.Status())

			rec, err := h.history.Get(ctx, job.SessionID)
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, rec.Status)
			assert.Equal(t, tt.message, rec.Error)
		})
	}
}

func TestCloneFailureFallsBackToDefaultVoice(t *testing.T) {
	speech := &cloningSpeech{fakeSpeech: &fakeSpeech{}, cloneErr: errors.New("quota exceeded")}
	h := newHarness(t, 2, func(d *Deps) { d.Speech = speech })

	res, err := h.o.Generate(context.Background(), []byte(
		`{"script":"Hello","avatar_url":"https://x/img.jpg","voice_options":{"voice_sample_url":"https://x/sample.mp3"}}`))
	require.NoError(t, err)
	assert.False(t, res.Metadata.VoiceCloned)
	assert.Empty(t, speech.voice().VoiceID)
	assert.EqualValues(t, 2, h.fetcher.calls.Load())
	h.assertNoScratch(t)
}

func TestCloningUnsupportedSkipsSampleDownload(t *testing.T) {
	speech := providerlessSpeech{&cloningSpeech{fakeSpeech: &fakeSpeech{}, cloneID: "never"}}
	h := newHarness(t, 2, func(d *Deps) { d.Speech = speech })

	res, err := h.o.Generate(context.Background(), []byte(
		`{"script":"Hello","avatar_url":"https://x/img.jpg","voice_options":{"voice_sample_url":"https://x/sample.mp3","voice_id":"explicit"}}`))
	require.NoError(t, err)
	assert.False(t, res.Metadata.VoiceCloned)
	assert.Equal(t, "explicit", speech.voice().VoiceID)
	assert.EqualValues(t, 1, h.fetcher.calls.Load())

	assert.ErrorIs(t, h.o.CleanupVoice(context.Background(), "v1"), tts.ErrCloningUnsupported)
	assert.Empty(t, speech.deleted)
	h.assertNoScratch(t)
}

func TestSampleDownloadFailureFallsBack(t *testing.T) {
	speech := &cloningSpeech{fakeSpeech: &fakeSpeech{}, cloneID: "cloned"}
	fetcher := &fakeFetcher{fail: map[string]error{"https://x/sample.mp3": errors.New("404")}}
	h := newHarness(t, 2, func(d *Deps) {
		d.Speech = speech
		d.Fetcher = fetcher
	})

	res, err := h.o.Generate(context.Background(), []byte(
		`{"script":"Hello","avatar_url":"https://x/img.jpg","voice_options":{"voice_sample_url":"https://x/sample.mp3","voice_id":"explicit"}}`))
	require.NoError(t, err)
	assert.False(t, res.Metadata.VoiceCloned)
	assert.Equal(t, "explicit", speech.voice().VoiceID)
}

func TestClonedVoiceIsUsed(t *testing.T) {
	speech := &cloningSpeech{fakeSpeech: &fakeSpeech{}, cloneID: "cloned-123"}
	h := newHarness(t, 2, func(d *Deps) { d.Speech = speech })

	res, err := h.o.Generate(context.Background(), []byte(
		`{"script":"Hello","avatar_url":"https://x/img.jpg","voice_options":{"voice_sample_url":"https://x/sample.mp3","voice_id":"explicit","speed":1.5}}`))
	require.NoError(t, err)
	assert.True(t, res.Metadata.VoiceCloned)
	assert.Equal(t, "cloned-123", res.Metadata.VoiceID)
	assert.Equal(t, "cloned-123", speech.voice().VoiceID)
	assert.Equal(t, 1.5, speech.voice().Speed)
	h.assertNoScratch(t)
}

func TestRendererUnavailableUsesPlaceholder(t *testing.T) {
	chain := render.NewChain(observability.Discard(), render.Stage{Renderer: unavailableRenderer{}})
	h := newHarness(t, 2, func(d *Deps) { d.Renderer = chain })

	res, err := h.o.Generate(context.Background(), []byte(validPayload))
	require.NoError(t, err)
	assert.Equal(t, "placeholder", res.Metadata.Renderer)
	assert.NotEmpty(t, res.VideoURL)
	h.assertNoScratch(t)
}

func TestDescribeActiveJobsDuringRun(t *testing.T) {
	speech := &fakeSpeech{started: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, 2, func(d *Deps) { d.Speech = speech })
	ctx := context.Background()

	job, err := h.o.Admit(ctx, []byte(validPayload))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.o.Run(ctx, job)
		done <- err
	}()

	<-speech.started
	jobs := h.o.DescribeActiveJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, job.SessionID, jobs[0].SessionID)
	assert.Equal(t, "L1", jobs[0].LessonID)
	assert.Equal(t, StatusProcessing, jobs[0].Status)
	assert.GreaterOrEqual(t, jobs[0].Elapsed, 0.0)

	rec, err := h.o.JobStatus(ctx, job.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, rec.Status)

	close(speech.release)
	require.NoError(t, <-done)
	assert.Empty(t, h.o.DescribeActiveJobs())

	rec, err = h.o.JobStatus(ctx, job.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
}

func TestTavus(t *testing.T) {
	h := newHarness(t, 2, nil)
	_, err := h.o.Admit(context.Background(), []byte(`{"script":"Hello","avatar_url":"https://x/img.jpg","use_tavus":true}`))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "use_tavus", ve.Field)

	h = newHarness(t, 2, func(d *Deps) { d.Hosted = &fakeHosted{url: "https://tavus/v.mp4"} })
	res, err := h.o.Generate(context.Background(), []byte(`{"script":"Hello","avatar_url":"https://x/img.jpg","use_tavus":true}`))
	require.NoError(t, err)
	assert.Equal(t, "https://tavus/v.mp4", res.VideoURL)
	assert.Equal(t, res.VideoURL, res.AudioURL)
	assert.Equal(t, 2.0, res.Duration)
	assert.Equal(t, "tavus", res.Metadata.Renderer)
	assert.Zero(t, h.fetcher.calls.Load())

	h = newHarness(t, 2, func(d *Deps) { d.Hosted = &fakeHosted{err: errors.New("status 500")} })
	_, err = h.o.Generate(context.Background(), []byte(`{"script":"Hello","avatar_url":"https://x/img.jpg","use_tavus":true}`))
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StageTavus, pe.Stage)
	assert.Empty(t, h.o.DescribeActiveJobs())
}

func TestCleanupVoice(t *testing.T) {
	h := newHarness(t, 1, nil)
	assert.ErrorIs(t, h.o.CleanupVoice(context.Background(), "v1"), tts.ErrCloningUnsupported)

	speech := &cloningSpeech{fakeSpeech: &fakeSpeech{}}
	h = newHarness(t, 1, func(d *Deps) { d.Speech = speech })
	require.NoError(t, h.o.CleanupVoice(context.Background(), "v1"))
	assert.Equal(t, []string{"v1"}, speech.deleted)

	speech.deleteErr = &tts.APIError{Provider: "elevenlabs", StatusCode: 404, Body: "not found"}
	var apiErr *tts.APIError
	require.ErrorAs(t, h.o.CleanupVoice(context.Background(), "v2"), &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestStats(t *testing.T) {
	h := newHarness(t, 4, nil)
	require.NoError(t, os.MkdirAll(h.tempDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.tempDir, "leftover"), []byte("12345"), 0o644))

	s := h.o.Stats()
	assert.Equal(t, 0, s.ActiveJobs)
	assert.Equal(t, 4, s.MaxConcurrentJobs)
	assert.True(t, s.S3Available)
	assert.EqualValues(t, 5, s.TempDirSize)
	assert.Equal(t, []string{"en", "es", "fr"}, s.SupportedLanguages)
	assert.Equal(t, "ffmpeg", s.Renderer)
	assert.False(t, s.TavusEnabled)
}

func TestScratchCleanupIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := NewScratch(dir, "abc", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	a := s.Path("avatar.jpg")
	b := s.Path("audio.mp3")
	assert.Equal(t, a, s.Path("avatar.jpg"))
	assert.Len(t, s.Paths(), 2)
	assert.True(t, strings.HasPrefix(filepath.Base(a), "20250102_030405_abc_"))

	require.NoError(t, os.WriteFile(a, []byte("x"), 0o644))
	require.NoError(t, s.Cleanup())
	require.NoError(t, s.Cleanup())
	assert.NoFileExists(t, a)
	assert.NoFileExists(t, b)
}
