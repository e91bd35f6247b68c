package tts

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/talkinghead/internal/config"
	"github.com/apresai/talkinghead/internal/media"
	"github.com/apresai/talkinghead/internal/observability"
)

type fakeProvider struct {
	lo, hi   float64
	requests []Request
	errs     []error
}

func (f *fakeProvider) Name() string                   { return "fake" }
func (f *fakeProvider) SpeedRange() (float64, float64) { return f.lo, f.hi }
func (f *fakeProvider) Close() error                   { return nil }

func (f *fakeProvider) Synthesize(_ context.Context, r Request) (AudioResult, error) {
	f.requests = append(f.requests, r)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return AudioResult{}, err
		}
	}
	return AudioResult{Data: []byte("audio"), Format: FormatMP3}, nil
}

type fakeTempo struct {
	calls []float64
	err   error
}

func (f *fakeTempo) AdjustTempo(_ context.Context, _ string, speed float64) error {
	f.calls = append(f.calls, speed)
	return f.err
}

func TestSpeechNativeSpeed(t *testing.T) {
	p := &fakeProvider{lo: 0.7, hi: 1.2}
	tempo := &fakeTempo{}
	s := NewSpeech(p, tempo, observability.Discard())
	out := filepath.Join(t.TempDir(), "audio.mp3")

	err := s.Synthesize(context.Background(), "Hello.World   again", VoiceConfig{Language: "en", Speed: 1.2}, out)
	require.NoError(t, err)

	require.Len(t, p.requests, 1)
	assert.Equal(t, "Hello. World again", p.requests[0].Text)
	assert.Equal(t, 1.2, p.requests[0].Speed)
	assert.Empty(t, tempo.calls)
	assert.FileExists(t, out)
}

func TestSpeechTempoPostProcess(t *testing.T) {
	p := &fakeProvider{lo: 0.7, hi: 1.2}
	tempo := &fakeTempo{}
	s := NewSpeech(p, tempo, observability.Discard())

	err := s.Synthesize(context.Background(), "slow down", VoiceConfig{Speed: 0.5}, filepath.Join(t.TempDir(), "a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.requests[0].Speed)
	assert.Equal(t, []float64{0.5}, tempo.calls)
}

func TestSpeechTempoFailureIsError(t *testing.T) {
	p := &fakeProvider{lo: 1, hi: 1}
	s := NewSpeech(p, &fakeTempo{err: errors.New("ffmpeg broke")}, observability.Discard())

	err := s.Synthesize(context.Background(), "fast", VoiceConfig{Speed: 2.0}, filepath.Join(t.TempDir(), "a.mp3"))
	require.Error(t, err)
}

func TestSpeechMissingFFmpegKeepsNativeSpeed(t *testing.T) {
	p := &fakeProvider{lo: 1, hi: 1}
	tools := media.Tools{FFmpeg: filepath.Join(t.TempDir(), "missing", "ffmpeg")}
	s := NewSpeech(p, tools, observability.Discard())
	out := filepath.Join(t.TempDir(), "a.mp3")

	err := s.Synthesize(context.Background(), "a bit faster", VoiceConfig{Speed: 1.1}, out)
	require.NoError(t, err)
	require.Len(t, p.requests, 1)
	assert.Equal(t, 1.0, p.requests[0].Speed)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))
	assert.NoFileExists(t, media.TempoPath(out))
}

func TestSpeechRetriesTransientErrors(t *testing.T) {
	orig := initialBackoff
	initialBackoff = time.Millisecond
	t.Cleanup(func() { initialBackoff = orig })

	p := &fakeProvider{lo: 1, hi: 1, errs: []error{&RetryableError{StatusCode: 503}, nil}}
	s := NewSpeech(p, nil, observability.Discard())

	err := s.Synthesize(context.Background(), "retry me", VoiceConfig{}, filepath.Join(t.TempDir(), "a.mp3"))
	require.NoError(t, err)
	assert.Len(t, p.requests, 2)
}

func TestSpeechDoesNotRetryPermanentErrors(t *testing.T) {
	p := &fakeProvider{lo: 1, hi: 1, errs: []error{&APIError{Provider: "fake", StatusCode: 401}}}
	s := NewSpeech(p, nil, observability.Discard())

	err := s.Synthesize(context.Background(), "no", VoiceConfig{}, filepath.Join(t.TempDir(), "a.mp3"))
	require.Error(t, err)
	assert.Len(t, p.requests, 1)
}

func TestSupportsCloning(t *testing.T) {
	_, ok := SupportsCloning(NewSpeech(&fakeProvider{lo: 1, hi: 1}, nil, observability.Discard()))
	assert.False(t, ok)

	eleven := NewSpeech(NewElevenLabsProvider(config.TTSConfig{ElevenLabsAPIKey: "k"}), nil, observability.Discard())
	assert.True(t, eleven.CanClone())
	cloner, ok := SupportsCloning(eleven)
	assert.True(t, ok)
	assert.NotNil(t, cloner)

	_, ok = SupportsCloning(&fakeTempo{})
	assert.False(t, ok)
}

func TestSpeechEmptyText(t *testing.T) {
	s := NewSpeech(&fakeProvider{lo: 1, hi: 1}, nil, observability.Discard())
	require.Error(t, s.Synthesize(context.Background(), " \n\t ", VoiceConfig{}, filepath.Join(t.TempDir(), "a.mp3")))
}

func TestSpeechCloningUnsupported(t *testing.T) {
	s := NewSpeech(&fakeProvider{lo: 1, hi: 1}, nil, observability.Discard())
	_, err := s.CloneVoice(context.Background(), "sample", "label")
	assert.ErrorIs(t, err, ErrCloningUnsupported)
	assert.ErrorIs(t, s.DeleteVoice(context.Background(), "id"), ErrCloningUnsupported)
}

func TestWithRetryHonorsContext(t *testing.T) {
	orig := initialBackoff
	initialBackoff = time.Hour
	t.Cleanup(func() { initialBackoff = orig })

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, func() error {
		calls++
		cancel()
		return &RetryableError{StatusCode: 429}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNormalizeText(t *testing.T) {
	cases := map[string]string{
		"Hello.World":            "Hello. World",
		"Hi,there!How are you?":  "Hi, there! How are you?",
		"  many   spaces\n\there": "many spaces here",
		"Pi is 3.14, roughly.":   "Pi is 3.14, roughly.",
		"Wait...what":            "Wait... what",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeText(in), "input %q", in)
	}
}

func TestLocale(t *testing.T) {
	assert.Equal(t, "en-US", locale(""))
	assert.Equal(t, "fr-FR", locale("fr"))
	assert.Equal(t, "en-GB", locale("en-GB"))
	assert.Equal(t, "cmn-CN", locale("zh"))
	assert.Equal(t, "pt", primarySubtag("PT-br"))
}

type fakeGoogle struct {
	req *texttospeechpb.SynthesizeSpeechRequest
}

func (f *fakeGoogle) SynthesizeSpeech(_ context.Context, req *texttospeechpb.SynthesizeSpeechRequest, _ ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	f.req = req
	return &texttospeechpb.SynthesizeSpeechResponse{AudioContent: []byte("mp3")}, nil
}

func (f *fakeGoogle) Close() error { return nil }

func TestGoogleProviderRequest(t *testing.T) {
	client := &fakeGoogle{}
	p := &GoogleProvider{client: client, voice: "en-US-Chirp3-HD-Charon"}

	_, err := p.Synthesize(context.Background(), Request{Text: "hola", Language: "es", Speed: 1.5})
	require.NoError(t, err)
	assert.Equal(t, "es-ES", client.req.Voice.LanguageCode)
	assert.Empty(t, client.req.Voice.Name, "configured english voice must not be used for spanish")
	assert.Equal(t, 1.5, client.req.AudioConfig.SpeakingRate)
	assert.Equal(t, texttospeechpb.AudioEncoding_MP3, client.req.AudioConfig.AudioEncoding)

	_, err = p.Synthesize(context.Background(), Request{Text: "hi", Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "en-US-Chirp3-HD-Charon", client.req.Voice.Name)
}

type fakePolly struct {
	in *polly.SynthesizeSpeechInput
}

func (f *fakePolly) SynthesizeSpeech(_ context.Context, in *polly.SynthesizeSpeechInput, _ ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.in = in
	return &polly.SynthesizeSpeechOutput{AudioStream: io.NopCloser(strings.NewReader("mp3"))}, nil
}

func TestPollyProviderVoiceSelection(t *testing.T) {
	client := &fakePolly{}
	p := &PollyProvider{client: client, engine: types.EngineNeural}

	res, err := p.Synthesize(context.Background(), Request{Text: "bonjour", Language: "fr-FR"})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), res.Data)
	assert.Equal(t, types.VoiceIdLea, client.in.VoiceId)
	assert.Equal(t, types.EngineNeural, client.in.Engine)

	_, err = p.Synthesize(context.Background(), Request{Text: "privet", Language: "ru"})
	require.NoError(t, err)
	assert.Equal(t, types.EngineStandard, client.in.Engine)
}

func TestSpeechWritesProviderBytes(t *testing.T) {
	s := NewSpeech(&fakeProvider{lo: 1, hi: 1}, nil, observability.Discard())
	out := filepath.Join(t.TempDir(), "a.mp3")
	require.NoError(t, s.Synthesize(context.Background(), "x", VoiceConfig{}, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))
}
