package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

// pollyVoices is the default voice per language for the neural engine.
var pollyVoices = map[string]types.VoiceId{
	"en": types.VoiceIdJoanna,
	"es": types.VoiceIdLucia,
	"fr": types.VoiceIdLea,
	"de": types.VoiceIdVicki,
	"it": types.VoiceIdBianca,
	"pt": types.VoiceIdCamila,
	"ru": types.VoiceIdTatyana,
	"ja": types.VoiceIdTakumi,
	"ko": types.VoiceIdSeoyeon,
	"zh": types.VoiceIdZhiyu,
}

// pollyStandardOnly lists default voices without a neural variant.
var pollyStandardOnly = map[types.VoiceId]bool{
	types.VoiceIdTatyana: true,
}

type pollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyProvider implements Provider using Amazon Polly.
type PollyProvider struct {
	client pollyAPI
	voice  string
	engine types.Engine
}

func NewPollyProvider(awsCfg aws.Config, voice, engine string) *PollyProvider {
	if engine == "" {
		engine = string(types.EngineNeural)
	}
	return &PollyProvider{
		client: polly.NewFromConfig(awsCfg),
		voice:  voice,
		engine: types.Engine(engine),
	}
}

func (p *PollyProvider) Name() string { return "polly" }

// SpeedRange is fixed at 1.0: plain-text Polly requests have no rate control.
func (p *PollyProvider) SpeedRange() (float64, float64) { return 1.0, 1.0 }

func (p *PollyProvider) Synthesize(ctx context.Context, r Request) (AudioResult, error) {
	lang := primarySubtag(r.Language)
	if lang == "" {
		lang = "en"
	}

	voice := types.VoiceId(r.VoiceID)
	if voice == "" && p.voice != "" {
		voice = types.VoiceId(p.voice)
	}
	if voice == "" {
		v, ok := pollyVoices[lang]
		if !ok {
			v = types.VoiceIdJoanna
		}
		voice = v
	}

	engine := p.engine
	if pollyStandardOnly[voice] {
		engine = types.EngineStandard
	}

	input := &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: types.OutputFormatMp3,
		SampleRate:   aws.String("24000"),
		Text:         aws.String(r.Text),
		TextType:     types.TextTypeText,
		VoiceId:      voice,
	}

	resp, err := p.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return AudioResult{}, fmt.Errorf("Polly synthesize: %w", err)
	}
	defer resp.AudioStream.Close()

	data, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return AudioResult{}, fmt.Errorf("Polly read audio: %w", err)
	}
	if len(data) == 0 {
		return AudioResult{}, fmt.Errorf("Polly returned empty audio")
	}

	return AudioResult{Data: data, Format: FormatMP3}, nil
}

func (p *PollyProvider) Close() error { return nil }
