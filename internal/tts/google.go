package tts

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
)

// googleSynthesizer is the subset of the Cloud TTS client used here.
type googleSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// GoogleProvider implements Provider using Google Cloud Text-to-Speech.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS or the ambient identity.
type GoogleProvider struct {
	client googleSynthesizer
	voice  string
}

func NewGoogleProvider(ctx context.Context, voice string) (*GoogleProvider, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create Google TTS client: %w", err)
	}
	return &GoogleProvider{client: client, voice: voice}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

// SpeedRange matches the SpeakingRate bounds of the Cloud TTS API.
func (p *GoogleProvider) SpeedRange() (float64, float64) { return 0.25, 4.0 }

func (p *GoogleProvider) Synthesize(ctx context.Context, r Request) (AudioResult, error) {
	voice := &texttospeechpb.VoiceSelectionParams{
		LanguageCode: locale(r.Language),
	}
	// An explicit voice id wins; the configured voice only applies when its
	// locale matches the request.
	switch {
	case r.VoiceID != "":
		voice.Name = r.VoiceID
	case p.voice != "" && primarySubtag(p.voice) == primarySubtag(voice.LanguageCode):
		voice.Name = p.voice
	}

	audio := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}
	if r.Speed != 0 {
		audio.SpeakingRate = r.Speed
	}

	resp, err := p.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: r.Text},
		},
		Voice:       voice,
		AudioConfig: audio,
	})
	if err != nil {
		return AudioResult{}, fmt.Errorf("Google TTS synthesize: %w", err)
	}
	if len(resp.AudioContent) == 0 {
		return AudioResult{}, fmt.Errorf("Google TTS returned empty audio")
	}
	return AudioResult{Data: resp.AudioContent, Format: FormatMP3}, nil
}

func (p *GoogleProvider) Close() error { return p.client.Close() }
