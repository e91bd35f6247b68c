// Package service wires the talkinghead collaborators from configuration.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/apresai/talkinghead/internal/config"
	"github.com/apresai/talkinghead/internal/fetch"
	"github.com/apresai/talkinghead/internal/history"
	"github.com/apresai/talkinghead/internal/media"
	"github.com/apresai/talkinghead/internal/observability"
	"github.com/apresai/talkinghead/internal/orchestrator"
	"github.com/apresai/talkinghead/internal/render"
	"github.com/apresai/talkinghead/internal/storage"
	"github.com/apresai/talkinghead/internal/tavus"
	"github.com/apresai/talkinghead/internal/tts"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

const (
	probeTimeout = 10 * time.Second
	tavusTimeout = 90 * time.Second
)

// Service holds the wired collaborators.
type Service struct {
	Config       config.Config
	Orchestrator *orchestrator.Orchestrator
	Publisher    *storage.S3Publisher
	Speech       *tts.Speech
	Tools        media.Tools
}

// Build loads AWS settings and secrets, probes storage and constructs the
// orchestrator. Jobs run under baseCtx. Missing optional integrations
// degrade with a warning; only an unusable TTS provider is an error.
func Build(ctx context.Context, cfg config.Config, baseCtx context.Context, logger *slog.Logger) (*Service, error) {
	return build(ctx, cfg, baseCtx, logger, true)
}

func build(ctx context.Context, cfg config.Config, baseCtx context.Context, logger *slog.Logger, probe bool) (*Service, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
	awsReady := err == nil
	if err != nil {
		logger.WarnContext(ctx, "AWS configuration unavailable, S3 uploads will be mocked", "error", err)
		awsCfg = aws.Config{Region: cfg.AWS.Region}
	}

	if awsReady && cfg.AWS.SecretPrefix != "" {
		config.LoadSecrets(ctx, secretsmanager.NewFromConfig(awsCfg), &cfg, logger)
	}

	var s3Client storage.S3API
	if awsReady {
		s3Client = s3.NewFromConfig(awsCfg)
	}
	publisher := storage.NewS3Publisher(s3Client, storage.Options{
		Bucket:     cfg.AWS.Bucket,
		Region:     cfg.AWS.Region,
		CDNBaseURL: cfg.AWS.CDNBaseURL,
	}, logger)
	if s3Client != nil && probe {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		_ = publisher.Probe(pctx) // logs and falls back to mock uploads
		cancel()
	}

	var store history.Store = history.NewMemoryStore(history.DefaultMemoryLimit)
	if awsReady && cfg.AWS.HistoryTable != "" {
		store = history.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.AWS.HistoryTable)
		logger.InfoContext(ctx, "Recording job history in DynamoDB", "table", cfg.AWS.HistoryTable)
	}

	tools := media.DefaultTools()
	provider, err := tts.NewProvider(ctx, cfg.TTS, awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create tts provider: %w", err)
	}
	speech := tts.NewSpeech(provider, tools, logger)

	orch := orchestrator.New(orchestrator.Options{
		MaxConcurrentJobs:  cfg.Limits.MaxConcurrentJobs,
		MaxScriptLength:    cfg.Limits.MaxScriptLength,
		SupportedLanguages: cfg.Limits.SupportedLanguages,
		TempDir:            cfg.Paths.TempDir,
		FetchTimeout:       cfg.Limits.FetchTimeout.Duration(),
		SynthesisTimeout:   cfg.Limits.SynthesisTimeout.Duration(),
		PublishTimeout:     cfg.Limits.PublishTimeout.Duration(),
		HostedTimeout:      tavusTimeout,
		RendererName:       cfg.Render.Renderer,
		TTSProvider:        provider.Name(),
		BaseContext:        baseCtx,
	}, orchestrator.Deps{
		Fetcher: fetch.New(fetch.Options{
			MaxSize:     cfg.Limits.MaxFileSize,
			ReadTimeout: cfg.Limits.FetchTimeout.Duration(),
		}, logger),
		Speech:    speech,
		Renderer:  NewRenderChain(cfg, tools, logger),
		Publisher: publisher,
		Prober:    tools,
		History:   store,
		Hosted:    tavus.New(cfg.Tavus.APIKey, cfg.Tavus.APIURL, tavusTimeout),
		Logger:    logger,
	})

	return &Service{
		Config:       cfg,
		Orchestrator: orch,
		Publisher:    publisher,
		Speech:       speech,
		Tools:        tools,
	}, nil
}

// Close releases provider clients.
func (s *Service) Close() error {
	if s.Speech == nil {
		return nil
	}
	return s.Speech.Close()
}

// LoadAWSConfig resolves AWS credentials: static keys from configuration when
// present, otherwise the named profile or the default chain. AWS clients are
// traced when an OTLP endpoint is configured.
func LoadAWSConfig(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.Region)}
	switch {
	case c.AccessKeyID != "" && c.SecretKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretKey, "")))
	case c.SharedProfile != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.SharedProfile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if observability.TracingEnabled() {
		otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	}
	return awsCfg, nil
}

// NewRenderChain builds the renderer fallback chain for cfg.Render.Renderer.
// Every chain ends in the placeholder renderer.
func NewRenderChain(cfg config.Config, tools media.Tools, logger *slog.Logger) *render.Chain {
	budget := cfg.Limits.RenderTimeout.Duration()
	ff := render.Stage{
		Renderer: render.FFmpeg{
			Tools:        tools,
			Quality:      cfg.Quality(),
			FPS:          cfg.Render.VideoFPS,
			AudioBitrate: cfg.Render.AudioBitrate,
		},
		Timeout: budget,
	}

	var stages []render.Stage
	switch cfg.Render.Renderer {
	case "sadtalker":
		stages = append(stages, render.Stage{
			Renderer: render.SadTalker{Dir: cfg.Render.SadTalkerDir, Python: cfg.Render.SadTalkerPython},
			Timeout:  budget,
		}, ff)
	case "ffmpeg":
		stages = append(stages, ff)
	}
	return render.NewChain(logger, stages...)
}
