// Package orchestrator drives a generation request through fetch, speech
// synthesis, rendering and publishing, bounding concurrent jobs and removing
// every scratch file a job creates.
package orchestrator

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/apresai/talkinghead/internal/history"
	"github.com/apresai/talkinghead/internal/media"
	"github.com/apresai/talkinghead/internal/observability"
	"github.com/apresai/talkinghead/internal/storage"
	"github.com/apresai/talkinghead/internal/tts"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("talkinghead/orchestrator")

const audioName = "audio.mp3"

// Fetcher downloads a remote resource to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest, wantType string) (int64, error)
}

// Renderer turns an image and an audio track into a video and reports which
// engine produced it.
type Renderer interface {
	Render(ctx context.Context, imagePath, audioPath, outputPath string) (string, error)
}

// Publisher uploads a file and returns its public URL.
type Publisher interface {
	Publish(ctx context.Context, localPath, key string) (string, error)
	Available() bool
}

// DurationProber measures an audio file, falling back to a script estimate.
type DurationProber interface {
	Duration(ctx context.Context, path, script string) (float64, string)
}

// HostedGenerator synthesizes and renders a video in one remote call.
type HostedGenerator interface {
	Configured() bool
	Generate(ctx context.Context, script, avatarURL, voice string) (string, error)
}

// Options configures an Orchestrator.
type Options struct {
	MaxConcurrentJobs  int
	MaxScriptLength    int
	SupportedLanguages []string
	TempDir            string

	FetchTimeout     time.Duration
	SynthesisTimeout time.Duration
	PublishTimeout   time.Duration
	HostedTimeout    time.Duration

	// RendererName and TTSProvider are reported in Stats.
	RendererName string
	TTSProvider  string

	// BaseContext bounds every job. Jobs outlive the request that admitted
	// them and end only when BaseContext is cancelled.
	BaseContext context.Context
}

// Deps are the collaborators of an Orchestrator. History and Hosted are optional.
type Deps struct {
	Fetcher   Fetcher
	Speech    tts.Synthesizer
	Renderer  Renderer
	Publisher Publisher
	Prober    DurationProber
	History   history.Store
	Hosted    HostedGenerator
	Logger    *slog.Logger
}

// Orchestrator owns the active-job registry and runs jobs.
type Orchestrator struct {
	opts     Options
	deps     Deps
	registry *Registry
	log      *slog.Logger
	now      func() time.Time
}

func New(opts Options, deps Deps) *Orchestrator {
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.History == nil {
		deps.History = history.NewMemoryStore(history.DefaultMemoryLimit)
	}
	return &Orchestrator{
		opts:     opts,
		deps:     deps,
		registry: NewRegistry(opts.MaxConcurrentJobs),
		log:      deps.Logger.With("component", "orchestrator"),
		now:      time.Now,
	}
}

// Registry exposes the active-job registry.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// NewSessionID returns a fresh, time-ordered session identifier.
func NewSessionID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

// Admit checks capacity, then decodes and validates payload and registers a
// new job. Capacity is checked first so an overloaded service rejects
// without parsing.
func (o *Orchestrator) Admit(ctx context.Context, payload []byte) (*Job, error) {
	if o.registry.Full() {
		return nil, ErrBusy
	}
	req, err := DecodeRequest(payload)
	if err != nil {
		return nil, err
	}
	return o.AdmitRequest(ctx, req)
}

// AdmitRequest is Admit for an already decoded request.
func (o *Orchestrator) AdmitRequest(ctx context.Context, req GenerationRequest) (*Job, error) {
	if o.registry.Full() {
		return nil, ErrBusy
	}

	req, err := Validate(req, Limits{
		MaxScriptLength:    o.opts.MaxScriptLength,
		SupportedLanguages: o.opts.SupportedLanguages,
	})
	if err != nil {
		return nil, err
	}
	if req.UseTavus && (o.deps.Hosted == nil || !o.deps.Hosted.Configured()) {
		return nil, invalid("use_tavus", "Tavus API key not configured")
	}

	id, err := NewSessionID()
	if err != nil {
		return nil, err
	}
	started := o.now()
	job := &Job{
		SessionID: id,
		StartedAt: started,
		Request:   req,
		scratch:   NewScratch(o.opts.TempDir, id, started),
		status:    StatusProcessing,
	}
	if err := o.registry.Add(job); err != nil {
		return nil, err
	}

	if err := o.deps.History.Create(ctx, history.Record{
		SessionID: id,
		LessonID:  req.LessonID,
		Status:    StatusProcessing,
		StartedAt: started,
	}); err != nil {
		o.log.WarnContext(ctx, "Record job start failed", "session_id", id, "error", err)
	}

	o.log.InfoContext(ctx, "Job admitted",
		"session_id", id, "lesson_id", req.LessonID,
		"script_length", len([]rune(req.Script)), "use_tavus", req.UseTavus)
	return job, nil
}

// Metadata describes how a result was produced.
type Metadata struct {
	ScriptLength   int     `json:"script_length"`
	VoiceLanguage  string  `json:"voice_language"`
	VoiceSpeed     float64 `json:"voice_speed"`
	VoiceCloned    bool    `json:"voice_cloned"`
	VoiceID        string  `json:"voice_id,omitempty"`
	Renderer       string  `json:"renderer"`
	DurationSource string  `json:"duration_source"`
	Timestamp      string  `json:"timestamp"`
}

// Result is a completed job.
type Result struct {
	SessionID      string   `json:"session_id"`
	VideoURL       string   `json:"video_url"`
	AudioURL       string   `json:"audio_url"`
	Duration       float64  `json:"duration"`
	ProcessingTime float64  `json:"processing_time"`
	Metadata       Metadata `json:"metadata"`
}

// Generate admits payload and runs the job to completion.
func (o *Orchestrator) Generate(ctx context.Context, payload []byte) (*Result, error) {
	job, err := o.Admit(ctx, payload)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, job)
}

// Run executes job. Whatever the outcome, the job's scratch files are
// removed and the job leaves the registry before Run returns.
func (o *Orchestrator) Run(ctx context.Context, job *Job) (res *Result, err error) {
	ctx = observability.DetachTraceContextFrom(ctx, o.opts.BaseContext)
	ctx, span := tracer.Start(ctx, "job.run", trace.WithAttributes(
		attribute.String("session_id", job.SessionID),
		attribute.String("lesson_id", job.LessonID()),
		attribute.Bool("use_tavus", job.Request.UseTavus),
	))
	defer span.End()

	log := o.log.With("session_id", job.SessionID, "lesson_id", job.LessonID())

	defer func() {
		if cerr := job.scratch.Cleanup(); cerr != nil {
			log.WarnContext(ctx, "Scratch cleanup incomplete", "error", cerr)
		}

		rec := history.Record{
			SessionID:  job.SessionID,
			LessonID:   job.LessonID(),
			StartedAt:  job.StartedAt,
			FinishedAt: o.now(),
		}
		if err != nil {
			job.setStatus(StatusFailed)
			rec.Status = StatusFailed
			rec.Error = PublicMessage(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "job failed")
			log.ErrorContext(ctx, "Job failed", "error", err, "elapsed", time.Since(job.StartedAt).Round(time.Millisecond).String())
		} else {
			job.setStatus(StatusCompleted)
			rec.Status = StatusCompleted
			rec.VideoURL = res.VideoURL
			rec.AudioURL = res.AudioURL
			rec.Duration = res.Duration
			rec.Renderer = res.Metadata.Renderer
			rec.VoiceID = res.Metadata.VoiceID
			log.InfoContext(ctx, "Job completed", "processing_time", res.ProcessingTime, "renderer", res.Metadata.Renderer)
		}
		o.registry.Remove(job.SessionID)

		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if herr := o.deps.History.Finish(hctx, rec); herr != nil {
			log.WarnContext(ctx, "Record job outcome failed", "error", herr)
		}
	}()

	if job.Request.UseTavus {
		return o.runHosted(ctx, job)
	}
	return o.runLocal(ctx, job, log)
}

func (o *Orchestrator) runLocal(ctx context.Context, job *Job, log *slog.Logger) (*Result, error) {
	req := job.Request
	avatarPath := job.scratch.Path("avatar.jpg")
	audioPath := job.scratch.Path(audioName)
	videoPath := job.scratch.Path("output.mp4")
	// Written by the tempo pass when the speed is not native to the provider.
	job.scratch.Path(media.TempoPath(audioName))

	// 1. Avatar.
	err := o.stage(ctx, StageFetch, o.opts.FetchTimeout, func(ctx context.Context) error {
		if err := os.MkdirAll(o.opts.TempDir, 0o755); err != nil {
			return err
		}
		_, err := o.deps.Fetcher.Fetch(ctx, req.AvatarURL, avatarPath, "image/")
		return err
	})
	if err != nil {
		return nil, &PipelineError{Stage: StageFetch, Message: "Failed to download avatar image", Err: err}
	}

	// 2. Voice. A failed clone falls back to the requested or default voice.
	voiceID := req.VoiceOptions.VoiceID
	cloned := false
	if req.VoiceOptions.VoiceSampleURL != "" {
		if id := o.cloneVoice(ctx, job, log); id != "" {
			voiceID = id
			cloned = true
		}
	}

	// 3. Speech.
	err = o.stage(ctx, StageSynthesis, o.opts.SynthesisTimeout, func(ctx context.Context) error {
		return o.deps.Speech.Synthesize(ctx, req.Script, tts.VoiceConfig{
			Language: req.LanguageTag(),
			Speed:    req.Speed(),
			VoiceID:  voiceID,
		}, audioPath)
	})
	if err != nil {
		return nil, &PipelineError{Stage: StageSynthesis, Message: "Failed to generate TTS audio", Err: err}
	}

	// 4. Video. Renderer stages carry their own budgets and the chain always
	// ends in a placeholder, so only a hard failure reaches here.
	var renderer string
	err = o.stage(ctx, StageRender, 0, func(ctx context.Context) error {
		var err error
		renderer, err = o.deps.Renderer.Render(ctx, avatarPath, audioPath, videoPath)
		return err
	})
	if err != nil {
		return nil, &PipelineError{Stage: StageRender, Message: "Failed to generate video", Err: err}
	}

	// 5. Publish both assets.
	var videoURL, audioURL string
	err = o.stage(ctx, StagePublish, o.opts.PublishTimeout, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			videoURL, err = o.deps.Publisher.Publish(gctx, videoPath, storage.VideoKey(job.SessionID, job.StartedAt))
			return err
		})
		g.Go(func() error {
			var err error
			audioURL, err = o.deps.Publisher.Publish(gctx, audioPath, storage.AudioKey(job.SessionID, filepath.Ext(audioPath), job.StartedAt))
			return err
		})
		return g.Wait()
	})
	if err == nil && (videoURL == "" || audioURL == "") {
		err = errors.New("publisher returned an empty url")
	}
	if err != nil {
		return nil, &PipelineError{Stage: StagePublish, Message: "Failed to upload generated files", Err: err}
	}

	// 6. Duration.
	duration, source := o.deps.Prober.Duration(ctx, audioPath, req.Script)

	return &Result{
		SessionID:      job.SessionID,
		VideoURL:       videoURL,
		AudioURL:       audioURL,
		Duration:       duration,
		ProcessingTime: o.elapsed(job),
		Metadata:       o.metadata(req, cloned, voiceID, renderer, source),
	}, nil
}

// cloneVoice downloads the voice sample and registers it with the speech
// provider. It returns "" when any part of that fails.
func (o *Orchestrator) cloneVoice(ctx context.Context, job *Job, log *slog.Logger) string {
	ctx, span := tracer.Start(ctx, "job.clone_voice")
	defer span.End()

	cloner, ok := tts.SupportsCloning(o.deps.Speech)
	if !ok {
		log.WarnContext(ctx, "Voice cloning not available, using default voice")
		return ""
	}

	samplePath := job.scratch.Path("voice_sample.mp3")
	fctx, cancel := withTimeout(ctx, o.opts.FetchTimeout)
	_, err := o.deps.Fetcher.Fetch(fctx, job.Request.VoiceOptions.VoiceSampleURL, samplePath, "audio/")
	cancel()
	if err != nil {
		span.RecordError(err)
		log.WarnContext(ctx, "Voice sample download failed, using default voice", "error", err)
		return ""
	}

	cctx, cancel := withTimeout(ctx, o.opts.SynthesisTimeout)
	defer cancel()
	id, err := cloner.CloneVoice(cctx, samplePath, "user_voice_"+job.SessionID)
	if err != nil {
		span.RecordError(err)
		log.WarnContext(ctx, "Voice cloning failed, using default voice", "error", err)
		return ""
	}
	log.InfoContext(ctx, "Voice cloned", "voice_id", id)
	return id
}

func (o *Orchestrator) runHosted(ctx context.Context, job *Job) (*Result, error) {
	req := job.Request
	var videoURL string
	err := o.stage(ctx, StageTavus, o.opts.HostedTimeout, func(ctx context.Context) error {
		var err error
		videoURL, err = o.deps.Hosted.Generate(ctx, req.Script, req.AvatarURL, req.VoiceOptions.VoiceID)
		return err
	})
	if err != nil {
		return nil, &PipelineError{Stage: StageTavus, Message: "Tavus video generation failed", Err: err}
	}

	return &Result{
		SessionID:      job.SessionID,
		VideoURL:       videoURL,
		AudioURL:       videoURL,
		Duration:       media.EstimateDuration(req.Script),
		ProcessingTime: o.elapsed(job),
		Metadata:       o.metadata(req, false, req.VoiceOptions.VoiceID, StageTavus, media.SourceEstimate),
	}, nil
}

// stage runs fn in its own span under an optional timeout.
func (o *Orchestrator) stage(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "job."+name)
	defer span.End()

	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
		return err
	}
	o.log.DebugContext(ctx, "Stage complete", "stage", name, "elapsed", time.Since(start).Round(time.Millisecond).String())
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (o *Orchestrator) elapsed(job *Job) float64 {
	return math.Round(o.now().Sub(job.StartedAt).Seconds()*100) / 100
}

func (o *Orchestrator) metadata(req GenerationRequest, cloned bool, voiceID, renderer, source string) Metadata {
	return Metadata{
		ScriptLength:   len([]rune(req.Script)),
		VoiceLanguage:  req.LanguageTag(),
		VoiceSpeed:     req.Speed(),
		VoiceCloned:    cloned,
		VoiceID:        voiceID,
		Renderer:       renderer,
		DurationSource: source,
		Timestamp:      o.now().UTC().Format(time.RFC3339),
	}
}

// DescribeActiveJobs lists the jobs currently running.
func (o *Orchestrator) DescribeActiveJobs() []JobInfo {
	return o.registry.Snapshot(o.now())
}

// JobStatus returns the state of a running or finished job.
func (o *Orchestrator) JobStatus(ctx context.Context, sessionID string) (history.Record, error) {
	if j, ok := o.registry.Get(sessionID); ok {
		return history.Record{
			SessionID: j.SessionID,
			LessonID:  j.LessonID(),
			Status:    j.Status(),
			StartedAt: j.StartedAt,
		}, nil
	}
	return o.deps.History.Get(ctx, sessionID)
}

// CleanupVoice deletes a previously cloned voice.
func (o *Orchestrator) CleanupVoice(ctx context.Context, voiceID string) error {
	cloner, ok := tts.SupportsCloning(o.deps.Speech)
	if !ok {
		return tts.ErrCloningUnsupported
	}
	if err := cloner.DeleteVoice(ctx, voiceID); err != nil {
		return err
	}
	o.log.InfoContext(ctx, "Voice deleted", "voice_id", voiceID)
	return nil
}

// Stats is the operational snapshot served by /stats.
type Stats struct {
	ActiveJobs         int      `json:"active_jobs"`
	MaxConcurrentJobs  int      `json:"max_concurrent_jobs"`
	S3Available        bool     `json:"s3_available"`
	TempDirSize        int64    `json:"temp_dir_size"`
	SupportedLanguages []string `json:"supported_languages"`
	MaxScriptLength    int      `json:"max_script_length"`
	Renderer           string   `json:"renderer"`
	TTSProvider        string   `json:"tts_provider"`
	TavusEnabled       bool     `json:"tavus_enabled"`
}

func (o *Orchestrator) Stats() Stats {
	return Stats{
		ActiveJobs:         o.registry.Len(),
		MaxConcurrentJobs:  o.registry.Limit(),
		S3Available:        o.deps.Publisher != nil && o.deps.Publisher.Available(),
		TempDirSize:        dirSize(o.opts.TempDir),
		SupportedLanguages: o.opts.SupportedLanguages,
		MaxScriptLength:    o.opts.MaxScriptLength,
		Renderer:           o.opts.RendererName,
		TTSProvider:        o.opts.TTSProvider,
		TavusEnabled:       o.deps.Hosted != nil && o.deps.Hosted.Configured(),
	}
}

func dirSize(dir string) int64 {
	var total int64
	filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
