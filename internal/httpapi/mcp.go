package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/apresai/talkinghead/internal/history"
	"github.com/apresai/talkinghead/internal/orchestrator"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("talkinghead/httpapi")

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "generate_video",
			Description: "Generate a talking-head video from a script and an avatar image URL. Runs synchronously and returns the video and audio URLs.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"script": map[string]any{
						"type":        "string",
						"description": "Text the avatar should speak",
					},
					"avatar_url": map[string]any{
						"type":        "string",
						"description": "HTTP/HTTPS URL of the avatar image",
					},
					"language": map[string]any{
						"type":        "string",
						"description": "Voice language tag, e.g. en-US",
						"default":     orchestrator.DefaultLanguage,
					},
					"speed": map[string]any{
						"type":        "number",
						"description": "Speech speed multiplier (0.5-2.0)",
						"default":     orchestrator.DefaultSpeed,
					},
					"voice_id": map[string]any{
						"type":        "string",
						"description": "Provider voice ID to use instead of the default voice",
					},
					"voice_sample_url": map[string]any{
						"type":        "string",
						"description": "URL of a short voice sample to clone",
					},
					"lesson_id": map[string]any{
						"type":        "string",
						"description": "Caller label stored with the job",
					},
					"use_tavus": map[string]any{
						"type":        "boolean",
						"description": "Render with the hosted Tavus service",
						"default":     false,
					},
				},
				Required: []string{"script", "avatar_url"},
			},
		},
		{
			Name:        "list_active_jobs",
			Description: "List the generation jobs currently running, with elapsed time in seconds.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
		},
		{
			Name:        "get_job_status",
			Description: "Get the status of a generation job by session ID, including URLs once it has completed.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"session_id": map[string]any{
						"type":        "string",
						"description": "The session_id returned by generate_video",
					},
				},
				Required: []string{"session_id"},
			},
		},
	}
}

// Tools contains MCP tool handler implementations.
type Tools struct {
	orch *orchestrator.Orchestrator
	log  *slog.Logger
}

func NewTools(orch *orchestrator.Orchestrator, logger *slog.Logger) *Tools {
	return &Tools{orch: orch, log: logger}
}

// NewMCPServer registers the tools on a new MCP server.
func NewMCPServer(orch *orchestrator.Orchestrator, name, version string, logger *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(true))
	tools := NewTools(orch, logger)
	defs := ToolDefs()
	s.AddTool(defs[0], tools.HandleGenerateVideo)
	s.AddTool(defs[1], tools.HandleListActiveJobs)
	s.AddTool(defs[2], tools.HandleGetJobStatus)
	return s
}

// NewMCPHandler serves the tools over stateless streamable HTTP.
func NewMCPHandler(orch *orchestrator.Orchestrator, name, version string, logger *slog.Logger) http.Handler {
	return server.NewStreamableHTTPServer(NewMCPServer(orch, name, version, logger),
		server.WithStateLess(true),
	)
}

// HandleGenerateVideo admits and runs one job.
func (t *Tools) HandleGenerateVideo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.generate_video")
	defer span.End()

	genReq := orchestrator.GenerationRequest{
		Script:    mcp.ParseString(req, "script", ""),
		AvatarURL: mcp.ParseString(req, "avatar_url", ""),
		VoiceOptions: orchestrator.VoiceOptions{
			Language:       mcp.ParseString(req, "language", ""),
			VoiceID:        mcp.ParseString(req, "voice_id", ""),
			VoiceSampleURL: mcp.ParseString(req, "voice_sample_url", ""),
		},
		LessonID: mcp.ParseString(req, "lesson_id", ""),
		UseTavus: mcp.ParseBoolean(req, "use_tavus", false),
	}
	if _, ok := req.GetArguments()["speed"]; ok {
		speed := mcp.ParseFloat64(req, "speed", orchestrator.DefaultSpeed)
		genReq.VoiceOptions.Speed = &speed
	}

	job, err := t.orch.AdmitRequest(ctx, genReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "admit failed")
		return mcp.NewToolResultError(orchestrator.PublicMessage(err)), nil
	}
	span.SetAttributes(attribute.String("session_id", job.SessionID))

	res, err := t.orch.Run(ctx, job)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return mcp.NewToolResultError(fmt.Sprintf("session %s: %s", job.SessionID, orchestrator.PublicMessage(err))), nil
	}
	return jsonResult(res)
}

func (t *Tools) HandleListActiveJobs(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.list_active_jobs")
	defer span.End()

	jobs := t.orch.DescribeActiveJobs()
	span.SetAttributes(attribute.Int("result_count", len(jobs)))
	return jsonResult(map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func (t *Tools) HandleGetJobStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.get_job_status")
	defer span.End()

	id := mcp.ParseString(req, "session_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing session_id")
		return mcp.NewToolResultError("session_id is required"), nil
	}
	span.SetAttributes(attribute.String("session_id", id))

	rec, err := t.orch.JobStatus(ctx, id)
	if errors.Is(err, history.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("job %s not found", id)), nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get job failed")
		t.log.ErrorContext(ctx, "Job lookup failed", "session_id", id, "error", err)
		return mcp.NewToolResultError("failed to get job status"), nil
	}
	return jsonResult(rec)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
