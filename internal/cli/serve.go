package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apresai/talkinghead/internal/config"
	"github.com/apresai/talkinghead/internal/httpapi"
	"github.com/apresai/talkinghead/internal/observability"
	"github.com/spf13/cobra"
)

const shutdownGrace = 30 * time.Second

var flagNoMCP bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and MCP endpoint",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&flagNoMCP, "no-mcp", false, "Do not serve MCP tools at /mcp")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Jobs outlive their request but end when the process is told to stop.
	baseCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	svc, logger, cleanup, err := setup(ctx, baseCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	if observability.TracingEnabled() {
		tp, err := observability.InitTracer(ctx, config.ServiceName, Version)
		if err != nil {
			logger.Warn("Failed to init tracer, continuing without tracing", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					logger.Error("Tracer shutdown error", "error", err)
				}
			}()
		}
	}

	cfg := svc.Config
	ffmpegOK := svc.Tools.FFmpegAvailable()
	if !ffmpegOK {
		logger.Warn("ffmpeg not found, videos will be placeholders")
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.NewRouter(svc.Orchestrator, httpapi.Options{
			Service:           config.ServiceName,
			Version:           Version,
			FFmpegAvailable:   ffmpegOK,
			RateLimitRequests: cfg.Server.RateLimitRequests,
			RateLimitWindow:   cfg.Server.RateLimitWindow.Duration(),
			DisableMCP:        flagNoMCP,
		}, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Limits.RequestTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Talkinghead server starting", "addr", srv.Addr, "version", Version,
			"renderer", cfg.Render.Renderer, "tts_provider", cfg.TTS.Provider)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received, waiting for active jobs...",
		"active_jobs", svc.Orchestrator.Registry().Len())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown timed out, cancelling jobs", "error", err)
	}
	cancelJobs()
	logger.Info("Shutdown complete")
	return nil
}
