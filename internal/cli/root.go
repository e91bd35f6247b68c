package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/apresai/talkinghead/internal/config"
	"github.com/apresai/talkinghead/internal/observability"
	"github.com/apresai/talkinghead/internal/service"
	"github.com/spf13/cobra"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           config.ServiceName,
	Short:         "Turn a script and a portrait into a talking-head video",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", config.ServiceName, Version)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Print the resolved configuration and any degraded integrations",
	RunE:  runCheck,
}

var (
	flagConfig   string
	flagEnvFile  string
	flagLogLevel string
	flagVerbose  bool
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "TOML config file (overrides TALKINGHEAD_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file read before the process environment")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func loadConfig() (config.Config, error) {
	var envFiles []string
	if flagEnvFile != "" {
		envFiles = []string{flagEnvFile}
	}
	return config.Loader{EnvFiles: envFiles, ConfigFile: flagConfig}.Load()
}

func newLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := cfg.Log.Level
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if flagVerbose {
		level = "debug"
	}
	return observability.InitLogger(observability.LogOptions{
		Level:  level,
		Format: cfg.Log.Format,
		Dir:    cfg.Paths.LogDir,
	})
}

// setup loads configuration, opens the logger and wires the service.
// The returned cleanup closes both.
func setup(ctx, baseCtx context.Context) (*service.Service, *slog.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, p := range cfg.Problems() {
		logger.WarnContext(ctx, "Configuration problem", "problem", p)
	}

	svc, err := service.Build(ctx, cfg, baseCtx, logger)
	if err != nil {
		closeLog()
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := svc.Close(); err != nil {
			logger.Warn("Service close error", "error", err)
		}
		closeLog()
	}
	return svc, logger, cleanup, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s %s\n\n", config.ServiceName, Version)
	fmt.Fprintf(out, "  %-22s %s\n", "listen", cfg.Addr())
	fmt.Fprintf(out, "  %-22s %d\n", "max concurrent jobs", cfg.Limits.MaxConcurrentJobs)
	fmt.Fprintf(out, "  %-22s %d\n", "max script length", cfg.Limits.MaxScriptLength)
	fmt.Fprintf(out, "  %-22s %v\n", "languages", cfg.Limits.SupportedLanguages)
	fmt.Fprintf(out, "  %-22s %s\n", "tts provider", cfg.TTS.Provider)
	fmt.Fprintf(out, "  %-22s %s\n", "renderer", cfg.Render.Renderer)
	fmt.Fprintf(out, "  %-22s %s (%s)\n", "video quality", cfg.Render.VideoQuality, cfg.Render.AudioBitrate)
	fmt.Fprintf(out, "  %-22s %s/%s\n", "bucket", cfg.AWS.Region, cfg.AWS.Bucket)
	fmt.Fprintf(out, "  %-22s %t\n", "tavus enabled", cfg.Tavus.APIKey != "")
	fmt.Fprintf(out, "  %-22s %s\n", "temp dir", cfg.Paths.TempDir)

	problems := cfg.Problems()
	if len(problems) == 0 {
		fmt.Fprintln(out, "\nNo configuration problems found.")
		return nil
	}
	fmt.Fprintln(out, "\nConfiguration problems:")
	for _, p := range problems {
		fmt.Fprintf(out, "  - %s\n", p)
	}
	return nil
}
