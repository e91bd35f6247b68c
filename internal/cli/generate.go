package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/apresai/talkinghead/internal/orchestrator"
	"github.com/spf13/cobra"
)

var (
	flagScript      string
	flagScriptFile  string
	flagAvatar      string
	flagLanguage    string
	flagSpeed       float64
	flagVoiceID     string
	flagVoiceSample string
	flagLessonID    string
	flagTavus       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one video locally and print the result as JSON",
	RunE:  runGenerate,
}

var cleanupVoiceCmd = &cobra.Command{
	Use:   "cleanup-voice <voice-id>",
	Short: "Delete a cloned voice from the TTS provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runCleanupVoice,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(cleanupVoiceCmd)
	generateCmd.Flags().StringVarP(&flagScript, "script", "s", "", "Text the avatar should speak")
	generateCmd.Flags().StringVarP(&flagScriptFile, "script-file", "f", "", "Read the script from a file")
	generateCmd.Flags().StringVarP(&flagAvatar, "avatar", "a", "", "Avatar image URL (http or https)")
	generateCmd.Flags().StringVarP(&flagLanguage, "language", "l", orchestrator.DefaultLanguage, "Voice language tag")
	generateCmd.Flags().Float64Var(&flagSpeed, "speed", orchestrator.DefaultSpeed, "Speech speed (0.5-2.0)")
	generateCmd.Flags().StringVar(&flagVoiceID, "voice-id", "", "Provider voice ID")
	generateCmd.Flags().StringVar(&flagVoiceSample, "voice-sample", "", "URL of a voice sample to clone")
	generateCmd.Flags().StringVar(&flagLessonID, "lesson-id", "", "Label stored with the job")
	generateCmd.Flags().BoolVar(&flagTavus, "tavus", false, "Render with the hosted Tavus service")
	generateCmd.MarkFlagsMutuallyExclusive("script", "script-file")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	text, err := scriptText()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, logger, cleanup, err := setup(ctx, context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	speed := flagSpeed
	req := orchestrator.GenerationRequest{
		Script:    text,
		AvatarURL: flagAvatar,
		VoiceOptions: orchestrator.VoiceOptions{
			Language:       flagLanguage,
			Speed:          &speed,
			VoiceID:        flagVoiceID,
			VoiceSampleURL: flagVoiceSample,
		},
		LessonID: flagLessonID,
		UseTavus: flagTavus,
	}

	job, err := svc.Orchestrator.AdmitRequest(ctx, req)
	if err != nil {
		return errors.New(orchestrator.PublicMessage(err))
	}
	logger.Info("Generating video", "session_id", job.SessionID)

	res, err := svc.Orchestrator.Run(ctx, job)
	if err != nil {
		return fmt.Errorf("session %s: %w", job.SessionID, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func scriptText() (string, error) {
	if flagScriptFile == "" {
		return flagScript, nil
	}
	data, err := os.ReadFile(flagScriptFile)
	if err != nil {
		return "", fmt.Errorf("read script file: %w", err)
	}
	return string(data), nil
}

func runCleanupVoice(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, logger, cleanup, err := setup(ctx, context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Orchestrator.CleanupVoice(ctx, args[0]); err != nil {
		return fmt.Errorf("delete voice %s: %w", args[0], err)
	}
	logger.Info("Voice deleted", "voice_id", args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted voice %s\n", args[0])
	return nil
}
