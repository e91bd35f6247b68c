package config

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretGetter is the subset of the Secrets Manager client used here.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadSecrets fills API keys that are not already set from Secrets Manager
// entries named prefix+KEY. Missing secrets are logged and skipped.
func LoadSecrets(ctx context.Context, client SecretGetter, cfg *Config, logger *slog.Logger) {
	prefix := cfg.AWS.SecretPrefix
	if prefix == "" || client == nil {
		return
	}

	targets := map[string]*string{
		"ELEVENLABS_API_KEY": &cfg.TTS.ElevenLabsAPIKey,
		"TAVUS_API_KEY":      &cfg.Tavus.APIKey,
	}

	for name, target := range targets {
		// Environment values win.
		if *target != "" {
			continue
		}
		secretID := prefix + name
		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: &secretID,
		})
		if err != nil {
			logger.Info("Secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if result.SecretString != nil {
			*target = *result.SecretString
			logger.Info("Loaded secret", "secret_id", secretID)
		}
	}
}
