package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		flagConfig, flagEnvFile = "", ".env"
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "talkinghead "+Version+"\n", out)
}

func TestCheckReportsConfigAndProblems(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talkinghead.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 6001

[render]
renderer = "ffmpeg"
`), 0o644))
	t.Setenv("ELEVENLABS_API_KEY", "")
	t.Setenv("TTS_PROVIDER", "elevenlabs")
	t.Setenv("PORT", "")
	t.Setenv("RENDERER", "")

	out, err := execute(t, "check", "--config", path, "--env-file", filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Contains(t, out, ":6001")
	assert.Contains(t, out, "ffmpeg")
	assert.Contains(t, out, "ELEVENLABS_API_KEY not set")
}

func TestCheckInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 0\n"), 0o644))
	t.Setenv("PORT", "")

	_, err := execute(t, "check", "--config", path, "--env-file", filepath.Join(dir, "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestGenerateScriptFlagsExclusive(t *testing.T) {
	_, err := execute(t, "generate", "--script", "hi", "--script-file", "x.txt")
	require.Error(t, err)
}
