package engine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ronwebb/pixtell/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pixtell.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_ExpandsEnv(t *testing.T) {
	t.Setenv("HF_TOKEN", "hf_secret")

	path := writeConfig(t, `
hub:
  token: ${HF_TOKEN}
models:
  caption: Salesforce/blip-image-captioning-large
  vqa: Salesforce/blip-vqa-base
retry:
  max_retries: 5
  base_delay: 500ms
`)

	cfg, err := engine.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "hf_secret", cfg.Hub.Token)
	assert.Equal(t, "Salesforce/blip-image-captioning-large", cfg.Models.Caption)
	assert.Equal(t, "Salesforce/blip-vqa-base", cfg.Models.VQA)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, "500ms", cfg.Retry.BaseDelay)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := engine.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := writeConfig(t, "hub: [not a map")

	_, err := engine.LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadConfigOrDefault_FallsBack(t *testing.T) {
	t.Setenv("HF_TOKEN", "hf_from_env")

	cfg, err := engine.LoadConfigOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "hf_from_env", cfg.Hub.Token)
	assert.Equal(t, "Salesforce/blip-image-captioning-large", cfg.Models.Caption)
	assert.Equal(t, "Salesforce/blip-vqa-base", cfg.Models.VQA)
}

func TestValidate_MissingToken(t *testing.T) {
	// An unset HF_TOKEN expands to the empty string, which must fail before
	// any hub call could be attempted.
	var cfg engine.Config

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HF_TOKEN")
}

func TestValidate_BadDurations(t *testing.T) {
	cfg := engine.Config{}
	cfg.Hub.Token = "tok"
	cfg.Retry.BaseDelay = "soon"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_delay")

	cfg.Retry.BaseDelay = "1s"
	cfg.Hub.Timeout = "whenever"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestValidate_OK(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Hub.Token = "tok"
	cfg.Retry.BaseDelay = "1s"
	cfg.Hub.Timeout = "2m"

	assert.NoError(t, cfg.Validate())
}
