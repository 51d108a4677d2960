package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
ai:
  models:
    - id: primary
      provider: openai
      api_url: https://api.example.com/v1
      model: gpt-4o
      enabled: true
retrieval:
  base_url: http://localhost:9200
`

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", minimalConfig)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8020", cfg.App.HTTPAddr)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 72, cfg.Session.TTLHours)
	assert.Equal(t, 10, cfg.Session.HistoryLimit)
	assert.Equal(t, "stockqa_session", cfg.Session.CookieName)
	assert.Equal(t, 30, cfg.Pipeline.WorkerTimeoutSeconds)
	assert.Equal(t, 90, cfg.Pipeline.RequestTimeoutSeconds)
	assert.Equal(t, "configs/capabilities.yaml", cfg.Pipeline.ProfilesPath)
}

func TestLoad_IncludeMerge(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", minimalConfig)
	path := writeConfig(t, dir, "config.yaml", `
include:
  - base.yaml
app:
  http_addr: ":9000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.App.HTTPAddr)
	require.Len(t, cfg.AI.Models, 1)
	assert.Equal(t, "primary", cfg.AI.Models[0].ID)
}

func TestLoad_PresetExpansion(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
ai:
  provider_presets:
    upstream:
      api_url: https://api.example.com/v1
      api_key: sk-test
  models:
    - id: primary
      provider: openai
      preset: upstream
      model: gpt-4o
      enabled: true
retrieval:
  base_url: http://localhost:9200
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	models, err := cfg.AI.ResolveModelConfigs()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1", models[0].APIURL)
	assert.Equal(t, "sk-test", models[0].APIKey)
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := map[string]string{
		"no models": `
retrieval:
  base_url: http://localhost:9200
`,
		"unknown preference": `
ai:
  provider_preference: [no-such-model]
  models:
    - id: primary
      provider: openai
      api_url: https://api.example.com/v1
      model: gpt-4o
retrieval:
  base_url: http://localhost:9200
`,
		"unknown retrieval capability": `
ai:
  models:
    - id: primary
      provider: openai
      api_url: https://api.example.com/v1
      model: gpt-4o
retrieval:
  endpoints:
    crystal-ball:
      path: /search
`,
		"history limit too small": minimalConfig + `
session:
  history_limit: 1
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
