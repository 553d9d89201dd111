package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, 4000, cfg.Agent.MaxContextChars)
	assert.Equal(t, 20, cfg.Retrieval.TopK)
	assert.Equal(t, 5, cfg.Retrieval.RerankTopK)
	assert.InDelta(t, 0.3, cfg.Retrieval.KeywordWeight, 1e-9)
	assert.InDelta(t, 0.7, cfg.Retrieval.RoutingThreshold, 1e-9)
	assert.InDelta(t, 0.7, cfg.Rerank.BlendRatio, 1e-9)
	assert.Equal(t, "researchd", cfg.Observability.ServiceName)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
agent:
  max_iterations: 3
retrieval:
  routing_threshold: 0.5
planner:
  api_key: sk-test
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Agent.MaxIterations)
	assert.InDelta(t, 0.5, cfg.Retrieval.RoutingThreshold, 1e-9)
	assert.Equal(t, "sk-test", cfg.Planner.APIKey.Value())
	// Defaults still applied for unset fields.
	assert.Equal(t, 20, cfg.Retrieval.TopK)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative port", func(c *Config) { c.Server.Port = -1 }},
		{"threshold above one", func(c *Config) { c.Retrieval.RoutingThreshold = 1.5 }},
		{"negative keyword weight", func(c *Config) { c.Retrieval.KeywordWeight = -0.1 }},
		{"blend ratio above one", func(c *Config) { c.Rerank.BlendRatio = 2 }},
		{"zero iterations", func(c *Config) { c.Agent.MaxIterations = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("45s")))
	assert.Equal(t, 45*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("nonsense")))
}
