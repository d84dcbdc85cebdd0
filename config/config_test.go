package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.BindAddr)
	assert.Equal(t, "data/processed/actuators.db", cfg.SQLitePath)
	assert.Equal(t, "data/processed/chroma", cfg.ChromaDir)
	assert.Equal(t, "actuators", cfg.ChromaCollection)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.AnthropicModel)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.EmbeddingDimensions)
	assert.Equal(t, 3, cfg.MaxRounds)
	assert.Equal(t, 10, cfg.MaxTurns)
	assert.Equal(t, 1024, cfg.MaxConversations)
	assert.Equal(t, 60*time.Second, cfg.DeciderTimeout)
	assert.False(t, cfg.Debug)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("APP_DEBUG", "true")
	t.Setenv("AGENT_MAX_ROUNDS", "5")
	t.Setenv("AGENT_DECIDER_TIMEOUT", "90s")
	t.Setenv("OPENAI_EMBEDDING_DIMENSIONS", "768")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.BindAddr)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 5, cfg.MaxRounds)
	assert.Equal(t, 90*time.Second, cfg.DeciderTimeout)
	assert.Equal(t, 768, cfg.EmbeddingDimensions)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"AGENT_MAX_ROUNDS", "0"},
		{"AGENT_MAX_ROUNDS", "not-a-number"},
		{"AGENT_MAX_HISTORY_TURNS", "-1"},
		{"AGENT_DECIDER_TIMEOUT", "500ms"},
		{"APP_DEBUG", "maybe"},
		{"OPENAI_EMBEDDING_DIMENSIONS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
