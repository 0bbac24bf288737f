package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema(t *testing.T) {
	data, err := json.Marshal(Schema())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "rpcwarden configuration", doc["title"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, section := range []string{"logging", "telemetry", "metrics", "engine", "lifecycle"} {
		assert.Contains(t, props, section)
	}

	lifecycle := props["lifecycle"].(map[string]any)["properties"].(map[string]any)
	interval := lifecycle["check_interval"].(map[string]any)
	assert.Equal(t, "string", interval["type"])

	engine := props["engine"].(map[string]any)["properties"].(map[string]any)
	frame := engine["max_frame_size"].(map[string]any)
	assert.Equal(t, "string", frame["type"])
}
