package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentTagsJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(&buf, "json"), "judge")

	log.Info().Int("language_id", 71).Msg("submission sent")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "judge", entry["component"])
	assert.Equal(t, "submission sent", entry["message"])
	assert.EqualValues(t, 71, entry["language_id"])
}

func TestPrettyFormatIsNotJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "pretty")
	log.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}
