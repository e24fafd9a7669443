package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSessionTagsEveryLine(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WithSession(logger, "sess-1", "wf-main", "ASK_NAME").Info("turn handled")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	assert.Equal(t, "sess-1", line["session_id"])
	assert.Equal(t, "wf-main", line["workflow_id"])
	assert.Equal(t, "ASK_NAME", line["step_ref"])
	assert.Equal(t, "turn handled", line["msg"])
}
