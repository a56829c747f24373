package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeLogsRequestAndError(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("debug", false, &buf)
	ctx := WithRequestID(context.Background(), "r-1")

	err := errors.New("boom")
	Time(ctx, log, "solve")(&err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "r-1", line["req_id"])
	assert.Equal(t, "solve", line["op"])
	assert.Equal(t, "boom", line["error"])
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("warn", false, &buf)
	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log = NewLogger("bogus", false, &buf)
	log.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestRequestIDMissing(t *testing.T) {
	assert.Equal(t, "", RequestID(context.Background()))
}
