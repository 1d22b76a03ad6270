package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerologLogger(zerolog.New(&buf))

	log.Info(context.Background(), "flushed", "applied", 2, "error", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, `"message":"flushed"`)
	assert.Contains(t, out, `"applied":2`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestZerologLogger_WithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerologLogger(zerolog.New(&buf)).With("component", "sync")

	log.Warn(context.Background(), "kept")

	assert.Contains(t, buf.String(), `"component":"sync"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestZerologConsole_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerologConsole(&buf, "warn")
	ctx := context.Background()

	log.Info(ctx, "hidden")
	log.Error(ctx, "shown", "op", "CREATE")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "op=CREATE")
}

func TestNormalize_PadsOddArgs(t *testing.T) {
	got := normalize([]any{"k"})
	assert.Equal(t, []any{"k", "!MISSING"}, got)
}

func TestZerologConsole_UnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerologConsole(&buf, "loud")
	ctx := context.Background()

	log.Debug(ctx, "hidden")
	log.Info(ctx, "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
