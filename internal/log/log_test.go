package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"parallel-ytdl/internal/log"
)

func TestContextAttrsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, false, "json")

	ctx := log.ContextAttrs(context.Background(), slog.String("run_id", "r1"))
	ctx = log.ContextAttrs(ctx, slog.Int("worker", 2))
	logger.InfoContext(ctx, "job started", "url", "https://youtu.be/dQw4w9WgXcQ")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "job started", rec["msg"])
	require.Equal(t, "r1", rec["run_id"])
	require.EqualValues(t, 2, rec["worker"])
	require.Equal(t, "https://youtu.be/dQw4w9WgXcQ", rec["url"])
}

func TestContextAttrsDoNotLeakBetweenBranches(t *testing.T) {
	base := log.ContextAttrs(context.Background(), slog.String("run_id", "r1"))
	a := log.ContextAttrs(base, slog.Int("worker", 1))
	b := log.ContextAttrs(base, slog.Int("worker", 2))

	var bufA, bufB bytes.Buffer
	log.New(&bufA, false, "json").InfoContext(a, "x")
	log.New(&bufB, false, "json").InfoContext(b, "x")

	var recA, recB map[string]any
	require.NoError(t, json.Unmarshal(bufA.Bytes(), &recA))
	require.NoError(t, json.Unmarshal(bufB.Bytes(), &recB))
	require.EqualValues(t, 1, recA["worker"])
	require.EqualValues(t, 2, recB["worker"])
}

func TestVerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	log.New(&buf, false, "text").Debug("hidden")
	require.Empty(t, buf.String())

	log.New(&buf, true, "text").Debug("shown")
	require.Contains(t, buf.String(), "msg=shown")
}
