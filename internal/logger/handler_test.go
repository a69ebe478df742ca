package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrettyHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	log.Debug("hidden")
	require.Zero(t, buf.Len())

	log.With("component", "session").Info("login succeeded", "user_id", 7)
	out := buf.String()
	require.Contains(t, out, "[session]")
	require.Contains(t, out, "login succeeded")
	require.Contains(t, out, "user_id")
	require.NotContains(t, out, "component")

	buf.Reset()
	log.WithGroup("http").Warn("slow", "path", "/gigs/")
	require.Contains(t, buf.String(), "http.path")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
