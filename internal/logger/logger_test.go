package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONLoggerRedactsSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "info", "json")

	log.Info("login attempt",
		slog.String("username", "alice"),
		slog.String("password", "Str0ng!Passw0rd"),
		slog.String("refreshToken", "eyJhbGciOi"),
		slog.Group("request", slog.String("Authorization", "Bearer abc")),
	)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "alice", record["username"])
	require.Equal(t, redacted, record["password"])
	require.Equal(t, redacted, record["refreshToken"])
	require.Equal(t, redacted, record["request"].(map[string]any)["Authorization"])
	require.NotContains(t, buf.String(), "Str0ng!Passw0rd")
}

func TestPrettyLoggerRedactsSecrets(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "debug", "pretty").With(slog.String("token", "abc.def.ghi"))

	log.Debug("verifying", slog.String("ip", "10.0.0.1"))

	out := buf.String()
	require.Contains(t, out, "verifying")
	require.Contains(t, out, "10.0.0.1")
	require.Contains(t, out, redacted)
	require.NotContains(t, out, "abc.def.ghi")
}

func TestPrettyLoggerRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "warn", "pretty")

	log.Info("hidden")
	log.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestPrettyLoggerGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "info", "pretty").WithGroup("req")

	log.Info("done", slog.Int("status", 200))

	require.Contains(t, buf.String(), "req.status")
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	scoped := New(&buf, "info", "json").With(slog.String("request_id", "req-1"))

	ctx := IntoContext(context.Background(), scoped)
	FromContext(ctx).Info("hello")

	require.Contains(t, buf.String(), "req-1")
	require.Equal(t, slog.Default(), FromContext(context.Background()))
}
