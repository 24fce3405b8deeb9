package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, level string) Logger {
	return New(Config{Level: level, Format: "json", Output: buf})
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &rec))
	return rec
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "warn")
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown", "provider", "a")
	rec := lastRecord(t, &buf)
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "a", rec["provider"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: "info", Format: "text", Output: &buf}).Info("hello", "file", "settings")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "file=settings")
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "debug")

	l.Info("stored", "api_key", "plain-value", "value", "sk-abcdefgh1234", "provider", "a")
	rec := lastRecord(t, &buf)
	assert.Equal(t, redactedValue, rec["api_key"])
	assert.Equal(t, "****1234", rec["value"])
	assert.Equal(t, "a", rec["provider"])

	l.With("auth_token", "sess-zzzz9999").Info("with")
	rec = lastRecord(t, &buf)
	assert.Equal(t, "****9999", rec["auth_token"])
	assert.NotContains(t, buf.String(), "sk-abcdefgh1234")
}

func TestSensitiveHelpers(t *testing.T) {
	assert.True(t, IsSensitiveKey("OPENAI_API_KEY"))
	assert.True(t, IsSensitiveKey("Password"))
	assert.False(t, IsSensitiveKey("provider"))
	assert.True(t, IsSensitiveValue("sk-123"))
	assert.False(t, IsSensitiveValue("https://api.example.com"))
}

func TestDegraded(t *testing.T) {
	var buf bytes.Buffer
	Degraded(jsonLogger(&buf, "warn"), "verify_mismatch", "read-back differs", "provider", "a")
	rec := lastRecord(t, &buf)
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "degraded", rec["event"])
	assert.Equal(t, "verify_mismatch", rec["outcome"])
}

func TestContextAndDefault(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info")

	assert.Equal(t, Default(), FromContext(context.Background()))
	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("from ctx")
	assert.Contains(t, buf.String(), "from ctx")

	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })
	SetDefault(l)
	Default().Info("via default")
	assert.Contains(t, buf.String(), "via default")
	SetDefault(nil)
	assert.Equal(t, l, Default())
}
