package logger

import (
	"log/slog"
	"strings"

	"codexmate/internal/util"
)

// API keys handed to codex usually carry one of these prefixes.
var sensitiveValuePrefixes = []string{
	"sk-",
	"sess-",
}

var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
}

const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		v := a.Value.String()
		if IsSensitiveValue(v) {
			return slog.String(a.Key, util.Mask(v))
		}
		if v != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// IsSensitiveKey reports whether an attribute key names secret material.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, p := range sensitiveKeyPatterns {
		if strings.Contains(k, p) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether a value looks like an API key.
func IsSensitiveValue(value string) bool {
	for _, p := range sensitiveValuePrefixes {
		if strings.HasPrefix(value, p) {
			return true
		}
	}
	return false
}
