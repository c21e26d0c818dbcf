package logger

import (
	"log/slog"
	"strings"
)

// Sensitive attribute name patterns. Plain "key" is deliberately absent:
// configuration keys are logged by name.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"key_material",
	"encryption_key",
	"credential",
	"salt",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive redacts attributes whose name suggests secret content.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if !IsSensitiveKey(a.Key) {
		return a
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() == "" {
			return a
		}
	case slog.KindAny:
		if b, ok := a.Value.Any().([]byte); ok && len(b) == 0 {
			return a
		}
	}
	return slog.String(a.Key, redactedValue)
}

// IsSensitiveKey checks if an attribute or field name suggests secret content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// Mask hides all but the first and last two characters of value.
func Mask(value string) string {
	if len(value) <= 6 {
		return "***"
	}
	return value[:2] + "..." + value[len(value)-2:]
}
