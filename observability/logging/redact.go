package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// MaskValue returns the canonical redacted placeholder for non-empty values.
// Empty values are returned unchanged to avoid introducing noise in logs.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskSecret returns a slog.Attr that hides the supplied value. Database DSNs
// and RPC endpoints carry embedded credentials and must never reach the log
// stream verbatim.
func MaskSecret(key, value string) slog.Attr {
	return slog.String(key, MaskValue(value))
}
