package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// sensitiveKeys are applicant identity attributes that never reach the log
// sink in clear text.
var sensitiveKeys = map[string]bool{
	"name":             true,
	"applicant_name":   true,
	"email":            true,
	"phone":            true,
	"pan":              true,
	"aadhaar":          true,
	"declared_pan":     true,
	"declared_aadhaar": true,
}

func NewJSONLogger(service, level string) *slog.Logger {
	return newJSONLogger(os.Stdout, service, level)
}

func newJSONLogger(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: redact,
	})
	return slog.New(handler).With("service", service)
}

func redact(_ []string, attr slog.Attr) slog.Attr {
	if !sensitiveKeys[strings.ToLower(attr.Key)] {
		return attr
	}
	return slog.String(attr.Key, Mask(attr.Value.String()))
}

// Mask keeps the last four characters of identifiers long enough to stay
// anonymous and hides shorter values entirely.
func Mask(value string) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) == 0 {
		return ""
	}
	if len(runes) < 8 {
		return "****"
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
