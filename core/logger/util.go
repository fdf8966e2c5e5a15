package logger

import (
	"strings"
	"time"
)

// Status maps error to a unified status string for logs.
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

// Took returns rounded duration since start for compact logging.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds duration to the nearest millisecond for consistent logging.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins up to limit elements and reports whether
// anything was cut off.
func SummarizeStrings(values []string, limit int) (string, bool) {
	switch {
	case limit <= 0:
		return "", len(values) > 0
	case len(values) <= limit:
		return strings.Join(values, ", "), false
	default:
		return strings.Join(values[:limit], ", "), true
	}
}
