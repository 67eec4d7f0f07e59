package utils

import (
	"time"
)

// EpochSeconds returns t as fractional Unix seconds, or 0 for the zero time.
func EpochSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

// Iso8601 formats t in UTC, or returns "" for the zero time.
func Iso8601(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Iso8601FromUnixSeconds converts Unix timestamp to ISO8601 format
func Iso8601FromUnixSeconds(sec int64) string {
	if sec <= 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

// ValidUntilFrom returns when data captured at base stops being reused.
func ValidUntilFrom(base time.Time, ttl time.Duration) string {
	if base.IsZero() || ttl <= 0 {
		return ""
	}
	return base.Add(ttl).UTC().Format(time.RFC3339)
}
