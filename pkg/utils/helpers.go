package utils

import (
	"regexp"
	"strings"
	"time"
)

var unsafeFilenameChars = regexp.MustCompile(`[\\/:"*?<>|]`)

// SanitizeFilename replaces characters that are not legal in file names
// with an underscore. Invoice numbers routinely contain slashes
// (e.g. "INV/2024/0042"), which would otherwise create directories.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// ParseDuration parses a duration string like "5m", falling back to the
// given default on empty or malformed input.
func ParseDuration(d string, fallback time.Duration) time.Duration {
	if d == "" {
		return fallback
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return fallback
	}
	return duration
}

// CompactDate formats an instant as YYYYMMDD, the date segment used in
// exported invoice file names.
func CompactDate(t time.Time) string {
	return t.Format("20060102")
}

// NormalizeCountry maps empty or missing country values to the UNKNOWN
// partition segment.
func NormalizeCountry(country string) string {
	c := strings.TrimSpace(country)
	if c == "" {
		return "UNKNOWN"
	}
	return c
}
