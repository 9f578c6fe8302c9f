// Package env reads process settings needed before config.Load runs.
package env

import (
	"os"
	"strings"
)

// LogFormat selects "json" (default) or "console" log output.
const LogFormat = "AGRIMARKET_LOG_FORMAT"

// Get returns the trimmed value of key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
