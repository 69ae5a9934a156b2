package config

import (
	"time"

	"github.com/sosodev/duration"
)

// parseISO8601OrGoDuration tries ISO 8601 first ("PT15M"), then the Go
// duration format ("15m").
func parseISO8601OrGoDuration(s string) (time.Duration, error) {
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}
	return time.ParseDuration(s)
}
