package common

import "time"

// Freshness TTLs for market data
const (
	FreshnessQuote    = 1 * time.Minute
	FreshnessDailyBar = 12 * time.Hour // a cached close younger than this is not refetched
)

// IsFreshAt reports whether updated lies within ttl of now. A zero
// timestamp is never fresh.
func IsFreshAt(updated time.Time, ttl time.Duration, now time.Time) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}
