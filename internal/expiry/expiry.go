// Package expiry classifies validity windows against a reference time.
// Classification is derived at read time and never persisted.
package expiry

import (
	"math"
	"time"
)

// Status is the derived expiration state of a validity window.
type Status string

const (
	StatusNoExpiry     Status = "no_expiry"
	StatusExpired      Status = "expired"
	StatusExpiringSoon Status = "expiring_soon"
	StatusActive       Status = "active"
)

// Classification pairs a Status with the number of days until expiry.
// Days is nil when no end date is defined.
type Classification struct {
	Status Status `json:"status"`
	Days   *int   `json:"daysUntilExpiry,omitempty"`
}

// Classify derives the expiration state of validityEnd relative to now.
// thresholdDays is a caller-supplied policy: the listing badge uses 7 while
// the upcoming-expirations window uses 30, so the threshold is never baked
// in here. Days until expiry round up, so an end date later today counts
// as 1 remaining day and one 24h in the past counts as -1.
func Classify(validityEnd *time.Time, now time.Time, thresholdDays int) Classification {
	if validityEnd == nil {
		return Classification{Status: StatusNoExpiry}
	}
	days := DaysUntil(*validityEnd, now)
	c := Classification{Days: &days}
	switch {
	case days < 0:
		c.Status = StatusExpired
	case days <= thresholdDays:
		c.Status = StatusExpiringSoon
	default:
		c.Status = StatusActive
	}
	return c
}

// DaysUntil returns ceil((end - now) / 24h).
func DaysUntil(end, now time.Time) int {
	return int(math.Ceil(end.Sub(now).Hours() / 24))
}
