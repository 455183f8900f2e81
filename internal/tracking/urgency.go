package tracking

import (
	"time"

	"laundry-tracking-backend/internal/model"
)

// UrgencyTier buckets a job's soonest-expiring load for display ordering and
// coloring. Boundaries are inclusive-low, exclusive-high.
type UrgencyTier string

const (
	TierCritical UrgencyTier = "critical" // under 5 minutes
	TierWarning  UrgencyTier = "warning"  // under 15 minutes
	TierNormal   UrgencyTier = "normal"
)

// Urgency returns the smallest remaining time across the job's running loads.
// A job with no running load has no urgency at all (absent, not zero).
func Urgency(job model.LaundryJob, now time.Time) (time.Duration, bool) {
	var min time.Duration
	found := false
	for _, load := range job.Loads {
		if !IsRunning(load, now) {
			continue
		}
		rem, _ := Remaining(load, now)
		if !found || rem < min {
			min = rem
			found = true
		}
	}
	return min, found
}

// Tier buckets a remaining time into its urgency tier.
func Tier(remaining time.Duration) UrgencyTier {
	switch {
	case remaining < 5*time.Minute:
		return TierCritical
	case remaining < 15*time.Minute:
		return TierWarning
	default:
		return TierNormal
	}
}
