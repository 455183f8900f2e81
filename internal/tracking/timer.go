package tracking

import (
	"math"
	"time"

	"laundry-tracking-backend/internal/model"
)

// Remaining computes how much run time a load has left at the shared clock
// instant now. The second return is false when the load is not in a timed
// stage or the timer fields are unset. Remaining never goes below zero.
func Remaining(load model.Load, now time.Time) (time.Duration, bool) {
	if !load.Status.Running() || load.StartedAt == nil || load.DurationMinutes == nil {
		return 0, false
	}

	total := time.Duration(math.Round(*load.DurationMinutes*60)) * time.Second
	elapsed := now.Sub(*load.StartedAt)
	if elapsed >= total {
		return 0, true
	}
	return total - elapsed, true
}

// IsRunning reports whether the load's current stage still has time on the
// clock. A load whose remaining time has reached zero is finished, not
// running, even though its status has not advanced yet.
func IsRunning(load model.Load, now time.Time) bool {
	rem, ok := Remaining(load, now)
	return ok && rem > 0
}

// Durations resolves stage run times: per-machine-type defaults, and the
// bounds applied to operator-supplied overrides. The defaults bypass the
// clamp on purpose; only free-form input is bounded.
type Durations struct {
	WasherDefault float64 // minutes
	DryerDefault  float64
	MinOverride   float64
	MaxOverride   float64
}

// Resolve picks the run duration in minutes for a stage on the given machine
// type. A nil override selects the default; anything else is clamped into
// [MinOverride, MaxOverride].
func (d Durations) Resolve(machineType model.MachineType, override *float64) float64 {
	if override == nil {
		if machineType == model.MachineDryer {
			return d.DryerDefault
		}
		return d.WasherDefault
	}

	v := *override
	if v < d.MinOverride {
		v = d.MinOverride
	}
	if v > d.MaxOverride {
		v = d.MaxOverride
	}
	return v
}
