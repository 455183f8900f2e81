package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"laundry-tracking-backend/config"
	"laundry-tracking-backend/internal/model"
	"laundry-tracking-backend/internal/notification"
	"laundry-tracking-backend/internal/store"
	"laundry-tracking-backend/internal/tracking"
)

// Tracker orchestrates the load tracking core: it wraps every user-triggered
// mutation in the action guard, serves snapshot reads with pending flags
// merged in, and runs the shared clock tick that fires notifications when a
// machine run elapses.
type Tracker struct {
	cfg       *config.Config
	store     store.Store
	guard     *tracking.ActionGuard
	pool      *notification.WorkerPool
	respCache *cache.Cache

	// notified remembers which runs have already been dispatched to the
	// worker pool, keyed by load identity plus the run's start timestamp so a
	// redo re-arms the notification.
	mu       sync.Mutex
	notified map[string]struct{}
}

// NewTracker creates the tracker. pool and respCache may be nil (tests, push
// disabled); the corresponding side effects are skipped.
func NewTracker(cfg *config.Config, s store.Store, pool *notification.WorkerPool, respCache *cache.Cache) *Tracker {
	return &Tracker{
		cfg:       cfg,
		store:     s,
		guard:     tracking.NewActionGuard(),
		pool:      pool,
		respCache: respCache,
		notified:  make(map[string]struct{}),
	}
}

// Durations returns the configured stage duration policy.
func (t *Tracker) Durations() tracking.Durations {
	return tracking.Durations{
		WasherDefault: t.cfg.Durations.WasherDefaultMinutes,
		DryerDefault:  t.cfg.Durations.DryerDefaultMinutes,
		MinOverride:   t.cfg.Durations.MinOverrideMinutes,
		MaxOverride:   t.cfg.Durations.MaxOverrideMinutes,
	}
}

// ActiveJobs returns the active working set with each load's pending flag
// reflecting the guard's in-flight state.
func (t *Tracker) ActiveJobs(ctx context.Context, now time.Time) ([]model.LaundryJob, error) {
	jobs, err := t.store.ListActiveJobs(ctx, now, t.cfg.Tracker.CompletedGrace)
	if err != nil {
		return nil, err
	}
	for ji := range jobs {
		for li := range jobs[ji].Loads {
			load := &jobs[ji].Loads[li]
			load.Pending = t.guard.Pending(load.JobID, load.LoadNumber)
		}
	}
	return jobs, nil
}

// Machines returns all machines.
func (t *Tracker) Machines(ctx context.Context) ([]model.Machine, error) {
	return t.store.ListMachines(ctx)
}

// CreateJob records a new job with its loads, all UNWASHED.
func (t *Tracker) CreateJob(ctx context.Context, job *model.LaundryJob) error {
	if err := t.store.CreateJob(ctx, job); err != nil {
		return err
	}
	t.invalidate()
	return nil
}

// AssignMachine binds a machine to a load through the guard and the
// allocator's validation.
func (t *Tracker) AssignMachine(ctx context.Context, jobID string, loadNumber int, machineID string) (model.Load, error) {
	if err := t.guard.Begin(tracking.ActionAssign, jobID, loadNumber); err != nil {
		return model.Load{}, err
	}
	defer t.guard.End(tracking.ActionAssign, jobID, loadNumber)

	load, err := t.store.AssignMachine(ctx, jobID, loadNumber, machineID)
	if err != nil {
		return model.Load{}, err
	}
	t.invalidate()
	return load, nil
}

// StartAction starts a washer or dryer run on the load. A nil override picks
// the machine-type default duration.
func (t *Tracker) StartAction(ctx context.Context, jobID string, loadNumber int, override *float64) (model.Load, error) {
	if err := t.guard.Begin(tracking.ActionStart, jobID, loadNumber); err != nil {
		return model.Load{}, err
	}
	defer t.guard.End(tracking.ActionStart, jobID, loadNumber)

	load, err := t.store.StartLoad(ctx, jobID, loadNumber, time.Now().UTC(), t.Durations(), override)
	if err != nil {
		return model.Load{}, err
	}
	t.invalidate()
	return load, nil
}

// AdvanceStatus moves the load one step along its sequence.
func (t *Tracker) AdvanceStatus(ctx context.Context, jobID string, loadNumber int) (model.Load, error) {
	if err := t.guard.Begin(tracking.ActionAdvance, jobID, loadNumber); err != nil {
		return model.Load{}, err
	}
	defer t.guard.End(tracking.ActionAdvance, jobID, loadNumber)

	load, err := t.store.AdvanceLoad(ctx, jobID, loadNumber, time.Now().UTC())
	if err != nil {
		return model.Load{}, err
	}
	t.invalidate()
	return load, nil
}

// StartDryingAgain sends a DRIED load back through the dryer.
func (t *Tracker) StartDryingAgain(ctx context.Context, jobID string, loadNumber int, override *float64) (model.Load, error) {
	if err := t.guard.Begin(tracking.ActionRedo, jobID, loadNumber); err != nil {
		return model.Load{}, err
	}
	defer t.guard.End(tracking.ActionRedo, jobID, loadNumber)

	load, err := t.store.RedoDrying(ctx, jobID, loadNumber, time.Now().UTC(), t.Durations(), override)
	if err != nil {
		return model.Load{}, err
	}
	t.invalidate()
	return load, nil
}

// invalidate drops all cached GET responses after a successful mutation so
// the next read reflects the new state within the same second.
func (t *Tracker) invalidate() {
	if t.respCache != nil {
		t.respCache.Flush()
	}
}

// Run drives the shared clock: one tick per configured interval evaluates
// every running load against the same instant and dispatches a push for each
// run that has just elapsed. Stage transitions never happen here; the timer
// only gates when the staff action becomes available.
func (t *Tracker) Run(ctx context.Context) {
	log.Printf("Tracker tick loop starting (interval %s)", t.cfg.Tracker.TickInterval)
	if t.pool != nil {
		t.pool.Start(ctx)
	}

	ticker := time.NewTicker(t.cfg.Tracker.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Tracker tick loop shutting down.")
			return
		case <-ticker.C:
			t.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick performs a single evaluation pass at the given instant.
func (t *Tracker) Tick(ctx context.Context, now time.Time) {
	jobs, err := t.store.ListActiveJobs(ctx, now, t.cfg.Tracker.CompletedGrace)
	if err != nil {
		log.Printf("Tick: failed to list active jobs: %v", err)
		return
	}

	current := make(map[string]struct{})
	var elapsed []notification.LoadRef

	for _, job := range jobs {
		for _, load := range job.Loads {
			rem, ok := tracking.Remaining(load, now)
			if !ok {
				continue
			}
			key := runKey(load)
			current[key] = struct{}{}
			if rem > 0 {
				continue
			}
			if t.markNotified(key) {
				elapsed = append(elapsed, notification.LoadRef{
					JobID:      load.JobID,
					LoadNumber: load.LoadNumber,
					Stage:      load.Status,
				})
			}
		}
	}

	t.pruneNotified(current)

	if t.pool != nil {
		for _, ref := range elapsed {
			t.pool.Dispatch(ref)
		}
	}
}

// runKey identifies one machine run: a redo restarts the timer and therefore
// produces a fresh key.
func runKey(load model.Load) string {
	started := int64(0)
	if load.StartedAt != nil {
		started = load.StartedAt.UnixNano()
	}
	return fmt.Sprintf("%s:%d:%d", load.JobID, load.LoadNumber, started)
}

// markNotified records the run as dispatched; false means it already was.
func (t *Tracker) markNotified(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.notified[key]; ok {
		return false
	}
	t.notified[key] = struct{}{}
	return true
}

// pruneNotified drops bookkeeping for runs that are no longer in the working
// set, so the map does not grow with job history.
func (t *Tracker) pruneNotified(current map[string]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.notified {
		if _, ok := current[key]; !ok {
			delete(t.notified, key)
		}
	}
}
