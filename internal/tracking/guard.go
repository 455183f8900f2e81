package tracking

import (
	"fmt"
	"sync"
)

// ActionKind names the user-triggered mutations the guard serializes.
type ActionKind string

const (
	ActionAssign  ActionKind = "assign"
	ActionStart   ActionKind = "start"
	ActionAdvance ActionKind = "advance"
	ActionRedo    ActionKind = "redo"
)

// ActionGuard rejects a second in-flight submission of the same logical
// action on the same load before the first completes. Requests are keyed by
// (kind, jobID, loadNumber); a duplicate is dropped immediately, never queued
// behind the first. This is orthogonal to machine mutual exclusion: the guard
// protects one load from itself, the allocator protects one machine from two
// loads.
type ActionGuard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	perLoad  map[string]int
}

// NewActionGuard creates an empty guard.
func NewActionGuard() *ActionGuard {
	return &ActionGuard{
		inflight: make(map[string]struct{}),
		perLoad:  make(map[string]int),
	}
}

func actionKey(kind ActionKind, jobID string, loadNumber int) string {
	return fmt.Sprintf("%s:%s:%d", kind, jobID, loadNumber)
}

func loadKey(jobID string, loadNumber int) string {
	return fmt.Sprintf("%s:%d", jobID, loadNumber)
}

// Begin marks the action in flight. It returns ErrDuplicateRequest if the
// same action on the same load is already outstanding.
func (g *ActionGuard) Begin(kind ActionKind, jobID string, loadNumber int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := actionKey(kind, jobID, loadNumber)
	if _, ok := g.inflight[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, key)
	}
	g.inflight[key] = struct{}{}
	g.perLoad[loadKey(jobID, loadNumber)]++
	return nil
}

// End clears the in-flight mark, regardless of whether the action succeeded.
func (g *ActionGuard) End(kind ActionKind, jobID string, loadNumber int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := actionKey(kind, jobID, loadNumber)
	if _, ok := g.inflight[key]; !ok {
		return
	}
	delete(g.inflight, key)

	lk := loadKey(jobID, loadNumber)
	if g.perLoad[lk]--; g.perLoad[lk] <= 0 {
		delete(g.perLoad, lk)
	}
}

// Pending reports whether any action is in flight for the load.
func (g *ActionGuard) Pending(jobID string, loadNumber int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.perLoad[loadKey(jobID, loadNumber)] > 0
}
