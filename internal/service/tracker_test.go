package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"laundry-tracking-backend/config"
	"laundry-tracking-backend/internal/db"
	"laundry-tracking-backend/internal/model"
	"laundry-tracking-backend/internal/notification"
	"laundry-tracking-backend/internal/store"
	"laundry-tracking-backend/internal/tracking"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	return cfg
}

var dbSeq int

func newSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	dbSeq++
	dsn := fmt.Sprintf("file:trackertest%d?mode=memory&cache=shared", dbSeq)
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	return store.NewGormStore(gormDB)
}

// slowStore blocks StartLoad until released, to hold an action in flight.
type slowStore struct {
	store.Store
	entered chan struct{}
	release chan struct{}
}

func (s *slowStore) StartLoad(ctx context.Context, jobID string, loadNumber int, now time.Time, durations tracking.Durations, override *float64) (model.Load, error) {
	close(s.entered)
	<-s.release
	return model.Load{JobID: jobID, LoadNumber: loadNumber, Status: model.StatusWashing}, nil
}

func (s *slowStore) ListActiveJobs(ctx context.Context, now time.Time, grace time.Duration) ([]model.LaundryJob, error) {
	return []model.LaundryJob{
		{
			ID:          "job-1",
			ServiceType: model.ServiceWash,
			Loads: []model.Load{
				{JobID: "job-1", LoadNumber: 1, Status: model.StatusUnwashed},
			},
		},
	}, nil
}

// Two concurrent start requests for the same load: exactly one goes through,
// the other is rejected as a duplicate without ever reaching the store.
func TestTracker_DuplicateStartRejected(t *testing.T) {
	slow := &slowStore{entered: make(chan struct{}), release: make(chan struct{})}
	tracker := NewTracker(testConfig(), slow, nil, nil)

	type result struct {
		load model.Load
		err  error
	}
	first := make(chan result, 1)
	go func() {
		load, err := tracker.StartAction(context.Background(), "job-1", 1, nil)
		first <- result{load, err}
	}()

	// Wait until the first request is inside the store call.
	select {
	case <-slow.entered:
	case <-time.After(time.Second):
		t.Fatal("first request never reached the store")
	}

	// While it is pending, the load reports pending and a repeat is dropped.
	jobs, err := tracker.ActiveJobs(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Loads[0].Pending)

	_, err = tracker.StartAction(context.Background(), "job-1", 1, nil)
	assert.ErrorIs(t, err, tracking.ErrDuplicateRequest)

	close(slow.release)
	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, model.StatusWashing, res.load.Status)

	// With the first settled, the key is free again.
	jobs, err = tracker.ActiveJobs(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, jobs[0].Loads[0].Pending)
}

func TestTracker_TickDispatchesOncePerRun(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	s := newSQLiteStore(t)
	pool := notification.NewWorkerPool(4, nil, &webpush.Options{})
	tracker := NewTracker(cfg, s, pool, nil)

	require.NoError(t, s.UpsertMachine(ctx, &model.Machine{ID: "D1", Type: model.MachineDryer, Status: model.MachineAvailable}))
	job := model.LaundryJob{
		ID:          "job-dry",
		ServiceType: model.ServiceDry,
		Loads:       []model.Load{{JobID: "job-dry", LoadNumber: 1, Status: model.StatusUnwashed}},
	}
	require.NoError(t, s.CreateJob(ctx, &job))

	t0 := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	durations := tracker.Durations()
	_, err := s.AssignMachine(ctx, "job-dry", 1, "D1")
	require.NoError(t, err)
	short := 0.05 // three seconds
	_, err = s.StartLoad(ctx, "job-dry", 1, t0, durations, &short)
	require.NoError(t, err)

	// Mid-run: nothing to announce.
	tracker.Tick(ctx, t0.Add(time.Second))
	assert.Empty(t, pool.Jobs())

	// The run elapsed: exactly one dispatch.
	tracker.Tick(ctx, t0.Add(5*time.Second))
	select {
	case ref := <-pool.Jobs():
		assert.Equal(t, "job-dry", ref.JobID)
		assert.Equal(t, 1, ref.LoadNumber)
		assert.Equal(t, model.StatusDrying, ref.Stage)
	default:
		t.Fatal("expected a notification dispatch after the timer elapsed")
	}

	// Later ticks must not re-announce the same run.
	tracker.Tick(ctx, t0.Add(6*time.Second))
	tracker.Tick(ctx, t0.Add(7*time.Second))
	assert.Empty(t, pool.Jobs())

	// A redo arms a fresh run and announces again when it elapses.
	_, err = s.AdvanceLoad(ctx, "job-dry", 1, t0.Add(8*time.Second))
	require.NoError(t, err)
	_, err = s.RedoDrying(ctx, "job-dry", 1, t0.Add(9*time.Second), durations, &short)
	require.NoError(t, err)

	tracker.Tick(ctx, t0.Add(20*time.Second))
	select {
	case ref := <-pool.Jobs():
		assert.Equal(t, 1, ref.LoadNumber)
	default:
		t.Fatal("expected a dispatch for the redone run")
	}
}
