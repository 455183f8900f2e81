package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"laundry-tracking-backend/internal/model"
	"laundry-tracking-backend/internal/tracking"
)

// Store defines the persistence operations for jobs, loads, and machines.
// Every mutator re-validates against the current database snapshot inside its
// own transaction, never against a cached view.
type Store interface {
	DB() *gorm.DB

	ListActiveJobs(ctx context.Context, now time.Time, completedGrace time.Duration) ([]model.LaundryJob, error)
	ListMachines(ctx context.Context) ([]model.Machine, error)
	GetJob(ctx context.Context, jobID string) (model.LaundryJob, error)
	CreateJob(ctx context.Context, job *model.LaundryJob) error
	UpsertMachine(ctx context.Context, machine *model.Machine) error

	AssignMachine(ctx context.Context, jobID string, loadNumber int, machineID string) (model.Load, error)
	StartLoad(ctx context.Context, jobID string, loadNumber int, now time.Time, durations tracking.Durations, override *float64) (model.Load, error)
	AdvanceLoad(ctx context.Context, jobID string, loadNumber int, now time.Time) (model.Load, error)
	RedoDrying(ctx context.Context, jobID string, loadNumber int, now time.Time, durations tracking.Durations, override *float64) (model.Load, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// ListActiveJobs returns jobs that still have work, plus jobs whose last load
// completed within the grace window so the counter UI can finish its
// completion animation before the row disappears.
func (s *gormStore) ListActiveJobs(ctx context.Context, now time.Time, completedGrace time.Duration) ([]model.LaundryJob, error) {
	cutoff := now.Add(-completedGrace)

	var jobs []model.LaundryJob
	err := s.db.WithContext(ctx).
		Preload("Loads", func(db *gorm.DB) *gorm.DB {
			return db.Order("load_number ASC")
		}).
		Where("completed_at IS NULL OR completed_at > ?", cutoff).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	return jobs, nil
}

func (s *gormStore) ListMachines(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	return machines, nil
}

func (s *gormStore) GetJob(ctx context.Context, jobID string) (model.LaundryJob, error) {
	var job model.LaundryJob
	err := s.db.WithContext(ctx).
		Preload("Loads", func(db *gorm.DB) *gorm.DB {
			return db.Order("load_number ASC")
		}).
		First(&job, "id = ?", jobID).Error
	return job, err
}

func (s *gormStore) CreateJob(ctx context.Context, job *model.LaundryJob) error {
	return s.db.WithContext(ctx).Create(job).Error
}

func (s *gormStore) UpsertMachine(ctx context.Context, machine *model.Machine) error {
	return s.db.WithContext(ctx).Save(machine).Error
}

// fetchJobAndLoad loads the identified load and its owning job inside the
// given transaction. gorm.ErrRecordNotFound propagates to the caller.
func fetchJobAndLoad(tx *gorm.DB, jobID string, loadNumber int) (model.LaundryJob, model.Load, error) {
	var job model.LaundryJob
	if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
		return job, model.Load{}, err
	}

	var load model.Load
	if err := tx.First(&load, "job_id = ? AND load_number = ?", jobID, loadNumber).Error; err != nil {
		return job, load, err
	}
	return job, load, nil
}

// AssignMachine binds a machine to a load. Availability, type correctness,
// and mutual exclusion are all checked against the rows as they are at commit
// time, since the working set may have moved since the caller's last refresh.
func (s *gormStore) AssignMachine(ctx context.Context, jobID string, loadNumber int, machineID string) (model.Load, error) {
	var updated model.Load
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, load, err := fetchJobAndLoad(tx, jobID, loadNumber)
		if err != nil {
			return err
		}

		var machine model.Machine
		if err := tx.First(&machine, "id = ?", machineID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: machine %s does not exist", tracking.ErrMachineUnavailable, machineID)
			}
			return err
		}
		if machine.Status != model.MachineAvailable {
			return fmt.Errorf("%w: machine %s is %s", tracking.ErrMachineUnavailable, machineID, machine.Status)
		}

		required, needed := tracking.RequiredMachineType(load.Status, job.ServiceType)
		if !needed {
			return fmt.Errorf("%w: load %d is %s and needs no machine", tracking.ErrInvalidTransition, loadNumber, load.Status)
		}
		if machine.Type != required {
			return fmt.Errorf("%w: load %d needs a %s, machine %s is a %s",
				tracking.ErrMachineTypeMismatch, loadNumber, required, machineID, machine.Type)
		}

		// Mutual exclusion: the machine must not be held by any other load
		// that has not reached COMPLETED.
		var holders int64
		err = tx.Model(&model.Load{}).
			Where("machine_id = ? AND status <> ?", machineID, model.StatusCompleted).
			Where("NOT (job_id = ? AND load_number = ?)", jobID, loadNumber).
			Count(&holders).Error
		if err != nil {
			return err
		}
		if holders > 0 {
			return fmt.Errorf("%w: machine %s is already bound to another active load", tracking.ErrMachineUnavailable, machineID)
		}

		load.MachineID = &machine.ID
		if err := tx.Save(&load).Error; err != nil {
			return err
		}
		updated = load
		return nil
	})
	return updated, err
}

// StartLoad runs the startAction transition: a washer or dryer run begins,
// the timer is armed, and the duration resolves to the machine-type default
// unless the operator supplied an override.
func (s *gormStore) StartLoad(ctx context.Context, jobID string, loadNumber int, now time.Time, durations tracking.Durations, override *float64) (model.Load, error) {
	var updated model.Load
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, load, err := fetchJobAndLoad(tx, jobID, loadNumber)
		if err != nil {
			return err
		}

		next, err := tracking.NextOnStart(load.Status, job.ServiceType)
		if err != nil {
			return err
		}

		machine, err := boundMachine(tx, load)
		if err != nil {
			return err
		}
		required, _ := tracking.RequiredMachineType(load.Status, job.ServiceType)
		if machine.Type != required {
			return fmt.Errorf("%w: load %d needs a %s to start, machine %s is a %s",
				tracking.ErrMachineTypeMismatch, loadNumber, required, machine.ID, machine.Type)
		}

		minutes := durations.Resolve(machine.Type, override)
		load.Status = next
		load.StartedAt = &now
		load.DurationMinutes = &minutes
		if err := tx.Save(&load).Error; err != nil {
			return err
		}
		updated = load
		return nil
	})
	return updated, err
}

// AdvanceLoad runs the advanceStatus transition. A running stage may only
// advance once its timer has elapsed; the release points (DRIED→FOLDING, and
// WASHED→COMPLETED for wash-only) unbind the machine here and nowhere else.
func (s *gormStore) AdvanceLoad(ctx context.Context, jobID string, loadNumber int, now time.Time) (model.Load, error) {
	var updated model.Load
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, load, err := fetchJobAndLoad(tx, jobID, loadNumber)
		if err != nil {
			return err
		}

		if rem, ok := tracking.Remaining(load, now); ok && rem > 0 {
			return fmt.Errorf("%w: load %d still has %s on the clock", tracking.ErrInvalidTransition, loadNumber, rem)
		}

		next, release, err := tracking.NextOnAdvance(load.Status, job.ServiceType)
		if err != nil {
			return err
		}

		wasRunning := load.Status.Running()
		load.Status = next
		if wasRunning {
			// The timer belongs to the stage that just ended.
			load.StartedAt = nil
			load.DurationMinutes = nil
		}
		if release {
			load.MachineID = nil
		}
		if err := tx.Save(&load).Error; err != nil {
			return err
		}

		if next == model.StatusCompleted {
			if err := markJobIfFinished(tx, &job, now); err != nil {
				return err
			}
		}

		updated = load
		return nil
	})
	return updated, err
}

// RedoDrying runs the startDryingAgain transition: a DRIED load goes back
// through the dryer with a fresh timer. The machine kept from the previous
// run is reused when it is still bound; otherwise one must be assigned first.
func (s *gormStore) RedoDrying(ctx context.Context, jobID string, loadNumber int, now time.Time, durations tracking.Durations, override *float64) (model.Load, error) {
	var updated model.Load
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, load, err := fetchJobAndLoad(tx, jobID, loadNumber)
		if err != nil {
			return err
		}

		next, err := tracking.NextOnRedo(load.Status, job.ServiceType)
		if err != nil {
			return err
		}

		machine, err := boundMachine(tx, load)
		if err != nil {
			return err
		}
		if machine.Type != model.MachineDryer {
			return fmt.Errorf("%w: redo drying needs a %s, machine %s is a %s",
				tracking.ErrMachineTypeMismatch, model.MachineDryer, machine.ID, machine.Type)
		}

		minutes := durations.Resolve(machine.Type, override)
		load.Status = next
		load.StartedAt = &now
		load.DurationMinutes = &minutes
		if err := tx.Save(&load).Error; err != nil {
			return err
		}
		updated = load
		return nil
	})
	return updated, err
}

// boundMachine resolves the machine currently bound to the load.
func boundMachine(tx *gorm.DB, load model.Load) (model.Machine, error) {
	if load.MachineID == nil {
		return model.Machine{}, fmt.Errorf("%w: load %d", tracking.ErrNoMachineBound, load.LoadNumber)
	}
	var machine model.Machine
	if err := tx.First(&machine, "id = ?", *load.MachineID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return machine, fmt.Errorf("%w: bound machine %s no longer exists", tracking.ErrMachineUnavailable, *load.MachineID)
		}
		return machine, err
	}
	return machine, nil
}

// markJobIfFinished stamps the job's completion time once its last load has
// reached COMPLETED. The stamp drives the active-view grace window.
func markJobIfFinished(tx *gorm.DB, job *model.LaundryJob, now time.Time) error {
	var unfinished int64
	err := tx.Model(&model.Load{}).
		Where("job_id = ? AND status <> ?", job.ID, model.StatusCompleted).
		Count(&unfinished).Error
	if err != nil {
		return err
	}
	if unfinished > 0 || job.CompletedAt != nil {
		return nil
	}
	return tx.Model(job).Update("completed_at", now).Error
}
