package model

import "time"

// LoadStatus is a load's position in its wash/dry/fold lifecycle.
type LoadStatus string

const (
	StatusUnwashed  LoadStatus = "UNWASHED"
	StatusWashing   LoadStatus = "WASHING"
	StatusWashed    LoadStatus = "WASHED"
	StatusDrying    LoadStatus = "DRYING"
	StatusDried     LoadStatus = "DRIED"
	StatusFolding   LoadStatus = "FOLDING"
	StatusCompleted LoadStatus = "COMPLETED"
)

// Terminal reports whether the status is the final state of every sequence.
func (s LoadStatus) Terminal() bool {
	return s == StatusCompleted
}

// Running reports whether the status is one of the machine-run stages that
// carry a timer.
func (s LoadStatus) Running() bool {
	return s == StatusWashing || s == StatusDrying
}

// Load is one physical batch of laundry within a job. LoadNumber is 1-based
// and, together with JobID, is its stable identity.
type Load struct {
	JobID      string     `gorm:"primaryKey;size:64" json:"-"`
	LoadNumber int        `gorm:"primaryKey" json:"loadNumber"`
	Status     LoadStatus `gorm:"size:16;not null" json:"status"`

	// MachineID is a weak reference: releasing it never deletes the machine.
	MachineID *string `gorm:"index;size:64" json:"machineId,omitempty"`

	// DurationMinutes and StartedAt describe the currently running stage only
	// and are cleared when the load leaves WASHING/DRYING.
	DurationMinutes *float64   `json:"duration,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`

	// Pending is true while an action for this load is in flight. It is owned
	// by the action guard and never persisted.
	Pending bool `gorm:"-" json:"pending"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
