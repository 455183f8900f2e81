package model

import "time"

// MachineType identifies what kind of stage a machine can run.
type MachineType string

const (
	MachineWasher MachineType = "WASHER"
	MachineDryer  MachineType = "DRYER"
)

// MachineStatus is the availability reported for a machine, independent of
// load bookkeeping.
type MachineStatus string

const (
	MachineAvailable MachineStatus = "AVAILABLE"
	MachineInUse     MachineStatus = "IN_USE"
)

// Machine represents a physical washer or dryer.
type Machine struct {
	ID        string        `gorm:"primaryKey;size:64" json:"id"`
	Type      MachineType   `gorm:"size:16;not null" json:"type"`
	Status    MachineStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt time.Time     `json:"-"`
	UpdatedAt time.Time     `json:"-"`
}
