package model

import "time"

// ServiceType is the closed set of services a job can be booked for. Raw
// labels from older records may carry an " Only" suffix; that is stripped in
// the parse package before a value ever reaches this enum.
type ServiceType string

const (
	ServiceWash       ServiceType = "WASH"
	ServiceDry        ServiceType = "DRY"
	ServiceWashAndDry ServiceType = "WASH_AND_DRY"
)

// LaundryJob is one customer transaction holding one or more loads.
type LaundryJob struct {
	ID           string      `gorm:"primaryKey;size:64" json:"id"`
	CustomerName string      `gorm:"size:128;not null" json:"customerName"`
	Contact      string      `gorm:"size:64" json:"contact"`
	ServiceType  ServiceType `gorm:"size:16;not null" json:"serviceType"`
	CompletedAt  *time.Time  `gorm:"index" json:"completedAt,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"-"`

	// Associations
	Loads []Load `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"loads"`
}
