package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Subscribers are notified when a load of one of their jobs finishes a
// machine run.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Jobs []*LaundryJob `gorm:"many2many:subscription_job_mapping;"`
}
