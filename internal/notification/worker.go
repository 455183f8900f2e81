package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"laundry-tracking-backend/internal/model"
)

// LoadRef identifies a finished machine run for notification purposes.
type LoadRef struct {
	JobID      string
	LoadNumber int
	Stage      model.LoadStatus // the stage that just finished (WASHING or DRYING)
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers for sending "load finished" pushes.
type WorkerPool struct {
	size    int
	jobs    chan LoadRef
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan LoadRef, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case ref := <-wp.jobs:
			wp.sendNotificationsForLoad(ctx, ref)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a finished load to the worker pool.
func (wp *WorkerPool) Dispatch(ref LoadRef) {
	wp.jobs <- ref
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan LoadRef {
	return wp.jobs
}

// sendNotificationsForLoad fetches the job's subscriptions and notifies each one.
func (wp *WorkerPool) sendNotificationsForLoad(ctx context.Context, ref LoadRef) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_job_mapping sjm ON sjm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sjm.laundry_job_id = ?", ref.JobID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for job %s: %v", ref.JobID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	jobLabel := ref.JobID
	var job model.LaundryJob
	if err := wp.db.WithContext(ctx).
		Select("customer_name").
		First(&job, "id = ?", ref.JobID).Error; err != nil {
		log.Printf("Error fetching job %s: %v", ref.JobID, err)
	} else if job.CustomerName != "" {
		jobLabel = job.CustomerName
	}

	verb := "washing"
	if ref.Stage == model.StatusDrying {
		verb = "drying"
	}
	message := fmt.Sprintf("Load %d for %s has finished %s", ref.LoadNumber, jobLabel, verb)

	log.Printf("Sending %d notifications for job %s load %d", len(subscriptions), ref.JobID, ref.LoadNumber)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
