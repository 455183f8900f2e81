package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"laundry-tracking-backend/internal/service"
	"laundry-tracking-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	tracker *service.Tracker
	store   store.Store
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(tracker *service.Tracker, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		tracker: tracker,
		store:   s,
		webpush: webpushOptions,
	}
}
