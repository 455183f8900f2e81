package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"laundry-tracking-backend/config"
	"laundry-tracking-backend/internal/mw"
	"laundry-tracking-backend/internal/service"
	"laundry-tracking-backend/internal/store"
)

// NewRouter creates and configures a new Gin router. cacheStore is shared
// with the tracker so mutations can flush stale GET responses.
func NewRouter(cfg *config.Config, tracker *service.Tracker, s store.Store, webpushOptions *webpush.Options, cacheStore *cache.Cache) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(tracker, s, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst, cfg.Server.RequestIPHeader)
	caching := mw.Cache(cacheStore, time.Duration(cfg.Server.CacheTTLSeconds)*time.Second)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/jobs", caching, handler.GetJobs)
		api.POST("/jobs", handler.PostJob)
		api.GET("/machines", caching, handler.GetMachines)

		loads := api.Group("/jobs/:job_id/loads/:load_number")
		{
			loads.PUT("/machine", handler.PutMachineAssignment)
			loads.POST("/start", handler.PostStart)
			loads.POST("/advance", handler.PostAdvance)
			loads.POST("/dry-again", handler.PostRedoDry)
		}

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
