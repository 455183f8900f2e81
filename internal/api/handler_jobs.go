package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"laundry-tracking-backend/internal/model"
	"laundry-tracking-backend/internal/parse"
	"laundry-tracking-backend/internal/tracking"
)

// loadResponse is the flattened per-load structure for the API response.
type loadResponse struct {
	LoadNumber          int                `json:"loadNumber"`
	Status              model.LoadStatus   `json:"status"`
	MachineID           *string            `json:"machineId,omitempty"`
	Duration            *float64           `json:"duration,omitempty"`
	StartedAt           *time.Time         `json:"startedAt,omitempty"`
	Pending             bool               `json:"pending"`
	Running             bool               `json:"running"`
	RemainingSeconds    *int               `json:"remainingSeconds,omitempty"`
	RequiredMachineType *model.MachineType `json:"requiredMachineType,omitempty"`
}

// jobResponse is the per-job structure, with urgency derived from the
// soonest-expiring running load.
type jobResponse struct {
	ID             string               `json:"id"`
	CustomerName   string               `json:"customerName"`
	Contact        string               `json:"contact,omitempty"`
	ServiceType    model.ServiceType    `json:"serviceType"`
	CreatedAt      time.Time            `json:"createdAt"`
	CompletedAt    *time.Time           `json:"completedAt,omitempty"`
	UrgencySeconds *int                 `json:"urgencySeconds,omitempty"`
	UrgencyTier    tracking.UrgencyTier `json:"urgencyTier,omitempty"`
	Loads          []loadResponse       `json:"loads"`
}

func buildJobResponse(job model.LaundryJob, now time.Time) jobResponse {
	resp := jobResponse{
		ID:           job.ID,
		CustomerName: job.CustomerName,
		Contact:      job.Contact,
		ServiceType:  job.ServiceType,
		CreatedAt:    job.CreatedAt,
		CompletedAt:  job.CompletedAt,
	}

	if urgency, ok := tracking.Urgency(job, now); ok {
		secs := int(urgency.Seconds())
		resp.UrgencySeconds = &secs
		resp.UrgencyTier = tracking.Tier(urgency)
	}

	for _, load := range job.Loads {
		lr := loadResponse{
			LoadNumber: load.LoadNumber,
			Status:     load.Status,
			MachineID:  load.MachineID,
			Duration:   load.DurationMinutes,
			StartedAt:  load.StartedAt,
			Pending:    load.Pending,
			Running:    tracking.IsRunning(load, now),
		}
		if rem, ok := tracking.Remaining(load, now); ok {
			secs := int(rem.Seconds())
			lr.RemainingSeconds = &secs
		}
		if required, needed := tracking.RequiredMachineType(load.Status, job.ServiceType); needed {
			lr.RequiredMachineType = &required
		}
		resp.Loads = append(resp.Loads, lr)
	}
	return resp
}

// GetJobs handles GET /api/jobs: the active working set evaluated against a
// single shared instant, so remaining times are consistent across rows.
func (h *Handler) GetJobs(c *gin.Context) {
	now := time.Now().UTC()

	jobs, err := h.tracker.ActiveJobs(c.Request.Context(), now)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve jobs"})
		return
	}

	responses := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, buildJobResponse(job, now))
	}
	c.JSON(http.StatusOK, responses)
}

type postJobRequest struct {
	CustomerName string `json:"customerName" binding:"required"`
	Contact      string `json:"contact"`
	ServiceType  string `json:"serviceType" binding:"required"`
	LoadCount    int    `json:"loadCount" binding:"required,min=1"`
}

// PostJob handles POST /api/jobs: recording a new transaction's job with all
// loads UNWASHED. The raw service label is normalized at this boundary.
func (h *Handler) PostJob(c *gin.Context) {
	var req postJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	serviceType, err := parse.ServiceType(req.ServiceType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job := model.LaundryJob{
		ID:           uuid.NewString(),
		CustomerName: req.CustomerName,
		Contact:      req.Contact,
		ServiceType:  serviceType,
	}
	for n := 1; n <= req.LoadCount; n++ {
		job.Loads = append(job.Loads, model.Load{
			JobID:      job.ID,
			LoadNumber: n,
			Status:     model.StatusUnwashed,
		})
	}

	if err := h.tracker.CreateJob(c.Request.Context(), &job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, buildJobResponse(job, time.Now().UTC()))
}
