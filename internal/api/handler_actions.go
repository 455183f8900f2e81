package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"laundry-tracking-backend/internal/model"
	"laundry-tracking-backend/internal/tracking"
)

// loadRef extracts and validates the load identity from the path.
func loadRef(c *gin.Context) (string, int, bool) {
	jobID := c.Param("job_id")
	loadNumber, err := strconv.Atoi(c.Param("load_number"))
	if err != nil || loadNumber < 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid load number"})
		return "", 0, false
	}
	return jobID, loadNumber, true
}

// writeActionError maps the core's recoverable errors onto HTTP responses.
// Duplicate requests are a benign no-op: the first submission is still in
// flight, so the repeat is acknowledged and dropped.
func writeActionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tracking.ErrDuplicateRequest):
		c.JSON(http.StatusAccepted, gin.H{"ignored": true})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job or load not found"})
	case errors.Is(err, tracking.ErrInvalidTransition),
		errors.Is(err, tracking.ErrMachineTypeMismatch),
		errors.Is(err, tracking.ErrMachineUnavailable),
		errors.Is(err, tracking.ErrNoMachineBound):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func writeLoad(c *gin.Context, load model.Load) {
	now := time.Now().UTC()
	lr := loadResponse{
		LoadNumber: load.LoadNumber,
		Status:     load.Status,
		MachineID:  load.MachineID,
		Duration:   load.DurationMinutes,
		StartedAt:  load.StartedAt,
		Running:    tracking.IsRunning(load, now),
	}
	if rem, ok := tracking.Remaining(load, now); ok {
		secs := int(rem.Seconds())
		lr.RemainingSeconds = &secs
	}
	c.JSON(http.StatusOK, lr)
}

type assignMachineRequest struct {
	MachineID string `json:"machineId" binding:"required"`
}

// PutMachineAssignment handles PUT /api/jobs/:job_id/loads/:load_number/machine.
func (h *Handler) PutMachineAssignment(c *gin.Context) {
	jobID, loadNumber, ok := loadRef(c)
	if !ok {
		return
	}

	var req assignMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	load, err := h.tracker.AssignMachine(c.Request.Context(), jobID, loadNumber, req.MachineID)
	if err != nil {
		writeActionError(c, err)
		return
	}
	writeLoad(c, load)
}

type startRequest struct {
	DurationMinutes *float64 `json:"duration,omitempty"`
}

// PostStart handles POST /api/jobs/:job_id/loads/:load_number/start.
func (h *Handler) PostStart(c *gin.Context) {
	jobID, loadNumber, ok := loadRef(c)
	if !ok {
		return
	}

	var req startRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	load, err := h.tracker.StartAction(c.Request.Context(), jobID, loadNumber, req.DurationMinutes)
	if err != nil {
		writeActionError(c, err)
		return
	}
	writeLoad(c, load)
}

// PostAdvance handles POST /api/jobs/:job_id/loads/:load_number/advance.
func (h *Handler) PostAdvance(c *gin.Context) {
	jobID, loadNumber, ok := loadRef(c)
	if !ok {
		return
	}

	load, err := h.tracker.AdvanceStatus(c.Request.Context(), jobID, loadNumber)
	if err != nil {
		writeActionError(c, err)
		return
	}
	writeLoad(c, load)
}

// PostRedoDry handles POST /api/jobs/:job_id/loads/:load_number/dry-again.
func (h *Handler) PostRedoDry(c *gin.Context) {
	jobID, loadNumber, ok := loadRef(c)
	if !ok {
		return
	}

	var req startRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	load, err := h.tracker.StartDryingAgain(c.Request.Context(), jobID, loadNumber, req.DurationMinutes)
	if err != nil {
		writeActionError(c, err)
		return
	}
	writeLoad(c, load)
}
