package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"laundry-tracking-backend/internal/model"
)

// machineResponse is the flattened structure for the machines listing. Busy
// is derived from load bindings and is independent of the reported status.
type machineResponse struct {
	model.Machine
	Busy       bool    `json:"busy"`
	HeldByJob  *string `json:"heldByJob,omitempty"`
	HeldByLoad *int    `json:"heldByLoad,omitempty"`
}

// GetMachines handles GET /api/machines.
func (h *Handler) GetMachines(c *gin.Context) {
	ctx := c.Request.Context()

	machines, err := h.tracker.Machines(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve machines"})
		return
	}

	jobs, err := h.tracker.ActiveJobs(ctx, time.Now().UTC())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve jobs"})
		return
	}

	type holder struct {
		jobID      string
		loadNumber int
	}
	holders := make(map[string]holder)
	for _, job := range jobs {
		for _, load := range job.Loads {
			if load.MachineID != nil && !load.Status.Terminal() {
				holders[*load.MachineID] = holder{jobID: load.JobID, loadNumber: load.LoadNumber}
			}
		}
	}

	responses := make([]machineResponse, 0, len(machines))
	for _, machine := range machines {
		resp := machineResponse{Machine: machine}
		if held, ok := holders[machine.ID]; ok {
			resp.Busy = true
			jobID, loadNumber := held.jobID, held.loadNumber
			resp.HeldByJob = &jobID
			resp.HeldByLoad = &loadNumber
		}
		responses = append(responses, resp)
	}
	c.JSON(http.StatusOK, responses)
}
