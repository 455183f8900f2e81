package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"laundry-tracking-backend/config"
	"laundry-tracking-backend/internal/db"
	"laundry-tracking-backend/internal/model"
	"laundry-tracking-backend/internal/service"
	"laundry-tracking-backend/internal/store"
)

var dbSeq int

type testEnv struct {
	router *gin.Engine
	store  store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbSeq++
	dsn := fmt.Sprintf("file:apitest%d?mode=memory&cache=shared", dbSeq)
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	// Generous rate limit so tests never trip it.
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000

	appStore := store.NewGormStore(gormDB)
	cacheStore := cache.New(5*time.Second, time.Minute)
	tracker := service.NewTracker(cfg, appStore, nil, cacheStore)
	router := NewRouter(cfg, tracker, appStore, &webpush.Options{VAPIDPublicKey: "test-key"}, cacheStore)

	return &testEnv{router: router, store: appStore}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func seedMachine(t *testing.T, e *testEnv, id string, mt model.MachineType) {
	t.Helper()
	m := model.Machine{ID: id, Type: mt, Status: model.MachineAvailable}
	require.NoError(t, e.store.UpsertMachine(context.Background(), &m))
}

func createJob(t *testing.T, e *testEnv, serviceLabel string, loadCount int) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/jobs", gin.H{
		"customerName": "Maria Santos",
		"contact":      "555-0101",
		"serviceType":  serviceLabel,
		"loadCount":    loadCount,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeJSON[jobResponse](t, w)
	return resp.ID
}

func TestPostJob(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/jobs", gin.H{
		"customerName": "Jon Reyes",
		"serviceType":  "Dry Only", // legacy label form
		"loadCount":    2,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeJSON[jobResponse](t, w)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, model.ServiceDry, resp.ServiceType)
	require.Len(t, resp.Loads, 2)
	assert.Equal(t, 1, resp.Loads[0].LoadNumber)
	assert.Equal(t, model.StatusUnwashed, resp.Loads[0].Status)
	require.NotNil(t, resp.Loads[0].RequiredMachineType)
	assert.Equal(t, model.MachineDryer, *resp.Loads[0].RequiredMachineType)

	t.Run("rejects unknown service label", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/jobs", gin.H{
			"customerName": "Jon Reyes",
			"serviceType":  "Ironing",
			"loadCount":    1,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// Wash-only lifecycle through the HTTP surface: assign, start with a short
// override, advance twice to completion with the washer released.
func TestWashOnlyLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	seedMachine(t, e, "W1", model.MachineWasher)
	jobID := createJob(t, e, "Wash", 1)
	base := "/api/jobs/" + jobID + "/loads/1"

	w := e.do(t, http.MethodPut, base+"/machine", gin.H{"machineId": "W1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	load := decodeJSON[loadResponse](t, w)
	require.NotNil(t, load.MachineID)
	assert.Equal(t, "W1", *load.MachineID)

	// Advancing before the run starts is an invalid transition.
	w = e.do(t, http.MethodPost, base+"/advance", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// 0.01 minutes rounds to a one-second run.
	w = e.do(t, http.MethodPost, base+"/start", gin.H{"duration": 0.01})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	load = decodeJSON[loadResponse](t, w)
	assert.Equal(t, model.StatusWashing, load.Status)
	require.NotNil(t, load.StartedAt)
	require.NotNil(t, load.Duration)
	assert.Equal(t, 0.01, *load.Duration)
	assert.True(t, load.Running)

	// Still running: the advance gate holds.
	w = e.do(t, http.MethodPost, base+"/advance", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	time.Sleep(1100 * time.Millisecond)

	w = e.do(t, http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	load = decodeJSON[loadResponse](t, w)
	assert.Equal(t, model.StatusWashed, load.Status)
	assert.NotNil(t, load.MachineID, "wash-only holds the washer until completion")

	w = e.do(t, http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	load = decodeJSON[loadResponse](t, w)
	assert.Equal(t, model.StatusCompleted, load.Status)
	assert.Nil(t, load.MachineID, "completion releases the washer")

	// Terminal state: any further action conflicts.
	w = e.do(t, http.MethodPost, base+"/advance", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMachineConflictsOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	seedMachine(t, e, "W1", model.MachineWasher)
	seedMachine(t, e, "D1", model.MachineDryer)

	washJob := createJob(t, e, "Wash", 1)
	otherJob := createJob(t, e, "Wash", 1)

	t.Run("type mismatch", func(t *testing.T) {
		w := e.do(t, http.MethodPut, "/api/jobs/"+washJob+"/loads/1/machine", gin.H{"machineId": "D1"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("mutual exclusion", func(t *testing.T) {
		w := e.do(t, http.MethodPut, "/api/jobs/"+washJob+"/loads/1/machine", gin.H{"machineId": "W1"})
		require.Equal(t, http.StatusOK, w.Code)

		w = e.do(t, http.MethodPut, "/api/jobs/"+otherJob+"/loads/1/machine", gin.H{"machineId": "W1"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown machine", func(t *testing.T) {
		w := e.do(t, http.MethodPut, "/api/jobs/"+otherJob+"/loads/1/machine", gin.H{"machineId": "W9"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown job is not found", func(t *testing.T) {
		w := e.do(t, http.MethodPut, "/api/jobs/nope/loads/1/machine", gin.H{"machineId": "W1"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("redo from unwashed conflicts", func(t *testing.T) {
		w := e.do(t, http.MethodPost, "/api/jobs/"+otherJob+"/loads/1/dry-again", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestGetJobsAndMachines(t *testing.T) {
	e := newTestEnv(t)
	seedMachine(t, e, "W1", model.MachineWasher)
	seedMachine(t, e, "W2", model.MachineWasher)
	jobID := createJob(t, e, "Wash", 1)

	w := e.do(t, http.MethodPut, "/api/jobs/"+jobID+"/loads/1/machine", gin.H{"machineId": "W1"})
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodPost, "/api/jobs/"+jobID+"/loads/1/start", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	jobs := decodeJSON[[]jobResponse](t, w)
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, jobID, job.ID)
	require.NotNil(t, job.UrgencySeconds, "a running load gives the job an urgency")
	assert.Greater(t, *job.UrgencySeconds, 0)
	assert.NotEmpty(t, job.UrgencyTier)
	require.Len(t, job.Loads, 1)
	assert.True(t, job.Loads[0].Running)
	require.NotNil(t, job.Loads[0].RemainingSeconds)
	assert.Equal(t, 35.0, *job.Loads[0].Duration, "washer default applies without an override")

	w = e.do(t, http.MethodGet, "/api/machines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	machines := decodeJSON[[]machineResponse](t, w)
	require.Len(t, machines, 2)
	byID := map[string]machineResponse{}
	for _, m := range machines {
		byID[m.ID] = m
	}
	assert.True(t, byID["W1"].Busy)
	require.NotNil(t, byID["W1"].HeldByJob)
	assert.Equal(t, jobID, *byID["W1"].HeldByJob)
	assert.False(t, byID["W2"].Busy)
}

func TestSubscriptionsOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	jobID := createJob(t, e, "Wash & Dry", 1)

	w := e.do(t, http.MethodPut, "/api/subscriptions", gin.H{
		"endpoint":        "https://example.com/push",
		"p256dh":          "key",
		"auth":            "auth",
		"subscribed_jobs": []string{jobID},
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/subscriptions?endpoint=https://example.com/push", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON[map[string][]string](t, w)
	assert.Equal(t, []string{jobID}, resp["subscribed_jobs"])

	w = e.do(t, http.MethodDelete, "/api/subscriptions", gin.H{"endpoint": "https://example.com/push"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(t, http.MethodGet, "/api/subscriptions?endpoint=https://example.com/push", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	key := decodeJSON[map[string]string](t, w)
	assert.Equal(t, "test-key", key["public_key"])
}
