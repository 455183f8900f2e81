package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laundry-tracking-backend/internal/model"
)

func TestUrgency(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	t.Run("absent when nothing runs", func(t *testing.T) {
		job := model.LaundryJob{Loads: []model.Load{
			{LoadNumber: 1, Status: model.StatusUnwashed},
			{LoadNumber: 2, Status: model.StatusCompleted},
		}}
		_, ok := Urgency(job, t0)
		assert.False(t, ok, "a job without running loads has no urgency, not zero")
	})

	t.Run("takes the soonest-expiring load", func(t *testing.T) {
		job := model.LaundryJob{Loads: []model.Load{
			runningLoad(model.StatusWashing, t0.Add(-5*time.Minute), 35),
			runningLoad(model.StatusDrying, t0.Add(-38*time.Minute), 40),
			{LoadNumber: 3, Status: model.StatusFolding},
		}}
		rem, ok := Urgency(job, t0)
		require.True(t, ok)
		assert.Equal(t, 2*time.Minute, rem)
	})

	t.Run("ignores loads whose timer already hit zero", func(t *testing.T) {
		job := model.LaundryJob{Loads: []model.Load{
			runningLoad(model.StatusWashing, t0.Add(-40*time.Minute), 35),
			runningLoad(model.StatusDrying, t0.Add(-10*time.Minute), 40),
		}}
		rem, ok := Urgency(job, t0)
		require.True(t, ok)
		assert.Equal(t, 30*time.Minute, rem)
	})
}

func TestTier(t *testing.T) {
	assert.Equal(t, TierCritical, Tier(0))
	assert.Equal(t, TierCritical, Tier(299*time.Second))
	assert.Equal(t, TierWarning, Tier(300*time.Second))
	assert.Equal(t, TierWarning, Tier(899*time.Second))
	assert.Equal(t, TierNormal, Tier(900*time.Second))
	assert.Equal(t, TierNormal, Tier(time.Hour))
}
