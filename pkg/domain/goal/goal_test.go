package goal_test

import (
	"testing"
	"time"

	"github.com/ambaglabs/ambag/pkg/domain/goal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	due := time.Now().Add(30 * 24 * time.Hour)

	t.Run("manager goals start active", func(t *testing.T) {
		g, err := goal.New("Trip", 1000, "Alice", "manager", due, []string{"Alice", "Bob"})
		require.NoError(t, err)
		assert.Equal(t, goal.StatusActive, g.Status)
		require.NotNil(t, g.ApprovedAt)
	})

	t.Run("member goals wait for approval", func(t *testing.T) {
		g, err := goal.New("Trip", 1000, "Bob", "member", due, nil)
		require.NoError(t, err)
		assert.Equal(t, goal.StatusPendingApproval, g.Status)
		assert.Nil(t, g.ApprovedAt)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := goal.New("", 1000, "Alice", "manager", due, nil)
		assert.ErrorIs(t, err, goal.ErrEmptyTitle)

		_, err = goal.New("Trip", 0, "Alice", "manager", due, nil)
		assert.ErrorIs(t, err, goal.ErrInvalidTarget)

		_, err = goal.New("Trip", -5, "Alice", "manager", due, nil)
		assert.ErrorIs(t, err, goal.ErrInvalidTarget)

		_, err = goal.New("Trip", 1000, "Alice", "admin", due, nil)
		assert.ErrorIs(t, err, goal.ErrInvalidRole)
	})
}

func TestOpen(t *testing.T) {
	g := &goal.Goal{Status: goal.StatusActive}
	assert.True(t, g.Open())

	g.Status = goal.StatusAwaitingPayment
	assert.True(t, g.Open())

	for _, st := range []goal.Status{
		goal.StatusPendingApproval,
		goal.StatusAwaitingAutoPayment,
		goal.StatusCompleted,
		goal.StatusCancelled,
		goal.StatusRejected,
	} {
		g.Status = st
		assert.False(t, g.Open(), "status %s", st)
	}
}

func TestDaysRemaining(t *testing.T) {
	now := time.Now()
	g := &goal.Goal{TargetDate: now.Add(72*time.Hour + time.Minute)}
	assert.Equal(t, 3, g.DaysRemaining(now))

	g.TargetDate = now.Add(-48 * time.Hour)
	assert.Equal(t, -2, g.DaysRemaining(now))
}

func TestAutoPayEnabled(t *testing.T) {
	g := &goal.Goal{}
	assert.False(t, g.AutoPayEnabled())

	g.AutoPayment = &goal.AutoPayment{Method: goal.PaymentMethodVirtualBalance}
	assert.False(t, g.AutoPayEnabled())

	g.AutoPayment.Enabled = true
	assert.True(t, g.AutoPayEnabled())
}

func TestPendingMembers(t *testing.T) {
	g := &goal.Goal{Members: []string{"Alice", "Bob", "Carol"}}

	pending := g.PendingMembers([]string{"Bob"})
	assert.Equal(t, []string{"Alice", "Carol"}, pending)

	assert.Empty(t, g.PendingMembers([]string{"Alice", "Bob", "Carol"}))
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, g.PendingMembers(nil))
}
