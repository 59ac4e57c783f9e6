package dispatch_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ambaglabs/ambag/infra/repository/memory"
	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/ambaglabs/ambag/pkg/domain/goal"
	domainpool "github.com/ambaglabs/ambag/pkg/domain/pool"
	"github.com/ambaglabs/ambag/pkg/repository"
	dispatchsvc "github.com/ambaglabs/ambag/pkg/service/dispatch"
	"github.com/ambaglabs/ambag/pkg/service/risk"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	mu  sync.Mutex
	got []action.Notification
}

func (c *captureNotifier) Enqueue(n action.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	return nil
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

type fixture struct {
	store    *repository.Store
	notifier *captureNotifier
	svc      *dispatchsvc.Service
}

func setup(t *testing.T, members int, contributed int, perContribution float64, daysLeft int, target float64) (*fixture, *goal.Goal, *domainpool.Pool) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	notifier := &captureNotifier{}
	f := &fixture{
		store:    store,
		notifier: notifier,
		svc:      dispatchsvc.NewService(store.Pools, store.Actions, notifier, nil, slog.Default()),
	}

	names := make([]string, members)
	for i := range names {
		names[i] = fmt.Sprintf("member-%d", i)
	}
	g, err := goal.New("Community fund", target, "Alice", "manager",
		time.Now().UTC().Add(time.Duration(daysLeft)*24*time.Hour+time.Hour), names)
	require.NoError(t, err)
	require.NoError(t, store.Goals.Create(ctx, g))
	require.NoError(t, store.Pools.Create(ctx, domainpool.NewEmpty(g.ID)))

	for i := 0; i < contributed; i++ {
		_, err := store.Pools.ApplyContribution(ctx, g.ID, domainpool.Contribution{
			ID:              uuid.New(),
			GoalID:          g.ID,
			ContributorName: names[i],
			Amount:          perContribution,
			Timestamp:       time.Now().UTC(),
		})
		require.NoError(t, err)
	}
	p, err := store.Pools.Get(ctx, g.ID)
	require.NoError(t, err)
	return f, g, p
}

func TestDecideAndAct(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("full funding always wins regardless of deadline", func(t *testing.T) {
		// Deadline today and most members pending, yet priority 1 dominates.
		f, g, p := setup(t, 10, 2, 600, 0, 1000)

		asmt := risk.Assess(g, p, now)
		res, err := f.svc.DecideAndAct(ctx, g, p, asmt, now)
		require.NoError(t, err)
		assert.True(t, res.Executed)
		assert.Equal(t, action.TypeFundTransferAlert, res.Action)

		records, err := f.store.Actions.ListByGoal(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.True(t, records[0].Autonomous)
	})

	t.Run("critical deadline escalates instead of reminding", func(t *testing.T) {
		// One day left at 40% with plenty of pending members: the
		// escalation branch outranks the reminder branch.
		f, g, p := setup(t, 10, 2, 200, 1, 1000)

		asmt := risk.Assess(g, p, now)
		require.Equal(t, risk.LevelCritical, asmt.Level)

		res, err := f.svc.DecideAndAct(ctx, g, p, asmt, now)
		require.NoError(t, err)
		assert.True(t, res.Executed)
		assert.Equal(t, action.TypeEscalate, res.Action)

		require.Equal(t, 1, f.notifier.count())
		n := f.notifier.got[0]
		assert.Equal(t, "Alice", n.Recipient)
		assert.Equal(t, action.UrgencyCritical, n.Urgency)
		assert.True(t, n.RequiresAction)
	})

	t.Run("three day deadline escalates with high urgency", func(t *testing.T) {
		f, g, p := setup(t, 10, 5, 120, 3, 1000)

		res, err := f.svc.DecideAndAct(ctx, g, p, risk.Assess(g, p, now), now)
		require.NoError(t, err)
		assert.Equal(t, action.TypeEscalate, res.Action)
		assert.Equal(t, action.UrgencyHigh, f.notifier.got[0].Urgency)
	})

	t.Run("pending majority gets reminders with medium urgency far from deadline", func(t *testing.T) {
		// 8 of 10 members pending, 20 days out.
		f, g, p := setup(t, 10, 2, 300, 20, 1000)

		res, err := f.svc.DecideAndAct(ctx, g, p, risk.Assess(g, p, now), now)
		require.NoError(t, err)
		assert.True(t, res.Executed)
		assert.Equal(t, action.TypeReminder, res.Action)

		// One notification per pending member, one record for the batch.
		assert.Equal(t, 8, f.notifier.count())
		for _, n := range f.notifier.got {
			assert.Equal(t, action.UrgencyMedium, n.Urgency)
		}
		records, err := f.store.Actions.ListByGoal(ctx, g.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.Len(t, records[0].Targets, 8)
	})

	t.Run("deadline reminders dedupe per calendar day", func(t *testing.T) {
		// 5 days out, progress 60%: the reminder branch with deadline kind.
		f, g, p := setup(t, 10, 2, 300, 5, 1000)

		res, err := f.svc.DecideAndAct(ctx, g, p, risk.Assess(g, p, now), now)
		require.NoError(t, err)
		assert.True(t, res.Executed)
		for _, n := range f.notifier.got {
			assert.Equal(t, action.UrgencyHigh, n.Urgency)
		}

		p2, err := f.store.Pools.Get(ctx, g.ID)
		require.NoError(t, err)
		res2, err := f.svc.DecideAndAct(ctx, g, p2, risk.Assess(g, p2, now), now)
		require.NoError(t, err)
		assert.False(t, res2.Executed)
		assert.Equal(t, "already reminded today", res2.Detail)

		records, err := f.store.Actions.ListByGoal(ctx, g.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("low progress far from deadline motivates pending members", func(t *testing.T) {
		// 8 of 10 contributed a little: pending fraction is below the
		// reminder threshold, so the motivational branch fires.
		f, g, p := setup(t, 10, 8, 50, 20, 1000)

		res, err := f.svc.DecideAndAct(ctx, g, p, risk.Assess(g, p, now), now)
		require.NoError(t, err)
		assert.True(t, res.Executed)
		assert.Equal(t, action.TypeReminder, res.Action)
		assert.Equal(t, 2, f.notifier.count())
	})

	t.Run("low progress with nobody pending reports no recipients", func(t *testing.T) {
		// All 10 contributed a little: 30% progress, nobody left to
		// motivate. Distinct from the healthy no-op.
		f, g, p := setup(t, 10, 10, 30, 20, 1000)

		res, err := f.svc.DecideAndAct(ctx, g, p, risk.Assess(g, p, now), now)
		require.NoError(t, err)
		assert.False(t, res.Executed)
		assert.Equal(t, "no pending members to motivate", res.Detail)
		assert.Equal(t, 0, f.notifier.count())
	})

	t.Run("healthy goal is a no-op", func(t *testing.T) {
		f, g, p := setup(t, 10, 8, 100, 20, 1000)

		res, err := f.svc.DecideAndAct(ctx, g, p, risk.Assess(g, p, now), now)
		require.NoError(t, err)
		assert.False(t, res.Executed)
		assert.Equal(t, "on track", res.Detail)
		assert.Equal(t, 0, f.notifier.count())
	})
}

func TestManualDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("redistribution with no active members writes no record", func(t *testing.T) {
		f, g, p := setup(t, 4, 0, 0, 10, 1000)

		res, err := f.svc.Dispatch(ctx, g, p, action.Redistribute{
			Shortage: 600,
		}, false)
		require.NoError(t, err)
		assert.False(t, res.Executed)
		assert.NotEmpty(t, res.Detail)

		records, err := f.store.Actions.ListByGoal(ctx, g.ID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("redistribution suggests an even split", func(t *testing.T) {
		f, g, p := setup(t, 4, 2, 200, 10, 1000)

		res, err := f.svc.Dispatch(ctx, g, p, action.Redistribute{
			Shortage:      600,
			ActiveMembers: []string{"member-0", "member-1"},
		}, false)
		require.NoError(t, err)
		assert.True(t, res.Executed)
		assert.Equal(t, action.TypeRedistribute, res.Action)

		records, err := f.store.Actions.ListByGoal(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.False(t, records[0].Autonomous)
	})

	t.Run("payment plan notifies each member once", func(t *testing.T) {
		f, g, p := setup(t, 3, 0, 0, 10, 900)

		res, err := f.svc.Dispatch(ctx, g, p, action.PaymentPlan{
			Targets:     []string{"member-0", "member-1"},
			MemberDebts: map[string]float64{"member-0": 300, "member-1": 200},
			Weeks:       4,
		}, false)
		require.NoError(t, err)
		assert.True(t, res.Executed)
		assert.Equal(t, 2, f.notifier.count())

		records, err := f.store.Actions.ListByGoal(ctx, g.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}
