package pool_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ambaglabs/ambag/infra/repository/memory"
	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/ambaglabs/ambag/pkg/domain/goal"
	domainpool "github.com/ambaglabs/ambag/pkg/domain/pool"
	"github.com/ambaglabs/ambag/pkg/repository"
	poolsvc "github.com/ambaglabs/ambag/pkg/service/pool"
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

func (c *captureNotifier) byType(typ string) []action.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []action.Notification
	for _, n := range c.got {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

type captureHandler struct {
	mu    sync.Mutex
	calls int
}

func (h *captureHandler) HandleTargetReached(_ context.Context, _ *goal.Goal, _ *domainpool.Pool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return nil
}

// conflictingPools wraps a PoolRepository and fails the first N
// ApplyContribution calls with ErrConflict before delegating.
type conflictingPools struct {
	repository.PoolRepository
	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (r *conflictingPools) ApplyContribution(ctx context.Context, goalID uuid.UUID, c domainpool.Contribution) (*domainpool.Pool, error) {
	r.mu.Lock()
	r.attempts++
	fail := r.conflicts > 0
	if fail {
		r.conflicts--
	}
	r.mu.Unlock()
	if fail {
		return nil, repository.ErrConflict
	}
	return r.PoolRepository.ApplyContribution(ctx, goalID, c)
}

func newGoal(t *testing.T, store *repository.Store, target float64, ap *goal.AutoPayment) *goal.Goal {
	t.Helper()
	g, err := goal.New("Apartment deposit", target, "Alice", "manager",
		time.Now().UTC().Add(30*24*time.Hour), []string{"Bob", "Carol", "Dave"})
	require.NoError(t, err)
	g.AutoPayment = ap
	require.NoError(t, store.Goals.Create(context.Background(), g))
	require.NoError(t, store.Pools.Create(context.Background(), domainpool.NewEmpty(g.ID)))
	return g
}

func TestContribute(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		store := memory.NewStore()
		svc := poolsvc.NewService(store, &captureHandler{}, nil, slog.Default())

		_, err := svc.Contribute(ctx, uuid.New(), 0, "Bob", "gcash", "")
		assert.ErrorIs(t, err, domainpool.ErrInvalidAmount)
		_, err = svc.Contribute(ctx, uuid.New(), -5, "Bob", "gcash", "")
		assert.ErrorIs(t, err, domainpool.ErrInvalidAmount)
	})

	t.Run("rejects unknown goals", func(t *testing.T) {
		store := memory.NewStore()
		svc := poolsvc.NewService(store, &captureHandler{}, nil, slog.Default())

		_, err := svc.Contribute(ctx, uuid.New(), 100, "Bob", "gcash", "")
		assert.ErrorIs(t, err, goal.ErrGoalNotFound)
	})

	t.Run("rejects contributions to settled goals", func(t *testing.T) {
		store := memory.NewStore()
		svc := poolsvc.NewService(store, &captureHandler{}, nil, slog.Default())
		g := newGoal(t, store, 1000, nil)
		g.Status = goal.StatusCompleted
		require.NoError(t, store.Goals.Update(ctx, g))

		_, err := svc.Contribute(ctx, g.ID, 100, "Bob", "gcash", "")
		assert.ErrorIs(t, err, goal.ErrInvalidStateTransition)
	})

	t.Run("keeps the total equal to the contribution sum", func(t *testing.T) {
		store := memory.NewStore()
		notifier := &captureNotifier{}
		svc := poolsvc.NewService(store, &captureHandler{}, notifier, slog.Default())
		g := newGoal(t, store, 1000, nil)

		for _, amt := range []float64{300, 300} {
			res, err := svc.Contribute(ctx, g.ID, amt, "Bob", "gcash", "")
			require.NoError(t, err)
			assert.False(t, res.TargetReached)
		}
		res, err := svc.Contribute(ctx, g.ID, 500, "Carol", "bank", "ref-3")
		require.NoError(t, err)

		// Overshoot keeps the true sum; only the displayed progress clamps.
		assert.Equal(t, 1100.0, res.Pool.CurrentAmount)
		assert.Equal(t, res.Pool.Sum(), res.Pool.CurrentAmount)
		assert.Equal(t, 100.0, res.Progress)
		assert.Equal(t, 0.0, res.RemainingAmount)
		assert.True(t, res.TargetReached)

		got, err := store.Goals.Get(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, goal.StatusAwaitingPayment, got.Status)
		assert.Len(t, notifier.byType("target_reached"), 1)
	})

	t.Run("hands off to settlement when auto-payment is enabled", func(t *testing.T) {
		store := memory.NewStore()
		handler := &captureHandler{}
		svc := poolsvc.NewService(store, handler, nil, slog.Default())
		g := newGoal(t, store, 500, &goal.AutoPayment{
			Enabled: true,
			Method:  goal.PaymentMethodVirtualBalance,
		})

		_, err := svc.Contribute(ctx, g.ID, 500, "Bob", "gcash", "")
		require.NoError(t, err)
		assert.Equal(t, 1, handler.calls)
	})

	t.Run("auto-creates a pool for goals that predate pooling", func(t *testing.T) {
		store := memory.NewStore()
		svc := poolsvc.NewService(store, &captureHandler{}, nil, slog.Default())
		g, err := goal.New("Legacy goal", 1000, "Alice", "manager",
			time.Now().UTC().Add(30*24*time.Hour), nil)
		require.NoError(t, err)
		require.NoError(t, store.Goals.Create(ctx, g))

		res, err := svc.Contribute(ctx, g.ID, 250, "Bob", "gcash", "")
		require.NoError(t, err)
		assert.Equal(t, 250.0, res.Pool.CurrentAmount)
	})

	t.Run("retries a conflicting update and commits", func(t *testing.T) {
		mem := memory.NewStore()
		pools := &conflictingPools{PoolRepository: mem.Pools, conflicts: 1}
		store := &repository.Store{
			Goals:    mem.Goals,
			Pools:    pools,
			Queue:    mem.Queue,
			Balances: mem.Balances,
			Actions:  mem.Actions,
		}
		svc := poolsvc.NewService(store, &captureHandler{}, nil, slog.Default())
		g := newGoal(t, store, 1000, nil)

		res, err := svc.Contribute(ctx, g.ID, 400, "Bob", "gcash", "")
		require.NoError(t, err)
		assert.Equal(t, 400.0, res.Pool.CurrentAmount)
		assert.Equal(t, 2, pools.attempts)
	})

	t.Run("gives up after repeated conflicts", func(t *testing.T) {
		mem := memory.NewStore()
		pools := &conflictingPools{PoolRepository: mem.Pools, conflicts: 10}
		store := &repository.Store{
			Goals:    mem.Goals,
			Pools:    pools,
			Queue:    mem.Queue,
			Balances: mem.Balances,
			Actions:  mem.Actions,
		}
		svc := poolsvc.NewService(store, &captureHandler{}, nil, slog.Default())
		g := newGoal(t, store, 1000, nil)

		_, err := svc.Contribute(ctx, g.ID, 400, "Bob", "gcash", "")
		assert.ErrorIs(t, err, repository.ErrConflict)
		assert.Equal(t, 3, pools.attempts)

		p, err := mem.Pools.Get(ctx, g.ID)
		require.NoError(t, err)
		assert.Zero(t, p.CurrentAmount)
	})

	t.Run("concurrent contributions preserve the invariant", func(t *testing.T) {
		store := memory.NewStore()
		svc := poolsvc.NewService(store, &captureHandler{}, nil, slog.Default())
		g := newGoal(t, store, 1e9, nil)

		const writers = 25
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					_, err := svc.Contribute(ctx, g.ID, 10, "Bob", "gcash", "")
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		p, err := store.Pools.Get(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, float64(writers*10*10), p.CurrentAmount)
		assert.Equal(t, p.Sum(), p.CurrentAmount)
		assert.Len(t, p.Contributions, writers*10)
	})
}

func TestGetPool(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := poolsvc.NewService(store, &captureHandler{}, nil, slog.Default())
	g := newGoal(t, store, 1000, nil)

	_, err := svc.Contribute(ctx, g.ID, 200, "Bob", "gcash", "")
	require.NoError(t, err)
	_, err = svc.Contribute(ctx, g.ID, 300, "Carol", "bank", "")
	require.NoError(t, err)
	_, err = svc.Contribute(ctx, g.ID, 100, "Bob", "gcash", "")
	require.NoError(t, err)

	details, err := svc.GetPool(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 600.0, details.Pool.CurrentAmount)
	assert.Equal(t, []string{"Bob", "Carol"}, details.Contributors)
	assert.Equal(t, 2, details.ContributorCount)
	assert.InDelta(t, 60.0, details.Progress, 1e-9)
	assert.Equal(t, 400.0, details.RemainingAmount)
}
