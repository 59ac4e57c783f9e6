// Package monitor implements the periodic goal monitoring scheduler:
// an unbounded loop that lists open goals, fans each batch out to
// concurrent workers, runs the risk assessor and the action dispatcher,
// and aggregates a cycle report. Cycle failures back off and never
// terminate the loop.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ambaglabs/ambag/pkg/config"
	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/ambaglabs/ambag/pkg/domain/goal"
	"github.com/ambaglabs/ambag/pkg/domain/pool"
	"github.com/ambaglabs/ambag/pkg/repository"
	"github.com/ambaglabs/ambag/pkg/service/dispatch"
	"github.com/ambaglabs/ambag/pkg/service/risk"
	"github.com/google/uuid"
)

// ErrAlreadyRunning is returned by Start on a running scheduler.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Decider selects and executes the autonomous action for one goal.
type Decider interface {
	DecideAndAct(ctx context.Context, g *goal.Goal, p *pool.Pool, asmt risk.Assessment, now time.Time) (dispatch.Result, error)
}

// Notifier queues a notification for asynchronous delivery.
type Notifier interface {
	Enqueue(n action.Notification) error
}

// CycleReport aggregates one monitoring cycle.
type CycleReport struct {
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	GoalsChecked  int           `json:"goals_checked"`
	Assessments   int           `json:"assessments"`
	AtRisk        int           `json:"at_risk"`
	Interventions int           `json:"interventions"`
	Milestones    int           `json:"milestones"`
	Failures      int           `json:"failures"`
	TotalGoals    int           `json:"total_goals"`
	ActiveGoals   int           `json:"active_goals"`
	Completed     int           `json:"completed_goals"`
}

// Status is the external view of the scheduler.
type Status struct {
	Status               string       `json:"status"`
	TotalGoals           int          `json:"total_goals"`
	ActiveGoals          int          `json:"active_goals"`
	GoalsAwaitingPayment int          `json:"goals_awaiting_payment"`
	LastCheck            *time.Time   `json:"last_check,omitempty"`
	LastReport           *CycleReport `json:"last_report,omitempty"`
}

// AnalysisResult is the outcome of one on-demand goal analysis.
type AnalysisResult struct {
	GoalID     uuid.UUID        `json:"goal_id"`
	Assessment risk.Assessment  `json:"assessment"`
	Action     *dispatch.Result `json:"action,omitempty"`
	Milestone  int              `json:"milestone,omitempty"`
}

// Scheduler runs the monitoring loop for the process lifetime.
type Scheduler struct {
	goals    repository.GoalRepository
	pools    repository.PoolRepository
	decider  Decider
	notifier Notifier
	cfg      *config.Monitor
	logger   *slog.Logger

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	retries    int
	lastCheck  time.Time
	lastReport *CycleReport
}

// NewScheduler builds the monitoring scheduler.
func NewScheduler(store *repository.Store, decider Decider, notifier Notifier, cfg *config.Monitor, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		goals:    store.Goals,
		pools:    store.Pools,
		decider:  decider,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger.With("service", "monitor"),
	}
}

// Start launches the monitoring loop in the background. The first cycle
// runs immediately; later cycles fire on the configured interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("monitoring scheduler started", "interval", s.cfg.Interval,
		"batch_size", s.cfg.BatchSize)
	s.wg.Add(1)
	go s.loop(loopCtx)
	return nil
}

// Stop cancels the loop and waits for the in-flight cycle, bounded by
// the given context.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("monitoring scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.cycleWithRecovery(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycleWithRecovery(ctx)
		}
	}
}

// cycleWithRecovery applies the retry/backoff policy around one cycle:
// failures sleep min(300s, 30s x retries) and retry; after MaxRetries
// consecutive failures a critical alert is logged and the counter
// resets. The loop never terminates on ordinary errors.
func (s *Scheduler) cycleWithRecovery(ctx context.Context) {
	for {
		report, err := s.runCycle(ctx)
		if err == nil {
			s.mu.Lock()
			s.retries = 0
			s.lastCheck = report.StartedAt
			s.lastReport = &report
			s.mu.Unlock()
			return
		}
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		s.retries++
		retries := s.retries
		if retries >= s.cfg.MaxRetries {
			s.retries = 0
		}
		s.mu.Unlock()

		if retries >= s.cfg.MaxRetries {
			s.logger.Error("monitoring cycle failing persistently, counter reset",
				"retries", retries, "error", err)
			return
		}

		backoff := min(300*time.Second, time.Duration(retries)*30*time.Second)
		s.logger.Warn("monitoring cycle failed, backing off",
			"retries", retries, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{StartedAt: time.Now().UTC()}

	open, err := s.goals.ListByStatus(ctx, goal.StatusActive, goal.StatusAwaitingPayment)
	if err != nil {
		return report, fmt.Errorf("list open goals: %w", err)
	}
	report.GoalsChecked = len(open)

	var (
		counters sync.Mutex
		batchWG  sync.WaitGroup
	)
	for start := 0; start < len(open); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(open))
		for _, g := range open[start:end] {
			batchWG.Add(1)
			go func(g *goal.Goal) {
				defer batchWG.Done()
				res, err := s.analyzeGoal(ctx, g)
				counters.Lock()
				defer counters.Unlock()
				if err != nil {
					report.Failures++
					return
				}
				report.Assessments++
				if res.Assessment.Level != risk.LevelLow {
					report.AtRisk++
				}
				if res.Action != nil && res.Action.Executed {
					report.Interventions++
				}
				if res.Milestone > 0 {
					report.Milestones++
				}
			}(g)
		}
		batchWG.Wait()

		if end < len(open) {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(s.cfg.BatchPause):
			}
		}
	}

	all, err := s.goals.ListByStatus(ctx)
	if err != nil {
		return report, fmt.Errorf("rollup: %w", err)
	}
	report.TotalGoals = len(all)
	for _, g := range all {
		switch g.Status {
		case goal.StatusActive:
			report.ActiveGoals++
		case goal.StatusCompleted:
			report.Completed++
		}
	}
	report.Duration = time.Since(report.StartedAt)

	s.logger.Info("monitoring cycle complete",
		"checked", report.GoalsChecked, "at_risk", report.AtRisk,
		"interventions", report.Interventions, "milestones", report.Milestones,
		"failures", report.Failures, "duration", report.Duration)
	return report, nil
}

// analyzeGoal assesses one goal and lets the dispatcher act when risk
// is elevated. A failure here is isolated to this goal; panics in
// downstream collaborators are contained the same way.
func (s *Scheduler) analyzeGoal(ctx context.Context, g *goal.Goal) (res AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("goal analysis panicked: %v", r)
			s.logger.Error("goal analysis panicked", "goal_id", g.ID, "panic", r)
		}
	}()

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	p, err := s.pools.Get(opCtx, g.ID)
	if errors.Is(err, pool.ErrPoolNotFound) {
		p = pool.NewEmpty(g.ID)
	} else if err != nil {
		s.logger.Warn("skipping goal, pool read failed", "goal_id", g.ID, "error", err)
		return res, err
	}

	now := time.Now().UTC()
	res.GoalID = g.ID
	res.Assessment = risk.Assess(g, p, now)

	if res.Assessment.Level != risk.LevelLow {
		act, err := s.decider.DecideAndAct(opCtx, g, p, res.Assessment, now)
		if err != nil {
			s.logger.Warn("dispatch failed", "goal_id", g.ID, "error", err)
			return res, err
		}
		res.Action = &act
	}

	if ms, ok := risk.DetectMilestone(p, p.Progress(g.TargetAmount)); ok {
		if err := s.fireMilestone(opCtx, g, p, ms); err != nil {
			s.logger.Warn("milestone hook failed", "goal_id", g.ID,
				"milestone", ms, "error", err)
			return res, err
		}
		res.Milestone = ms
	}
	return res, nil
}

// fireMilestone advances the persisted milestone marker and emits the
// one-time hooks: crossing 75 asks the creator to review the final
// stretch, crossing 100 announces completion. The marker is monotonic
// so each hook fires at most once per goal.
func (s *Scheduler) fireMilestone(ctx context.Context, g *goal.Goal, p *pool.Pool, ms int) error {
	ev := pool.MilestoneEvent{
		Milestone: ms,
		Progress:  p.DisplayProgress(g.TargetAmount),
		Timestamp: time.Now().UTC(),
	}
	if err := s.pools.SetMilestone(ctx, g.ID, ev); err != nil {
		return fmt.Errorf("record milestone: %w", err)
	}
	s.logger.Info("milestone reached", "goal_id", g.ID, "milestone", ms,
		"progress", ev.Progress)

	if s.notifier == nil {
		return nil
	}
	switch {
	case ms >= 100:
		msg := fmt.Sprintf("%q is fully funded: %.2f of %.2f collected.",
			g.Title, p.CurrentAmount, g.TargetAmount)
		return s.notifier.Enqueue(action.NewNotification(
			"milestone_completed", g.CreatorName, g.ID, msg, action.UrgencyHigh))
	case ms >= 75:
		msg := fmt.Sprintf("%q passed %d%%: %.2f still needed. A final push could close it early.",
			g.Title, ms, p.Remaining(g.TargetAmount))
		return s.notifier.Enqueue(action.NewNotification(
			"milestone_optimization", g.CreatorName, g.ID, msg, action.UrgencyMedium))
	}
	return nil
}

// TriggerManualAnalysis runs one goal through the full assess-and-act
// pipeline outside the periodic cycle, surfacing errors to the caller.
func (s *Scheduler) TriggerManualAnalysis(ctx context.Context, goalID uuid.UUID) (*AnalysisResult, error) {
	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}
	res, err := s.analyzeGoal(ctx, g)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lastCheck = time.Now().UTC()
	s.mu.Unlock()
	return &res, nil
}

// Status reports the scheduler state with live goal counts.
func (s *Scheduler) Status(ctx context.Context) (*Status, error) {
	all, err := s.goals.ListByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	s.mu.Lock()
	st := &Status{Status: "stopped", LastReport: s.lastReport}
	if s.running {
		st.Status = "running"
	}
	if !s.lastCheck.IsZero() {
		t := s.lastCheck
		st.LastCheck = &t
	}
	s.mu.Unlock()

	st.TotalGoals = len(all)
	for _, g := range all {
		switch g.Status {
		case goal.StatusActive:
			st.ActiveGoals++
		case goal.StatusAwaitingPayment:
			st.GoalsAwaitingPayment++
		}
	}
	return st, nil
}
