// Package risk computes risk assessments and milestone crossings for
// monitored goals. Everything here is pure: no I/O, no clock reads.
package risk

import (
	"time"

	"github.com/ambaglabs/ambag/pkg/domain/goal"
	"github.com/ambaglabs/ambag/pkg/domain/pool"
)

// Level classifies how endangered a goal is.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Urgency grades how quickly intervention is needed.
type Urgency string

const (
	UrgencyNormal    Urgency = "NORMAL"
	UrgencyMedium    Urgency = "MEDIUM"
	UrgencyHigh      Urgency = "HIGH"
	UrgencyImmediate Urgency = "IMMEDIATE"
)

// Factor reason codes.
const (
	FactorDeadlineImmediate   = "deadline_immediate"
	FactorDeadlineLowProgress = "deadline_approaching_low_progress"
	FactorWeekInsufficient    = "deadline_week_insufficient_progress"
	FactorNoContributions     = "no_contributions"
	FactorNoRecentActivity    = "no_recent_activity"
)

// recentActivityWindow is how far back a contribution still counts as
// recent.
const recentActivityWindow = 14 * 24 * time.Hour

// Assessment is the result of one risk evaluation. It is computed per
// monitoring cycle and logged, never persisted as an entity.
type Assessment struct {
	Level                Level    `json:"level"`
	Urgency              Urgency  `json:"urgency"`
	RequiresIntervention bool     `json:"requires_intervention"`
	Factors              []string `json:"factors,omitempty"`
}

func rank(l Level) int {
	switch l {
	case LevelCritical:
		return 3
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// raise lifts the assessment to at least the given level, never lowers it.
func (a *Assessment) raise(l Level) {
	if rank(l) > rank(a.Level) {
		a.Level = l
	}
}

// Assess evaluates the deadline rules in precedence order (first match
// sets level and urgency, factors accumulate from every matching rule)
// and then applies the activity overlay, which can only raise the level.
func Assess(g *goal.Goal, p *pool.Pool, now time.Time) Assessment {
	a := Assessment{Level: LevelLow, Urgency: UrgencyNormal}

	days := g.DaysRemaining(now)
	progress := p.Progress(g.TargetAmount)

	if days <= 1 {
		if a.Level == LevelLow {
			a.Level, a.Urgency, a.RequiresIntervention = LevelCritical, UrgencyImmediate, true
		}
		a.Factors = append(a.Factors, FactorDeadlineImmediate)
	}
	if days <= 3 && progress < 70 {
		if a.Level == LevelLow {
			a.Level, a.Urgency, a.RequiresIntervention = LevelHigh, UrgencyHigh, true
		}
		a.Factors = append(a.Factors, FactorDeadlineLowProgress)
	}
	if days <= 7 && progress < 50 {
		if a.Level == LevelLow {
			a.Level, a.Urgency = LevelMedium, UrgencyMedium
		}
		a.Factors = append(a.Factors, FactorWeekInsufficient)
	}

	if len(p.Contributions) == 0 {
		a.raise(LevelHigh)
		a.RequiresIntervention = true
		a.Factors = append(a.Factors, FactorNoContributions)
	} else if !p.HasContributionSince(now.Add(-recentActivityWindow)) {
		a.raise(LevelMedium)
		a.Factors = append(a.Factors, FactorNoRecentActivity)
	}

	return a
}

// HasFactor reports whether the assessment carries the given reason code.
func (a Assessment) HasFactor(code string) bool {
	for _, f := range a.Factors {
		if f == code {
			return true
		}
	}
	return false
}

// DetectMilestone returns the highest milestone newly crossed by the
// given progress, and whether one fired. A milestone fires only the
// first time progress crosses it; the caller persists the advance so it
// never fires again.
func DetectMilestone(p *pool.Pool, progress float64) (int, bool) {
	current := 0
	for _, m := range pool.Milestones {
		if progress >= float64(m) {
			current = m
		}
	}
	if current > p.LastMilestone {
		return current, true
	}
	return 0, false
}
