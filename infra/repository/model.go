package repository

import (
	"time"

	"github.com/ambaglabs/ambag/pkg/domain/goal"
	"github.com/ambaglabs/ambag/pkg/domain/pool"
	"github.com/google/uuid"
)

// Goal is the database model for a goal. Auto-payment settings are
// flattened into columns; AutoPayConfigured distinguishes "no
// configuration" from a zeroed one.
type Goal struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title             string
	Description       string
	TargetAmount      float64
	CreatorName       string
	CreatorRole       string
	Members           []string `gorm:"serializer:json"`
	TargetDate        time.Time
	Status            string `gorm:"index"`
	IsPaid            bool
	AutoPayConfigured bool
	AutoPayEnabled    bool
	AutoPayMethod     string
	AutoPayConfirm    bool
	AutoPayThreshold  float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ApprovedAt        *time.Time
}

// Pool is the database model for a contribution pool. The row is locked
// for update while a contribution is applied.
type Pool struct {
	GoalID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	CurrentAmount        float64
	LastMilestone        int
	LastDeadlineReminder string
	UpdatedAt            time.Time
}

// Contribution is one contribution row, append-only.
type Contribution struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	GoalID          uuid.UUID `gorm:"type:uuid;index"`
	ContributorName string
	Amount          float64
	PaymentMethod   string
	ReferenceNumber string
	Timestamp       time.Time
}

// MilestoneEvent is one milestone-history row, append-only.
type MilestoneEvent struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	GoalID    uuid.UUID `gorm:"type:uuid;index"`
	Milestone int
	Progress  float64
	Timestamp time.Time
}

// QueueEntry is a pending auto-payment confirmation, keyed by goal.
type QueueEntry struct {
	GoalID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	GoalTitle       string
	TargetAmount    float64
	CollectedAmount float64
	QueuedAt        time.Time
}

// VirtualBalance is an append-only payout row. The goal unique index
// enforces at most one payout per goal.
type VirtualBalance struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	GoalID    uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	OwnerName string    `gorm:"index"`
	Amount    float64
	Status    string
	CreatedAt time.Time
}

// ActionRecord is one autonomous-action audit row, append-only.
type ActionRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type       string
	GoalID     uuid.UUID `gorm:"type:uuid;index"`
	Targets    []string  `gorm:"serializer:json"`
	Outcome    string
	Autonomous bool
	Timestamp  time.Time
}

func goalToModel(g *goal.Goal) Goal {
	m := Goal{
		ID:           g.ID,
		Title:        g.Title,
		Description:  g.Description,
		TargetAmount: g.TargetAmount,
		CreatorName:  g.CreatorName,
		CreatorRole:  g.CreatorRole,
		Members:      g.Members,
		TargetDate:   g.TargetDate,
		Status:       string(g.Status),
		IsPaid:       g.IsPaid,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
		ApprovedAt:   g.ApprovedAt,
	}
	if g.AutoPayment != nil {
		m.AutoPayConfigured = true
		m.AutoPayEnabled = g.AutoPayment.Enabled
		m.AutoPayMethod = string(g.AutoPayment.Method)
		m.AutoPayConfirm = g.AutoPayment.RequireConfirmation
		m.AutoPayThreshold = g.AutoPayment.AutoCompleteThreshold
	}
	return m
}

func goalFromModel(m Goal) *goal.Goal {
	g := &goal.Goal{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		TargetAmount: m.TargetAmount,
		CreatorName:  m.CreatorName,
		CreatorRole:  m.CreatorRole,
		Members:      m.Members,
		TargetDate:   m.TargetDate,
		Status:       goal.Status(m.Status),
		IsPaid:       m.IsPaid,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		ApprovedAt:   m.ApprovedAt,
	}
	if m.AutoPayConfigured {
		g.AutoPayment = &goal.AutoPayment{
			Enabled:               m.AutoPayEnabled,
			Method:                goal.PaymentMethod(m.AutoPayMethod),
			RequireConfirmation:   m.AutoPayConfirm,
			AutoCompleteThreshold: m.AutoPayThreshold,
		}
	}
	return g
}

func contributionFromModel(m Contribution) pool.Contribution {
	return pool.Contribution{
		ID:              m.ID,
		GoalID:          m.GoalID,
		ContributorName: m.ContributorName,
		Amount:          m.Amount,
		PaymentMethod:   m.PaymentMethod,
		ReferenceNumber: m.ReferenceNumber,
		Timestamp:       m.Timestamp,
	}
}
