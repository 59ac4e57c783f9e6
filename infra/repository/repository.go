// Package repository implements the ledger store on gorm. Postgres in
// production; the sqlite driver serves DB-file development setups.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/ambaglabs/ambag/pkg/domain/goal"
	"github.com/ambaglabs/ambag/pkg/domain/pool"
	"github.com/ambaglabs/ambag/pkg/domain/settlement"
	"github.com/ambaglabs/ambag/pkg/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewStore builds a repository.Store over the given gorm session.
func NewStore(db *gorm.DB) *repository.Store {
	return &repository.Store{
		Goals:    &goalRepository{db: db},
		Pools:    &poolRepository{db: db},
		Queue:    &queueRepository{db: db},
		Balances: &balanceRepository{db: db},
		Actions:  &actionRepository{db: db},
	}
}

// Migrate creates or updates the ledger tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Goal{}, &Pool{}, &Contribution{}, &MilestoneEvent{},
		&QueueEntry{}, &VirtualBalance{}, &ActionRecord{},
	)
}

type goalRepository struct {
	db *gorm.DB
}

func (r *goalRepository) Get(ctx context.Context, id uuid.UUID) (*goal.Goal, error) {
	var m Goal
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goal.ErrGoalNotFound
		}
		return nil, err
	}
	return goalFromModel(m), nil
}

func (r *goalRepository) Create(ctx context.Context, g *goal.Goal) error {
	m := goalToModel(g)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *goalRepository) Update(ctx context.Context, g *goal.Goal) error {
	g.UpdatedAt = time.Now().UTC()
	m := goalToModel(g)
	res := r.db.WithContext(ctx).Save(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return goal.ErrGoalNotFound
	}
	return nil
}

func (r *goalRepository) ListByStatus(ctx context.Context, statuses ...goal.Status) ([]*goal.Goal, error) {
	q := r.db.WithContext(ctx).Model(&Goal{}).Order("created_at")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var models []Goal
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*goal.Goal, 0, len(models))
	for _, m := range models {
		out = append(out, goalFromModel(m))
	}
	return out, nil
}

type poolRepository struct {
	db *gorm.DB
}

func (r *poolRepository) load(ctx context.Context, tx *gorm.DB, goalID uuid.UUID) (*pool.Pool, error) {
	var m Pool
	if err := tx.WithContext(ctx).First(&m, "goal_id = ?", goalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pool.ErrPoolNotFound
		}
		return nil, err
	}
	var contribs []Contribution
	if err := tx.WithContext(ctx).Where("goal_id = ?", goalID).Order("timestamp").Find(&contribs).Error; err != nil {
		return nil, err
	}
	var events []MilestoneEvent
	if err := tx.WithContext(ctx).Where("goal_id = ?", goalID).Order("id").Find(&events).Error; err != nil {
		return nil, err
	}
	p := &pool.Pool{
		GoalID:               m.GoalID,
		CurrentAmount:        m.CurrentAmount,
		LastMilestone:        m.LastMilestone,
		LastDeadlineReminder: m.LastDeadlineReminder,
		UpdatedAt:            m.UpdatedAt,
	}
	for _, c := range contribs {
		p.Contributions = append(p.Contributions, contributionFromModel(c))
	}
	for _, e := range events {
		p.MilestoneHistory = append(p.MilestoneHistory, pool.MilestoneEvent{
			Milestone: e.Milestone, Progress: e.Progress, Timestamp: e.Timestamp,
		})
	}
	return p, nil
}

func (r *poolRepository) Get(ctx context.Context, goalID uuid.UUID) (*pool.Pool, error) {
	return r.load(ctx, r.db, goalID)
}

func (r *poolRepository) Create(ctx context.Context, p *pool.Pool) error {
	m := Pool{
		GoalID:               p.GoalID,
		CurrentAmount:        p.CurrentAmount,
		LastMilestone:        p.LastMilestone,
		LastDeadlineReminder: p.LastDeadlineReminder,
		UpdatedAt:            time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

// ApplyContribution runs the increment and the append in one database
// transaction with the pool row locked for update, which serializes
// concurrent contributions to the same goal.
func (r *poolRepository) ApplyContribution(ctx context.Context, goalID uuid.UUID, c pool.Contribution) (*pool.Pool, error) {
	var updated *pool.Pool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m Pool
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&m, "goal_id = ?", goalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pool.ErrPoolNotFound
			}
			return err
		}
		m.CurrentAmount += c.Amount
		m.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		row := Contribution{
			ID:              c.ID,
			GoalID:          goalID,
			ContributorName: c.ContributorName,
			Amount:          c.Amount,
			PaymentMethod:   c.PaymentMethod,
			ReferenceNumber: c.ReferenceNumber,
			Timestamp:       c.Timestamp,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		var loadErr error
		updated, loadErr = r.load(ctx, tx, goalID)
		return loadErr
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return updated, nil
}

func (r *poolRepository) SetMilestone(ctx context.Context, goalID uuid.UUID, ev pool.MilestoneEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Guarded update keeps last_milestone monotonic under races.
		res := tx.Model(&Pool{}).
			Where("goal_id = ? AND last_milestone < ?", goalID, ev.Milestone).
			Updates(map[string]any{"last_milestone": ev.Milestone, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already at or past this milestone
		}
		return tx.Create(&MilestoneEvent{
			GoalID:    goalID,
			Milestone: ev.Milestone,
			Progress:  ev.Progress,
			Timestamp: ev.Timestamp,
		}).Error
	})
}

func (r *poolRepository) SetDeadlineReminder(ctx context.Context, goalID uuid.UUID, day string) error {
	res := r.db.WithContext(ctx).Model(&Pool{}).
		Where("goal_id = ?", goalID).
		Updates(map[string]any{"last_deadline_reminder": day})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pool.ErrPoolNotFound
	}
	return nil
}

type queueRepository struct {
	db *gorm.DB
}

func (r *queueRepository) Get(ctx context.Context, goalID uuid.UUID) (*settlement.QueueEntry, error) {
	var m QueueEntry
	if err := r.db.WithContext(ctx).First(&m, "goal_id = ?", goalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, settlement.ErrQueueEntryNotFound
		}
		return nil, err
	}
	return &settlement.QueueEntry{
		GoalID:          m.GoalID,
		GoalTitle:       m.GoalTitle,
		TargetAmount:    m.TargetAmount,
		CollectedAmount: m.CollectedAmount,
		QueuedAt:        m.QueuedAt,
	}, nil
}

func (r *queueRepository) Put(ctx context.Context, e *settlement.QueueEntry) error {
	m := QueueEntry{
		GoalID:          e.GoalID,
		GoalTitle:       e.GoalTitle,
		TargetAmount:    e.TargetAmount,
		CollectedAmount: e.CollectedAmount,
		QueuedAt:        e.QueuedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

func (r *queueRepository) Delete(ctx context.Context, goalID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&QueueEntry{}, "goal_id = ?", goalID).Error
}

func (r *queueRepository) List(ctx context.Context) ([]*settlement.QueueEntry, error) {
	var models []QueueEntry
	if err := r.db.WithContext(ctx).Order("queued_at").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*settlement.QueueEntry, 0, len(models))
	for _, m := range models {
		out = append(out, &settlement.QueueEntry{
			GoalID:          m.GoalID,
			GoalTitle:       m.GoalTitle,
			TargetAmount:    m.TargetAmount,
			CollectedAmount: m.CollectedAmount,
			QueuedAt:        m.QueuedAt,
		})
	}
	return out, nil
}

type balanceRepository struct {
	db *gorm.DB
}

func (r *balanceRepository) Create(ctx context.Context, vb *settlement.VirtualBalance) error {
	m := VirtualBalance{
		ID:        vb.ID,
		GoalID:    vb.GoalID,
		OwnerName: vb.OwnerName,
		Amount:    vb.Amount,
		Status:    vb.Status,
		CreatedAt: vb.CreatedAt,
	}
	err := r.db.WithContext(ctx).Create(&m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrConflict
	}
	return err
}

func (r *balanceRepository) GetByGoal(ctx context.Context, goalID uuid.UUID) (*settlement.VirtualBalance, error) {
	var m VirtualBalance
	if err := r.db.WithContext(ctx).First(&m, "goal_id = ?", goalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settlement.VirtualBalance{
		ID:        m.ID,
		GoalID:    m.GoalID,
		OwnerName: m.OwnerName,
		Amount:    m.Amount,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}, nil
}

func (r *balanceRepository) ListByOwner(ctx context.Context, owner string) ([]*settlement.VirtualBalance, error) {
	var models []VirtualBalance
	if err := r.db.WithContext(ctx).Where("owner_name = ?", owner).Order("created_at").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*settlement.VirtualBalance, 0, len(models))
	for _, m := range models {
		out = append(out, &settlement.VirtualBalance{
			ID:        m.ID,
			GoalID:    m.GoalID,
			OwnerName: m.OwnerName,
			Amount:    m.Amount,
			Status:    m.Status,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

type actionRepository struct {
	db *gorm.DB
}

func (r *actionRepository) Append(ctx context.Context, rec *action.Record) error {
	m := ActionRecord{
		ID:         rec.ID,
		Type:       string(rec.Type),
		GoalID:     rec.GoalID,
		Targets:    rec.Targets,
		Outcome:    rec.Outcome,
		Autonomous: rec.Autonomous,
		Timestamp:  rec.Timestamp,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *actionRepository) ListByGoal(ctx context.Context, goalID uuid.UUID) ([]*action.Record, error) {
	var models []ActionRecord
	if err := r.db.WithContext(ctx).Where("goal_id = ?", goalID).Order("timestamp").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*action.Record, 0, len(models))
	for _, m := range models {
		out = append(out, &action.Record{
			ID:         m.ID,
			Type:       action.Type(m.Type),
			GoalID:     m.GoalID,
			Targets:    m.Targets,
			Outcome:    m.Outcome,
			Autonomous: m.Autonomous,
			Timestamp:  m.Timestamp,
		})
	}
	return out, nil
}
