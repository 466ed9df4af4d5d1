package mysql

import (
	"context"
	"time"

	eventDomain "collateral-loans/internal/domain/event"

	"gorm.io/gorm"
)

type EventRepository struct{ db *gorm.DB }

func NewEventRepository(db *gorm.DB) *EventRepository { return &EventRepository{db: db} }

func (r *EventRepository) Append(ctx context.Context, e *eventDomain.Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *EventRepository) ListByLoanID(ctx context.Context, loanID uint64) ([]eventDomain.Event, error) {
	var out []eventDomain.Event
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("seq ASC").
		Find(&out)
	return out, res.Error
}

func (r *EventRepository) ListUnpublished(ctx context.Context, limit int) ([]eventDomain.Event, error) {
	var out []eventDomain.Event
	res := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("seq ASC").
		Limit(limit).
		Find(&out)
	return out, res.Error
}

// MarkPublished is a no-op for rows already marked.
func (r *EventRepository) MarkPublished(ctx context.Context, seq uint64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&eventDomain.Event{}).
		Where("seq = ? AND published_at IS NULL", seq).
		Update("published_at", at.UTC()).Error
}
