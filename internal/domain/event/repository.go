package event

import (
	"context"
	"time"
)

type Repository interface {
	// Append assigns Seq.
	Append(ctx context.Context, e *Event) error
	ListByLoanID(ctx context.Context, loanID uint64) ([]Event, error)
	ListUnpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, seq uint64, at time.Time) error
}

// Publisher delivers committed events to subscribers outside the service.
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
}
