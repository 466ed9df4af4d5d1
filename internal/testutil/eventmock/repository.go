package eventmock

import (
	"context"
	"sync"
	"time"

	domain "collateral-loans/internal/domain/event"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	AppendFn          func(ctx context.Context, e *domain.Event) error
	ListByLoanIDFn    func(ctx context.Context, loanID uint64) ([]domain.Event, error)
	ListUnpublishedFn func(ctx context.Context, limit int) ([]domain.Event, error)
	MarkPublishedFn   func(ctx context.Context, seq uint64, at time.Time) error
}

func (m *Repo) Append(ctx context.Context, e *domain.Event) error {
	if m.AppendFn != nil {
		return m.AppendFn(ctx, e)
	}
	return nil
}

func (m *Repo) ListByLoanID(ctx context.Context, loanID uint64) ([]domain.Event, error) {
	if m.ListByLoanIDFn != nil {
		return m.ListByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) ListUnpublished(ctx context.Context, limit int) ([]domain.Event, error) {
	if m.ListUnpublishedFn != nil {
		return m.ListUnpublishedFn(ctx, limit)
	}
	return nil, context.Canceled
}

func (m *Repo) MarkPublished(ctx context.Context, seq uint64, at time.Time) error {
	if m.MarkPublishedFn != nil {
		return m.MarkPublishedFn(ctx, seq, at)
	}
	return nil
}

// Recorder is an event.Publisher that keeps what it was given.
type Recorder struct {
	mu     sync.Mutex
	Err    error
	Events []domain.Event
}

var _ domain.Publisher = (*Recorder)(nil)

func (r *Recorder) Publish(_ context.Context, e *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, *e)
	return nil
}

func (r *Recorder) Types() []domain.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Type, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
