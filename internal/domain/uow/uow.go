package uow

import (
	"context"

	"collateral-loans/internal/domain/account"
	"collateral-loans/internal/domain/event"
	"collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/settlement"
)

// Repos are bound to one transaction.
type Repos struct {
	Loans      loan.Repository
	Events     event.Repository
	Accounts   account.Repository
	Settlement settlement.Settlement
}

// UnitOfWork runs fn atomically. fn receives a context carrying the transaction; calls made
// with that context (including re-entrant ones) join it instead of opening a new one.
type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	// lock the loan row first, then pass it in; unknown ids fail with loan.ErrNotFound
	WithinLoanTx(ctx context.Context, loanID uint64, fn func(ctx context.Context, r Repos, l *loan.Loan) error) error
}

type hooksKey struct{}

// Hooks collects callbacks that must only run once the outermost transaction commits.
type Hooks struct {
	parent *Hooks
	fns    []func()
}

// WithHooks opens a hook scope nested in the one ctx already carries, if any.
func WithHooks(ctx context.Context) (context.Context, *Hooks) {
	parent, _ := ctx.Value(hooksKey{}).(*Hooks)
	h := &Hooks{parent: parent}
	return context.WithValue(ctx, hooksKey{}, h), h
}

// Commit hands the scope's callbacks to its parent, or runs them when the scope is
// outermost. A scope whose transaction rolled back is simply dropped.
func (h *Hooks) Commit() {
	if h.parent != nil {
		h.parent.fns = append(h.parent.fns, h.fns...)
		return
	}
	for _, fn := range h.fns {
		fn()
	}
}

// AfterCommit defers fn until the transaction carried by ctx commits. Outside of any
// transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if h, ok := ctx.Value(hooksKey{}).(*Hooks); ok {
		h.fns = append(h.fns, fn)
		return
	}
	fn()
}
