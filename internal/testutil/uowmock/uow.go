package uowmock

import (
	"context"
	"errors"

	"collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/uow"

	"gorm.io/gorm"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

type TxFunc = func(ctx context.Context, r uow.Repos) error
type LoanTxFunc = func(ctx context.Context, r uow.Repos, l *loan.Loan) error

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinTxFn     func(ctx context.Context, fn TxFunc) error
	WithinLoanTxFn func(ctx context.Context, loanID uint64, fn LoanTxFunc) error
}

// Convenience fluent setters
func New() *UoW { return &UoW{} }
func (m *UoW) WithWithinTx(fn func(context.Context, TxFunc) error) *UoW {
	m.WithinTxFn = fn
	return m
}
func (m *UoW) WithWithinLoanTx(fn func(context.Context, uint64, LoanTxFunc) error) *UoW {
	m.WithinLoanTxFn = fn
	return m
}
func (m *UoW) Reset() { *m = UoW{} }

// Passthrough runs bodies directly against repos. WithinLoanTx loads the loan through
// repos.Loans.GetByIDForUpdate, mapping a nil loan or gorm.ErrRecordNotFound to
// loan.ErrNotFound. Hooks registered
// with uow.AfterCommit run once the body returns nil.
func Passthrough(repos uow.Repos) *UoW {
	return &UoW{
		WithinTxFn: func(ctx context.Context, fn TxFunc) error {
			ctx, hooks := uow.WithHooks(ctx)
			if err := fn(ctx, repos); err != nil {
				return err
			}
			hooks.Commit()
			return nil
		},
		WithinLoanTxFn: func(ctx context.Context, id uint64, fn LoanTxFunc) error {
			ctx, hooks := uow.WithHooks(ctx)
			l, err := repos.Loans.GetByIDForUpdate(ctx, id)
			if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && l == nil) {
				return loan.ErrNotFound
			}
			if err != nil {
				return err
			}
			if err := fn(ctx, repos, l); err != nil {
				return err
			}
			hooks.Commit()
			return nil
		},
	}
}

// Methods implementing UnitOfWork
func (m *UoW) WithinTx(ctx context.Context, fn TxFunc) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}
func (m *UoW) WithinLoanTx(ctx context.Context, loanID uint64, fn LoanTxFunc) error {
	if m.WithinLoanTxFn != nil {
		return m.WithinLoanTxFn(ctx, loanID, fn)
	}
	return errUnimplemented
}
