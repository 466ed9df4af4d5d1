package mysql

import (
	"context"
	"errors"

	"collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/uow"

	"gorm.io/gorm"
)

type txKey struct{}

type GormUoW struct{ db *gorm.DB }

var _ uow.UnitOfWork = (*GormUoW)(nil)

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func repos(tx *gorm.DB) uow.Repos {
	accounts := &AccountRepository{db: tx}
	return uow.Repos{
		Loans:      &LoanRepository{db: tx},
		Events:     &EventRepository{db: tx},
		Accounts:   accounts,
		Settlement: NewLedger(accounts),
	}
}

// WithinTx joins the transaction already carried by ctx as a savepoint, so a call re-entering
// the registry from inside a transfer sees the state written so far and rolls back alone.
func (u *GormUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, r uow.Repos) error) error {
	db := u.db
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		db = tx
	}
	ctx, hooks := uow.WithHooks(ctx)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx), repos(tx))
	})
	if err != nil {
		return err
	}
	hooks.Commit()
	return nil
}

func (u *GormUoW) WithinLoanTx(ctx context.Context, loanID uint64, fn func(ctx context.Context, r uow.Repos, l *loan.Loan) error) error {
	return u.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		// lock the loan row up-front to prevent races
		l, err := r.Loans.GetByIDForUpdate(ctx, loanID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return loan.ErrNotFound
		}
		if err != nil {
			return err
		}
		return fn(ctx, r, l)
	})
}
