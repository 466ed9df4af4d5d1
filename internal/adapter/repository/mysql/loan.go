package mysql

import (
	"context"
	"errors"

	loanDomain "collateral-loans/internal/domain/loan"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

// Tx runs fn in a db transaction, passing a repo bound to the tx
func (r *LoanRepository) Tx(ctx context.Context, fn func(repo loanDomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&LoanRepository{db: tx})
	})
}

// NextID locks the loan sequence row, returns its value and bumps it. Ids start at 0.
func (r *LoanRepository) NextID(ctx context.Context) (uint64, error) {
	var seq loanDomain.Sequence
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", loanDomain.LoanSequence).
		First(&seq)
	switch {
	case errors.Is(res.Error, gorm.ErrRecordNotFound):
		seq = loanDomain.Sequence{Name: loanDomain.LoanSequence, Next: 1}
		if err := r.db.WithContext(ctx).Create(&seq).Error; err != nil {
			return 0, err
		}
		return 0, nil
	case res.Error != nil:
		return 0, res.Error
	}
	next := seq.Next
	err := r.db.WithContext(ctx).
		Model(&loanDomain.Sequence{}).
		Where("name = ?", seq.Name).
		Update("next", next+1).Error
	return next, err
}

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Create(l).Error
}

// Save writes only the columns a transition may change; id 0 is a valid key, so gorm's
// zero-primary-key Save semantics are avoided.
func (r *LoanRepository) Save(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).
		Model(&loanDomain.Loan{}).
		Where("id = ?", l.ID).
		Updates(map[string]any{
			"lender":             l.Lender,
			"is_funded":          l.IsFunded,
			"is_repaid":          l.IsRepaid,
			"collateral_claimed": l.CollateralClaimed,
		}).Error
}

func (r *LoanRepository) GetByID(ctx context.Context, id uint64) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).Where("id = ?", id).First(&out)
	return &out, res.Error
}

func (r *LoanRepository) GetByIDForUpdate(ctx context.Context, id uint64) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&out)
	return &out, res.Error
}

// ListByAccount returns loans where the account is borrower or lender, oldest first.
func (r *LoanRepository) ListByAccount(ctx context.Context, account common.Address) ([]loanDomain.Loan, error) {
	var out []loanDomain.Loan
	res := r.db.WithContext(ctx).
		Where("borrower = ? OR lender = ?", account, account).
		Order("id ASC").
		Find(&out)
	return out, res.Error
}
