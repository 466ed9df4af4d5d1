package loan

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type Repository interface {
	// NextID allocates the next sequential loan id; must run inside a transaction.
	NextID(ctx context.Context) (uint64, error)
	Create(ctx context.Context, l *Loan) error
	GetByID(ctx context.Context, id uint64) (*Loan, error)
	// GetByIDForUpdate row-locks the loan until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id uint64) (*Loan, error)
	// Save persists the mutable columns (lender and lifecycle flags).
	Save(ctx context.Context, l *Loan) error
	ListByAccount(ctx context.Context, account common.Address) ([]Loan, error)
}
