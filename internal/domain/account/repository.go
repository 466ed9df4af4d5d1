package account

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type Repository interface {
	Get(ctx context.Context, addr common.Address) (*Account, error)
	// GetForUpdate row-locks the account until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, addr common.Address) (*Account, error)
	// Save inserts or overwrites the balance row.
	Save(ctx context.Context, a *Account) error
}
