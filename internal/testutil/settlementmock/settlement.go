package settlementmock

import (
	"context"
	"math/big"
	"sync"

	"collateral-loans/internal/domain/settlement"

	"github.com/ethereum/go-ethereum/common"
)

var _ settlement.Settlement = (*Settlement)(nil)

// Call is one recorded transfer.
type Call struct {
	From, To common.Address
	Amount   *big.Int
}

// Settlement records every transfer and delegates to TransferFn when set.
// Only calls that succeed are recorded.
type Settlement struct {
	TransferFn func(ctx context.Context, from, to common.Address, amount *big.Int) error

	mu    sync.Mutex
	calls []Call
}

func (m *Settlement) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if m.TransferFn != nil {
		if err := m.TransferFn(ctx, from, to, amount); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.calls = append(m.calls, Call{From: from, To: to, Amount: new(big.Int).Set(amount)})
	m.mu.Unlock()
	return nil
}

func (m *Settlement) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
