package mysql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	accountDomain "collateral-loans/internal/domain/account"
	"collateral-loans/internal/domain/settlement"
	"collateral-loans/pkg/wei"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// Ledger settles transfers against the accounts table. Bound to a transaction it moves
// value atomically with the loan transition that requested it.
type Ledger struct{ accounts accountDomain.Repository }

var _ settlement.Settlement = (*Ledger)(nil)

func NewLedger(accounts accountDomain.Repository) *Ledger { return &Ledger{accounts: accounts} }

func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: invalid amount", settlement.ErrTransferFailed)
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}

	// lock both rows in address order so opposite transfers cannot deadlock
	first, second := from, to
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}
	locked := make(map[common.Address]*accountDomain.Account, 2)
	for _, addr := range []common.Address{first, second} {
		a, err := l.accounts.GetForUpdate(ctx, addr)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			a = &accountDomain.Account{Address: addr}
		case err != nil:
			return fmt.Errorf("%w: load %s: %v", settlement.ErrTransferFailed, addr.Hex(), err)
		}
		locked[addr] = a
	}

	src, dst := locked[from], locked[to]
	bal := src.Balance.Big()
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: insufficient balance in %s", settlement.ErrTransferFailed, from.Hex())
	}
	credited := new(big.Int).Add(dst.Balance.Big(), amount)
	if !wei.InRange(credited) {
		return fmt.Errorf("%w: balance overflow in %s", settlement.ErrTransferFailed, to.Hex())
	}

	src.Balance = wei.New(bal.Sub(bal, amount))
	dst.Balance = wei.New(credited)
	if err := l.accounts.Save(ctx, src); err != nil {
		return fmt.Errorf("%w: %v", settlement.ErrTransferFailed, err)
	}
	if err := l.accounts.Save(ctx, dst); err != nil {
		return fmt.Errorf("%w: %v", settlement.ErrTransferFailed, err)
	}
	return nil
}
