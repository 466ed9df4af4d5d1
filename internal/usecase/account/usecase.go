package account

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	domain "collateral-loans/internal/domain/account"
	"collateral-loans/internal/domain/uow"
	"collateral-loans/pkg/wei"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var ErrInvalidAmount = errors.New("deposit amount must be greater than zero")

type Usecase struct {
	repo domain.Repository
	uow  uow.UnitOfWork
	log  zerolog.Logger
}

func NewUsecase(repo domain.Repository, tx uow.UnitOfWork, log zerolog.Logger) *Usecase {
	return &Usecase{repo: repo, uow: tx, log: log}
}

// Deposit credits native asset to an account of the settlement ledger.
func (u *Usecase) Deposit(ctx context.Context, in DepositInput) (*AccountDTO, error) {
	if in.Address == (common.Address{}) {
		return nil, domain.ErrInvalidAddress
	}
	if in.Amount == nil || in.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	var out *domain.Account
	err := u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		a, err := r.Accounts.GetForUpdate(ctx, in.Address)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			a = &domain.Account{Address: in.Address}
		case err != nil:
			return err
		}
		sum := new(big.Int).Add(a.Balance.Big(), in.Amount)
		if !wei.InRange(sum) {
			return fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
		}
		a.Balance = wei.New(sum)
		if err := r.Accounts.Save(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.log.Info().Str("address", in.Address.Hex()).Str("amount", in.Amount.String()).Msg("deposit")
	return toDTO(out), nil
}

// Get reports a zero balance for accounts the ledger has never seen.
func (u *Usecase) Get(ctx context.Context, addr common.Address) (*AccountDTO, error) {
	a, err := u.repo.Get(ctx, addr)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return toDTO(&domain.Account{Address: addr}), nil
	}
	if err != nil {
		return nil, err
	}
	return toDTO(a), nil
}

func toDTO(a *domain.Account) *AccountDTO {
	return &AccountDTO{Address: a.Address, Balance: a.Balance, BalanceEther: a.Balance.Ether()}
}
