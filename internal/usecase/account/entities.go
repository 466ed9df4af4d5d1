package account

import (
	"math/big"

	"collateral-loans/pkg/wei"

	"github.com/ethereum/go-ethereum/common"
)

type DepositInput struct {
	Address common.Address
	Amount  *big.Int
}

type AccountDTO struct {
	Address      common.Address `json:"address"`
	Balance      wei.Amount     `json:"balance"`
	BalanceEther string         `json:"balance_ether"`
}
