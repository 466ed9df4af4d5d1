package account

import (
	"errors"
	"time"

	"collateral-loans/pkg/wei"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidAddress = errors.New("invalid account address")

// Account is a native-asset balance held by the settlement ledger.
type Account struct {
	Address   common.Address `gorm:"column:address;type:binary(20);primaryKey" json:"address"`
	Balance   wei.Amount     `gorm:"column:balance;type:varchar(78);not null" json:"balance"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }
