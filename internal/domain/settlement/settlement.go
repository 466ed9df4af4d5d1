package settlement

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrTransferFailed wraps every refusal of the settlement layer to move value.
var ErrTransferFailed = errors.New("settlement transfer failed")

// Settlement moves native-asset value between accounts. A non-nil error means nothing moved.
type Settlement interface {
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}
