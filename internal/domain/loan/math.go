package loan

import (
	stdmath "math"
	"math/big"
)

const (
	// CollateralRatio is the fixed protocol ratio (150%) between collateral and principal.
	CollateralRatio = 150
	// BasisPoints per 100%.
	BasisPoints = 10000
)

var (
	hundred     = big.NewInt(100)
	ratio       = big.NewInt(CollateralRatio)
	basisPoints = big.NewInt(BasisPoints)
)

// LoanAmountFor returns collateral * 100 / CollateralRatio, floored.
func LoanAmountFor(collateral *big.Int) *big.Int {
	out := new(big.Int).Mul(collateral, hundred)
	return out.Quo(out, ratio)
}

// InterestFor returns floor(principal * rate / 10000), rate in basis points.
func InterestFor(principal *big.Int, rate uint32) *big.Int {
	out := new(big.Int).Mul(principal, new(big.Int).SetUint64(uint64(rate)))
	return out.Quo(out, basisPoints)
}

func TotalDue(principal *big.Int, rate uint32) *big.Int {
	return new(big.Int).Add(principal, InterestFor(principal, rate))
}

// DueDateFor adds duration seconds to a unix timestamp. ok is false when duration is zero
// or the result does not fit a signed 64-bit unix time.
func DueDateFor(requestedAt int64, duration uint64) (uint64, bool) {
	if duration == 0 || requestedAt < 0 {
		return 0, false
	}
	if duration > uint64(stdmath.MaxInt64-requestedAt) {
		return 0, false
	}
	return uint64(requestedAt) + duration, true
}
