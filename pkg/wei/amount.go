package wei

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// Decimals of the native asset (1 ether = 10^18 wei).
const Decimals = 18

var ErrOutOfRange = errors.New("amount must be an unsigned 256-bit integer")

// Amount is an unsigned 256-bit quantity of native-asset base units.
// It is stored as a decimal string and serialised to JSON as a quoted decimal string.
// The zero value is 0.
type Amount struct{ i *big.Int }

func New(x *big.Int) Amount {
	if x == nil {
		return Amount{}
	}
	return Amount{i: new(big.Int).Set(x)}
}

func FromUint64(v uint64) Amount { return Amount{i: new(big.Int).SetUint64(v)} }

// Parse reads a base-10 string; empty, signed, fractional or >2^256-1 inputs are rejected.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	if !InRange(x) {
		return Amount{}, ErrOutOfRange
	}
	return Amount{i: x}, nil
}

// InRange reports whether 0 <= x <= 2^256-1.
func InRange(x *big.Int) bool {
	return x != nil && x.Sign() >= 0 && x.Cmp(math.MaxBig256) <= 0
}

// Big returns a copy of the value.
func (a Amount) Big() *big.Int {
	if a.i == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.i)
}

func (a Amount) IsZero() bool { return a.i == nil || a.i.Sign() == 0 }

func (a Amount) Cmp(b Amount) int { return a.Big().Cmp(b.Big()) }

func (a Amount) Equal(x *big.Int) bool { return x != nil && a.Big().Cmp(x) == 0 }

func (a Amount) String() string {
	if a.i == nil {
		return "0"
	}
	return a.i.String()
}

// Ether renders the amount in whole-asset units, e.g. "0.666666666666666666".
func (a Amount) Ether() string {
	return decimal.NewFromBigInt(a.Big(), -Decimals).String()
}

func (a Amount) Value() (driver.Value, error) { return a.String(), nil }

func (a *Amount) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		if v < 0 {
			return ErrOutOfRange
		}
		*a = Amount{i: big.NewInt(v)}
		return nil
	default:
		return fmt.Errorf("wei: cannot scan %T", src)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// bare JSON numbers are accepted too
		s = string(b)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
