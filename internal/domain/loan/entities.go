package loan

import (
	"math/big"
	"time"

	"collateral-loans/pkg/wei"

	"github.com/ethereum/go-ethereum/common"
)

type Status string

const (
	StatusRequested Status = "requested"
	StatusFunded    Status = "funded"
	StatusRepaid    Status = "repaid"
	StatusClaimed   Status = "claimed"
)

// None is the lender of a loan nobody has funded yet.
var None = common.Address{}

// Loan is the only persistent entity of the registry. Rows are never deleted;
// repaid and claimed loans stay for audit.
type Loan struct {
	ID                uint64         `gorm:"primaryKey;column:id;autoIncrement:false" json:"id"`
	Borrower          common.Address `gorm:"column:borrower;type:binary(20);not null;index:idx_loans_borrower" json:"borrower"`
	Lender            common.Address `gorm:"column:lender;type:binary(20);not null;index:idx_loans_lender" json:"lender"`
	CollateralAmount  wei.Amount     `gorm:"column:collateral_amount;type:varchar(78);not null" json:"collateral_amount"`
	LoanAmount        wei.Amount     `gorm:"column:loan_amount;type:varchar(78);not null" json:"loan_amount"`
	InterestRate      uint32         `gorm:"column:interest_rate;not null" json:"interest_rate"`
	DueDate           uint64         `gorm:"column:due_date;not null" json:"due_date"`
	IsFunded          bool           `gorm:"column:is_funded;not null;default:false" json:"is_funded"`
	IsRepaid          bool           `gorm:"column:is_repaid;not null;default:false" json:"is_repaid"`
	CollateralClaimed bool           `gorm:"column:collateral_claimed;not null;default:false" json:"collateral_claimed"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Loan) TableName() string { return "loans" }

// New builds a freshly requested loan; loanAmount is derived from the collateral once, here.
func New(id uint64, borrower common.Address, collateral *big.Int, interestRate uint32, dueDate uint64) *Loan {
	return &Loan{
		ID:               id,
		Borrower:         borrower,
		Lender:           None,
		CollateralAmount: wei.New(collateral),
		LoanAmount:       wei.New(LoanAmountFor(collateral)),
		InterestRate:     interestRate,
		DueDate:          dueDate,
	}
}

func (l *Loan) Status() Status {
	switch {
	case l.IsRepaid:
		return StatusRepaid
	case l.CollateralClaimed:
		return StatusClaimed
	case l.IsFunded:
		return StatusFunded
	default:
		return StatusRequested
	}
}

// TotalDue is principal plus floor(principal * rate / 10000).
func (l *Loan) TotalDue() *big.Int {
	return TotalDue(l.LoanAmount.Big(), l.InterestRate)
}

// Expired reports whether now is strictly after the due date.
func (l *Loan) Expired(now time.Time) bool {
	ts := now.Unix()
	return ts >= 0 && uint64(ts) > l.DueDate
}

// CheckFund verifies every precondition of funding. The loan is not modified.
func (l *Loan) CheckFund(caller common.Address, value *big.Int, now time.Time) error {
	switch {
	case caller == None:
		return ErrInvalidCaller
	case l.IsFunded:
		return ErrAlreadyFunded
	case caller == l.Borrower:
		return ErrSelfFunding
	case l.Expired(now):
		return ErrLoanExpired
	case !l.LoanAmount.Equal(value):
		return ErrIncorrectFundingAmount
	}
	return nil
}

func (l *Loan) CheckRepay(caller common.Address, value *big.Int) error {
	switch {
	case caller == None:
		return ErrInvalidCaller
	case !l.IsFunded:
		return ErrNotFunded
	case l.IsRepaid:
		return ErrAlreadyRepaid
	case l.CollateralClaimed:
		return ErrCollateralAlreadyClaimed
	case caller != l.Borrower:
		return ErrWrongCaller
	case value == nil || l.TotalDue().Cmp(value) != 0:
		return ErrIncorrectRepaymentAmount
	}
	return nil
}

func (l *Loan) CheckClaim(caller common.Address, now time.Time) error {
	switch {
	case caller == None:
		return ErrInvalidCaller
	case !l.IsFunded:
		return ErrNotFunded
	case l.IsRepaid:
		return ErrLoanAlreadyRepaid
	case l.CollateralClaimed:
		return ErrCollateralAlreadyClaimed
	case caller != l.Lender:
		return ErrWrongCaller
	case !l.Expired(now):
		return ErrNotYetDue
	}
	return nil
}

// MarkFunded, MarkRepaid and MarkClaimed only flip flags false->true; callers run the
// matching Check first.
func (l *Loan) MarkFunded(lender common.Address) {
	l.Lender = lender
	l.IsFunded = true
}

func (l *Loan) MarkRepaid() { l.IsRepaid = true }

func (l *Loan) MarkClaimed() { l.CollateralClaimed = true }

// Sequence hands out loan ids. One row per named counter.
type Sequence struct {
	Name string `gorm:"primaryKey;column:name;size:32"`
	Next uint64 `gorm:"column:next;not null"`
}

func (Sequence) TableName() string { return "sequences" }

const LoanSequence = "loans"
