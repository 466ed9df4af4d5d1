package loan

import "errors"

// Validation errors: malformed input, detected before any value moves.
var (
	ErrInvalidCollateral        = errors.New("collateral must be greater than zero")
	ErrInvalidDuration          = errors.New("duration must be greater than zero")
	ErrInvalidInterestRate      = errors.New("interest rate out of range")
	ErrInvalidCaller            = errors.New("caller account is required")
	ErrIncorrectFundingAmount   = errors.New("funding amount must equal the loan amount")
	ErrIncorrectRepaymentAmount = errors.New("repayment must equal principal plus interest")
)

// State-precondition errors: the loan is in the wrong lifecycle state for the call.
var (
	ErrNotFound                 = errors.New("loan not found")
	ErrAlreadyFunded            = errors.New("loan already funded")
	ErrSelfFunding              = errors.New("borrower cannot fund own loan")
	ErrLoanExpired              = errors.New("loan is past its due date")
	ErrNotFunded                = errors.New("loan not funded")
	ErrAlreadyRepaid            = errors.New("loan already repaid")
	ErrCollateralAlreadyClaimed = errors.New("collateral already claimed")
	ErrWrongCaller              = errors.New("caller is not allowed to perform this action")
	ErrNotYetDue                = errors.New("loan is not yet due")
)

// ErrLoanAlreadyRepaid is what claim reports for a repaid loan; repay itself reports
// ErrAlreadyRepaid.
var ErrLoanAlreadyRepaid = errors.New("loan already repaid, collateral returned")

var codes = map[error]string{
	ErrInvalidCollateral:        "InvalidCollateral",
	ErrInvalidDuration:          "InvalidDuration",
	ErrInvalidInterestRate:      "InvalidInterestRate",
	ErrInvalidCaller:            "InvalidCaller",
	ErrIncorrectFundingAmount:   "IncorrectFundingAmount",
	ErrIncorrectRepaymentAmount: "IncorrectRepaymentAmount",
	ErrNotFound:                 "LoanNotFound",
	ErrAlreadyFunded:            "AlreadyFunded",
	ErrSelfFunding:              "SelfFunding",
	ErrLoanExpired:              "LoanExpired",
	ErrNotFunded:                "NotFunded",
	ErrAlreadyRepaid:            "AlreadyRepaid",
	ErrLoanAlreadyRepaid:        "LoanAlreadyRepaid",
	ErrCollateralAlreadyClaimed: "CollateralAlreadyClaimed",
	ErrWrongCaller:              "WrongCaller",
	ErrNotYetDue:                "NotYetDue",
}

// Code returns the stable identifier of a domain error (also when wrapped), or "" if err
// is not one.
func Code(err error) string {
	for target, code := range codes {
		if errors.Is(err, target) {
			return code
		}
	}
	return ""
}

// IsValidation reports whether err is a malformed-input error.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidCollateral, ErrInvalidDuration, ErrInvalidInterestRate, ErrInvalidCaller,
		ErrIncorrectFundingAmount, ErrIncorrectRepaymentAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
