package loan

import (
	"encoding/json"
	"math/big"
	"time"

	"collateral-loans/internal/domain/event"
	domain "collateral-loans/internal/domain/loan"
	"collateral-loans/pkg/wei"

	"github.com/ethereum/go-ethereum/common"
)

// RequestLoanInput carries the collateral attached to the call in Value.
type RequestLoanInput struct {
	Caller       common.Address
	Value        *big.Int
	InterestRate uint64 // basis points
	Duration     uint64 // seconds
}

type FundLoanInput struct {
	LoanID uint64
	Caller common.Address
	Value  *big.Int
}

type RepayLoanInput struct {
	LoanID uint64
	Caller common.Address
	Value  *big.Int
}

type ClaimCollateralInput struct {
	LoanID uint64
	Caller common.Address
}

type LoanDTO struct {
	ID                uint64         `json:"id"`
	Borrower          common.Address `json:"borrower"`
	Lender            common.Address `json:"lender"`
	CollateralAmount  wei.Amount     `json:"collateral_amount"`
	LoanAmount        wei.Amount     `json:"loan_amount"`
	InterestRate      uint32         `json:"interest_rate"`
	DueDate           uint64         `json:"due_date"`
	IsFunded          bool           `json:"is_funded"`
	IsRepaid          bool           `json:"is_repaid"`
	CollateralClaimed bool           `json:"collateral_claimed"`
	Status            string         `json:"status"`
	TotalDue          wei.Amount     `json:"total_due"`
	CollateralEther   string         `json:"collateral_ether"`
	LoanAmountEther   string         `json:"loan_amount_ether"`
	TotalDueEther     string         `json:"total_due_ether"`
	CreatedAt         time.Time      `json:"created_at"`
}

type EventDTO struct {
	Seq         uint64          `json:"seq"`
	EventID     string          `json:"event_id"`
	Type        string          `json:"type"`
	LoanID      uint64          `json:"loan_id"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

func toDTO(l *domain.Loan) *LoanDTO {
	due := wei.New(l.TotalDue())
	return &LoanDTO{
		ID:                l.ID,
		Borrower:          l.Borrower,
		Lender:            l.Lender,
		CollateralAmount:  l.CollateralAmount,
		LoanAmount:        l.LoanAmount,
		InterestRate:      l.InterestRate,
		DueDate:           l.DueDate,
		IsFunded:          l.IsFunded,
		IsRepaid:          l.IsRepaid,
		CollateralClaimed: l.CollateralClaimed,
		Status:            string(l.Status()),
		TotalDue:          due,
		CollateralEther:   l.CollateralAmount.Ether(),
		LoanAmountEther:   l.LoanAmount.Ether(),
		TotalDueEther:     due.Ether(),
		CreatedAt:         l.CreatedAt,
	}
}

func toEventDTO(e *event.Event) EventDTO {
	return EventDTO{
		Seq:         e.Seq,
		EventID:     e.EventID,
		Type:        string(e.Type),
		LoanID:      e.LoanID,
		Payload:     json.RawMessage(e.Payload),
		OccurredAt:  e.OccurredAt,
		PublishedAt: e.PublishedAt,
	}
}
