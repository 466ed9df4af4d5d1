package event

import (
	"encoding/json"
	"fmt"
	"time"

	"collateral-loans/pkg/id"
	"collateral-loans/pkg/wei"

	"github.com/ethereum/go-ethereum/common"
)

type Type string

const (
	TypeLoanRequested     Type = "LoanRequested"
	TypeLoanFunded        Type = "LoanFunded"
	TypeLoanRepaid        Type = "LoanRepaid"
	TypeCollateralClaimed Type = "CollateralClaimed"
)

// Event is an outbox row written in the same transaction as the transition it records.
type Event struct {
	Seq         uint64     `gorm:"column:seq;primaryKey;autoIncrement" json:"seq"`
	EventID     string     `gorm:"column:event_id;type:char(32);not null;uniqueIndex:ux_loan_events_event_id" json:"event_id"`
	LoanID      uint64     `gorm:"column:loan_id;not null;index:idx_loan_events_loan" json:"loan_id"`
	Type        Type       `gorm:"column:type;size:32;not null" json:"type"`
	Payload     []byte     `gorm:"column:payload;type:json;not null" json:"payload"`
	OccurredAt  time.Time  `gorm:"column:occurred_at;not null" json:"occurred_at"`
	PublishedAt *time.Time `gorm:"column:published_at;index:idx_loan_events_published" json:"published_at,omitempty"`
}

func (Event) TableName() string { return "loan_events" }

// Payloads, one per Type.

type LoanRequested struct {
	LoanID       uint64         `json:"id"`
	Borrower     common.Address `json:"borrower"`
	Collateral   wei.Amount     `json:"collateral"`
	LoanAmount   wei.Amount     `json:"loan_amount"`
	InterestRate uint32         `json:"interest_rate"`
	DueDate      uint64         `json:"due_date"`
}

type LoanFunded struct {
	LoanID uint64         `json:"id"`
	Lender common.Address `json:"lender"`
}

type LoanRepaid struct {
	LoanID uint64 `json:"id"`
}

type CollateralClaimed struct {
	LoanID uint64 `json:"id"`
}

func New(t Type, loanID uint64, payload any, at time.Time) (*Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Event{
		EventID:    id.NewID32(),
		LoanID:     loanID,
		Type:       t,
		Payload:    b,
		OccurredAt: at.UTC(),
	}, nil
}
