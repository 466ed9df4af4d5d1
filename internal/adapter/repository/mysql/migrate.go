package mysql

import (
	"collateral-loans/internal/domain/account"
	"collateral-loans/internal/domain/event"
	"collateral-loans/internal/domain/loan"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Models lists every table the service owns.
func Models() []any {
	return []any{&loan.Loan{}, &loan.Sequence{}, &event.Event{}, &account.Account{}}
}

// Migrate creates or updates the schema and seeds the loan id sequence at 0.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&loan.Sequence{Name: loan.LoanSequence, Next: 0}).Error
}
