package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Movement is a single signed balance change posted against an account.
// InitialBalance and Balance snapshot the account balance immediately
// before and after the movement, so Balance = InitialBalance + Value holds
// for every posted row.
type Movement struct {
	ID             int64           `json:"id" db:"id"`
	Date           time.Time       `json:"date" db:"date"`
	InitialBalance decimal.Decimal `json:"initial_balance" db:"initial_balance"`
	Value          decimal.Decimal `json:"value" db:"value"`
	Balance        decimal.Decimal `json:"balance" db:"balance"`
	AccountID      int64           `json:"account_id" db:"account_id"`
}

// IsDebit reports whether the movement reduces the balance.
func (m *Movement) IsDebit() bool {
	return m.Value.IsNegative()
}
