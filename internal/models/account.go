package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account product.
type AccountType string

const (
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeSavings  AccountType = "SAVINGS"
)

type Account struct {
	ID             int64           `json:"id" db:"id"`
	Type           AccountType     `json:"type" db:"type"`
	InitialBalance decimal.Decimal `json:"initial_balance" db:"initial_balance"`
	Balance        decimal.Decimal `json:"balance" db:"balance"`
	Status         bool            `json:"status" db:"status"`
	Version        int             `json:"-" db:"version"` // for optimistic locking
	ClientID       int64           `json:"client_id" db:"client_id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// PrepareToBeCreated seeds the running balance from the initial balance.
// From then on the posting engine is the only writer of Balance.
func (a *Account) PrepareToBeCreated() {
	a.Balance = a.InitialBalance
}
