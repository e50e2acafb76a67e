package services

import "github.com/shopspring/decimal"

// MovementState is the outcome of validating a proposed movement against
// the funds and daily-debit-limit invariants.
type MovementState int

const (
	MovementOK MovementState = iota
	MovementInsufficientFunds
	MovementExceededDailyLimit
)

func (s MovementState) String() string {
	switch s {
	case MovementOK:
		return "OK"
	case MovementInsufficientFunds:
		return "INSUFFICIENT_FUNDS"
	case MovementExceededDailyLimit:
		return "EXCEEDED_DAILY_LIMIT"
	}
	return "UNKNOWN"
}

// ValidateMovement decides whether a proposed balance change is allowed.
// balance and priorDailyDebits must come from the same snapshot. The funds
// check is evaluated first and wins when both rules would reject. A zero
// resulting balance is allowed. Credits never count toward the daily limit.
func ValidateMovement(balance, value, priorDailyDebits, dailyDebitLimit decimal.Decimal) MovementState {
	if balance.Add(value).IsNegative() {
		return MovementInsufficientFunds
	}

	if value.IsNegative() {
		if priorDailyDebits.Add(value.Neg()).GreaterThan(dailyDebitLimit) {
			return MovementExceededDailyLimit
		}
	}

	return MovementOK
}
