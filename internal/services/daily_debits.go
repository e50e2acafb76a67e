package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dayWindow returns the half-open calendar-day window [start, end)
// containing t, in t's location.
func dayWindow(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// SumDebitsInWindow sums the magnitudes of the account's debit movements
// whose timestamp falls in [start, end). Returns zero when there are none.
// When called with the posting transaction it reads the same snapshot the
// posting cycle validates against.
func SumDebitsInWindow(ctx context.Context, q rowQuerier, accountID int64, start, end time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(-value), 0)
		FROM movements
		WHERE account_id = $1 AND value < 0 AND date >= $2 AND date < $3`,
		accountID, start, end).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// DailyDebits sums the debit magnitudes already posted for the account on
// the calendar day containing t.
func DailyDebits(ctx context.Context, q rowQuerier, accountID int64, t time.Time) (decimal.Decimal, error) {
	start, end := dayWindow(t)
	return SumDebitsInWindow(ctx, q, accountID, start, end)
}
