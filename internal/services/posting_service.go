package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/meridianbank/backoffice/internal/audit"
	"github.com/meridianbank/backoffice/internal/metrics"
	"github.com/meridianbank/backoffice/internal/models"
)

// Business rejections returned by Post. They are expected outcomes of valid
// calls; anything else coming out of Post is an infrastructure failure and
// the only class the caller should retry.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidValue       = errors.New("movement value must be nonzero")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrExceededDailyLimit = errors.New("daily debits limit exceeded")
)

var errOptimisticLock = errors.New("optimistic lock failed")

const statementQueueKey = "statement_queue"

// PostingService is the only writer of account balances and the only
// creator of movement records. Each Post runs a read-validate-write cycle
// inside one database transaction: the account row is locked for the whole
// cycle and the balance update carries a version check, so two concurrent
// posts against the same account can never both succeed off the same
// balance snapshot.
type PostingService struct {
	db              *sql.DB
	redis           *redis.Client
	audit           *audit.Logger
	dailyDebitLimit decimal.Decimal
	maxAttempts     int
	txTimeout       time.Duration
}

func NewPostingService(db *sql.DB, redisClient *redis.Client) *PostingService {
	viper.SetDefault("posting.daily_debit_limit", "1000")
	viper.SetDefault("posting.max_attempts", 3)
	viper.SetDefault("posting.tx_timeout", 5*time.Second)

	limit, err := decimal.NewFromString(viper.GetString("posting.daily_debit_limit"))
	if err != nil {
		log.Printf("[POSTING] Invalid posting.daily_debit_limit %q, using 1000", viper.GetString("posting.daily_debit_limit"))
		limit = decimal.NewFromInt(1000)
	}

	return &PostingService{
		db:              db,
		redis:           redisClient,
		audit:           audit.NewLogger(),
		dailyDebitLimit: limit,
		maxAttempts:     viper.GetInt("posting.max_attempts"),
		txTimeout:       viper.GetDuration("posting.tx_timeout"),
	}
}

// Post validates and durably records a movement together with the account
// balance update it causes. The movement timestamp defaults to now when at
// is nil. Conflicting concurrent writers are retried internally with a
// fresh read of the balance and daily debits; retry exhaustion surfaces as
// an infrastructure error with no partial write.
func (s *PostingService) Post(ctx context.Context, accountID int64, value decimal.Decimal, at *time.Time) (*models.Movement, error) {
	started := time.Now()
	movement, err := s.post(ctx, accountID, value, at)
	metrics.PostingDuration.Observe(time.Since(started).Seconds())
	metrics.MovementsPosted.WithLabelValues(outcomeLabel(err)).Inc()
	return movement, err
}

func (s *PostingService) post(ctx context.Context, accountID int64, value decimal.Decimal, at *time.Time) (*models.Movement, error) {
	if value.IsZero() {
		s.audit.LogRejected(accountID, value, "invalid value")
		return nil, ErrInvalidValue
	}

	date := time.Now()
	if at != nil {
		date = *at
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		movement, err := s.postOnce(ctx, accountID, value, date)
		if err == nil {
			s.audit.LogPosted(movement)
			s.queueForStatement(movement)
			return movement, nil
		}

		if errors.Is(err, errOptimisticLock) || isSerializationFailure(err) {
			log.Printf("[POSTING] Conflict posting to account %d (attempt %d/%d), retrying", accountID, attempt, s.maxAttempts)
			lastErr = err
			continue
		}

		if isBusinessRejection(err) {
			s.audit.LogRejected(accountID, value, err.Error())
		} else {
			s.audit.LogError(accountID, err)
		}
		return nil, err
	}

	err := fmt.Errorf("posting retries exhausted for account %d: %w", accountID, lastErr)
	s.audit.LogError(accountID, err)
	return nil, err
}

// postOnce runs one full read-validate-write cycle. Every return path
// before Commit rolls the transaction back, so a rejection or failure
// leaves no observable state behind.
func (s *PostingService) postOnce(ctx context.Context, accountID int64, value decimal.Decimal, date time.Time) (*models.Movement, error) {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin posting transaction: %w", err)
	}
	defer tx.Rollback()

	account, err := s.lockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	priorDebits := decimal.Zero
	if value.IsNegative() {
		priorDebits, err = DailyDebits(ctx, tx, accountID, date)
		if err != nil {
			return nil, fmt.Errorf("aggregate daily debits: %w", err)
		}
	}

	switch ValidateMovement(account.Balance, value, priorDebits, s.dailyDebitLimit) {
	case MovementInsufficientFunds:
		return nil, ErrInsufficientFunds
	case MovementExceededDailyLimit:
		return nil, ErrExceededDailyLimit
	}

	movement := &models.Movement{
		Date:           date,
		InitialBalance: account.Balance,
		Value:          value,
		Balance:        account.Balance.Add(value),
		AccountID:      accountID,
	}

	if err := s.insertMovement(ctx, tx, movement); err != nil {
		return nil, fmt.Errorf("insert movement: %w", err)
	}

	if err := s.updateAccountBalance(ctx, tx, accountID, movement.Balance, account.Version); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit posting transaction: %w", err)
	}

	return movement, nil
}

func (s *PostingService) lockAccount(ctx context.Context, tx *sql.Tx, accountID int64) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRowContext(ctx, `
		SELECT id, balance, status, version
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID).Scan(&account.ID, &account.Balance, &account.Status, &account.Version)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock account %d: %w", accountID, err)
	}

	// Inactive accounts reject all posting.
	if !account.Status {
		return nil, ErrAccountNotFound
	}

	return &account, nil
}

func (s *PostingService) insertMovement(ctx context.Context, tx *sql.Tx, movement *models.Movement) error {
	return tx.QueryRowContext(ctx, `
		INSERT INTO movements (date, initial_balance, value, balance, account_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		movement.Date, movement.InitialBalance, movement.Value, movement.Balance, movement.AccountID).
		Scan(&movement.ID)
}

func (s *PostingService) updateAccountBalance(ctx context.Context, tx *sql.Tx, accountID int64, newBalance decimal.Decimal, version int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, time.Now(), accountID, version)
	if err != nil {
		return fmt.Errorf("update balance for account %d: %w", accountID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update balance for account %d: %w", accountID, err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("account %d: %w", accountID, errOptimisticLock)
	}

	return nil
}

// queueForStatement pushes the posted movement onto the statement queue.
// Best effort: the movement is already durable, a queue failure is only
// logged.
func (s *PostingService) queueForStatement(movement *models.Movement) {
	if s.redis == nil {
		return
	}

	data, err := json.Marshal(movement)
	if err != nil {
		log.Printf("[POSTING] Failed to marshal movement %d for statement queue: %v", movement.ID, err)
		return
	}

	if err := s.redis.RPush(context.Background(), statementQueueKey, data).Err(); err != nil {
		log.Printf("[POSTING] Failed to queue movement %d for statements: %v", movement.ID, err)
	}
}

func isBusinessRejection(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrExceededDailyLimit)
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// serialization_failure or deadlock_detected
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "posted"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrInvalidValue):
		return "invalid_value"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrExceededDailyLimit):
		return "exceeded_daily_limit"
	}
	return "server_error"
}
