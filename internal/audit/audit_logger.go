package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianbank/backoffice/internal/models"
)

type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	EventType  string    `json:"event_type"`
	MovementID int64     `json:"movement_id,omitempty"`
	AccountID  int64     `json:"account_id"`
	Value      string    `json:"value,omitempty"`
	Status     string    `json:"status"`
	Details    any       `json:"details,omitempty"`
}

type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogPosted(m *models.Movement) {
	event := Event{
		Timestamp:  time.Now(),
		EventType:  "MOVEMENT_POSTED",
		MovementID: m.ID,
		AccountID:  m.AccountID,
		Value:      m.Value.String(),
		Status:     "SUCCESS",
		Details: map[string]string{
			"initial_balance": m.InitialBalance.String(),
			"balance":         m.Balance.String(),
		},
	}
	a.log(event)
}

func (a *Logger) LogRejected(accountID int64, value decimal.Decimal, reason string) {
	event := Event{
		Timestamp: time.Now(),
		EventType: "MOVEMENT_REJECTED",
		AccountID: accountID,
		Value:     value.String(),
		Status:    "REJECTED",
		Details:   map[string]string{"reason": reason},
	}
	a.log(event)
}

func (a *Logger) LogError(accountID int64, err error) {
	event := Event{
		Timestamp: time.Now(),
		EventType: "ERROR",
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
