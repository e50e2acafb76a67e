package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridianbank/backoffice/internal/models"
)

type MovementService struct {
	db        *sql.DB
	posting   *PostingService
	validator *ValidationHelper
}

func NewMovementService(db *sql.DB, posting *PostingService) *MovementService {
	return &MovementService{
		db:        db,
		posting:   posting,
		validator: NewValidationHelper(),
	}
}

// MovementDetail is a movement row joined with its account and owner,
// the shape returned by read endpoints and reports.
type MovementDetail struct {
	ID             int64              `json:"id"`
	Date           time.Time          `json:"date"`
	InitialBalance decimal.Decimal    `json:"initial_balance"`
	Value          decimal.Decimal    `json:"value"`
	Balance        decimal.Decimal    `json:"balance"`
	AccountID      int64              `json:"account_id"`
	AccountType    models.AccountType `json:"account_type"`
	AccountStatus  bool               `json:"account_status"`
	ClientName     string             `json:"client_name"`
}

// CreateMovement posts a movement against an account
// @Summary Post a movement
// @Description Validate and durably record a signed balance change against an account
// @Tags movements
// @Accept json
// @Produce json
// @Param movement body object{account_id=int,value=number,date=string} true "Movement data"
// @Success 201 {object} models.Movement
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /movements [post]
func (ms *MovementService) CreateMovement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int64           `json:"account_id" validate:"required,gt=0"`
		Value     decimal.Decimal `json:"value"`
		Date      *time.Time      `json:"date"`
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := ms.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	movement, err := ms.posting.Post(r.Context(), req.AccountID, req.Value, req.Date)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountNotFound):
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		case errors.Is(err, ErrInvalidValue):
			SendErrorResponse(w, "Movement value must be nonzero", http.StatusUnprocessableEntity, nil)
		case errors.Is(err, ErrInsufficientFunds):
			SendErrorResponse(w, "Insufficient funds", http.StatusUnprocessableEntity, nil)
		case errors.Is(err, ErrExceededDailyLimit):
			SendErrorResponse(w, "Transaction would exceed the daily debits limit", http.StatusUnprocessableEntity, nil)
		default:
			log.Printf("[MOVEMENT] Failed to post movement for account %d: %v", req.AccountID, err)
			SendErrorResponse(w, "Failed to process movement", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":  true,
		"movement": movement,
	})
}

// GetMovement retrieves a movement by id
// @Summary Get movement by ID
// @Tags movements
// @Produce json
// @Param movementId path int true "Movement ID"
// @Success 200 {object} MovementDetail
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /movements/{movementId} [get]
func (ms *MovementService) GetMovement(w http.ResponseWriter, r *http.Request) {
	movementID, err := strconv.ParseInt(chi.URLParam(r, "movementId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid movement id", http.StatusBadRequest, nil)
		return
	}

	var detail MovementDetail
	err = ms.db.QueryRowContext(r.Context(), `
		SELECT m.id, m.date, m.initial_balance, m.value, m.balance, m.account_id,
		       a.type, a.status, c.name
		FROM movements m
		JOIN accounts a ON m.account_id = a.id
		JOIN clients c ON a.client_id = c.id
		WHERE m.id = $1`, movementID).Scan(
		&detail.ID, &detail.Date, &detail.InitialBalance, &detail.Value, &detail.Balance,
		&detail.AccountID, &detail.AccountType, &detail.AccountStatus, &detail.ClientName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		SendErrorResponse(w, "Movement not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[MOVEMENT] Failed to fetch movement %d: %v", movementID, err)
		SendErrorResponse(w, "Failed to fetch movement", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}

// GetDayMovements lists a client's movements for one calendar day
// @Summary List a client's movements for a day
// @Tags movements
// @Produce json
// @Param clientId query int true "Client ID"
// @Param date query string true "Day (YYYY-MM-DD)"
// @Success 200 {object} object{movements=[]MovementDetail,count=int}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /movements/day [get]
func (ms *MovementService) GetDayMovements(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(r.URL.Query().Get("clientId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid client id", http.StatusBadRequest, nil)
		return
	}

	date, err := parseDateParam(r.URL.Query().Get("date"))
	if err != nil {
		SendErrorResponse(w, "Invalid date", http.StatusBadRequest, nil)
		return
	}

	start, end := dayWindow(date)
	movements, err := fetchClientMovements(r.Context(), ms.db, clientID, start, end)
	if err != nil {
		log.Printf("[MOVEMENT] Failed to fetch day movements for client %d: %v", clientID, err)
		SendErrorResponse(w, "Failed to fetch movements", http.StatusInternalServerError, nil)
		return
	}

	if len(movements) == 0 {
		SendErrorResponse(w, "No movements found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"movements": movements,
		"count":     len(movements),
	})
}

// UpdateMovementDate rewrites a posted movement's timestamp
// @Summary Update a movement's timestamp
// @Description The timestamp is the only mutable movement field; value and balance snapshots are immutable once posted
// @Tags movements
// @Accept json
// @Produce json
// @Param movementId path int true "Movement ID"
// @Param movement body object{date=string} true "New timestamp"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /movements/{movementId} [put]
func (ms *MovementService) UpdateMovementDate(w http.ResponseWriter, r *http.Request) {
	movementID, err := strconv.ParseInt(chi.URLParam(r, "movementId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid movement id", http.StatusBadRequest, nil)
		return
	}

	var req struct {
		Date time.Time `json:"date" validate:"required"`
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := ms.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := ms.db.ExecContext(r.Context(),
		`UPDATE movements SET date = $1 WHERE id = $2`, req.Date, movementID)
	if err != nil {
		log.Printf("[MOVEMENT] Failed to update movement %d: %v", movementID, err)
		SendErrorResponse(w, "Failed to update movement", http.StatusInternalServerError, nil)
		return
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Movement not found", http.StatusNotFound, nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// fetchClientMovements lists the client's movements across all of its
// accounts in [start, end), ordered by account, then time, then id.
func fetchClientMovements(ctx context.Context, db *sql.DB, clientID int64, start, end time.Time) ([]MovementDetail, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT m.id, m.date, m.initial_balance, m.value, m.balance, m.account_id,
		       a.type, a.status, c.name
		FROM movements m
		JOIN accounts a ON m.account_id = a.id
		JOIN clients c ON a.client_id = c.id
		WHERE a.client_id = $1 AND m.date >= $2 AND m.date < $3
		ORDER BY m.account_id, m.date, m.id`,
		clientID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := []MovementDetail{}
	for rows.Next() {
		var detail MovementDetail
		err := rows.Scan(
			&detail.ID, &detail.Date, &detail.InitialBalance, &detail.Value, &detail.Balance,
			&detail.AccountID, &detail.AccountType, &detail.AccountStatus, &detail.ClientName,
		)
		if err != nil {
			return nil, err
		}
		movements = append(movements, detail)
	}

	return movements, rows.Err()
}

func parseDateParam(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
