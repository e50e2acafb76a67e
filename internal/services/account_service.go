package services

import (
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

type AccountService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// AccountDetail is an account row joined with its owner's name.
type AccountDetail struct {
	models.Account
	ClientName string `json:"client_name"`
}

// CreateAccount opens a new account
// @Summary Create account
// @Description Open an account for a client; the running balance starts at the initial balance
// @Tags accounts
// @Accept json
// @Produce json
// @Param account body object{type=string,initial_balance=number,status=bool,client_id=int} true "Account data"
// @Success 201 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /accounts [post]
func (as *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type           models.AccountType `json:"type" validate:"required,oneof=CHECKING SAVINGS"`
		InitialBalance decimal.Decimal    `json:"initial_balance"`
		Status         bool               `json:"status"`
		ClientID       int64              `json:"client_id" validate:"required,gt=0"`
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1_048_576))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if req.InitialBalance.IsNegative() {
		SendErrorResponse(w, "Initial balance cannot be negative", http.StatusBadRequest, nil)
		return
	}

	var clientExists bool
	err := as.db.QueryRowContext(r.Context(),
		`SELECT EXISTS(SELECT 1 FROM clients WHERE id = $1)`, req.ClientID).Scan(&clientExists)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to check client %d: %v", req.ClientID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}
	if !clientExists {
		SendErrorResponse(w, "Client not found", http.StatusNotFound, nil)
		return
	}

	account := models.Account{
		Type:           req.Type,
		InitialBalance: req.InitialBalance,
		Status:         req.Status,
		ClientID:       req.ClientID,
	}
	account.PrepareToBeCreated()

	err = as.db.QueryRowContext(r.Context(), `
		INSERT INTO accounts (type, initial_balance, balance, status, version, client_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		account.Type, account.InitialBalance, account.Balance, account.Status, account.ClientID).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to create account for client %d: %v", req.ClientID, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// GetAccount retrieves an account by id
// @Summary Get account by ID
// @Tags accounts
// @Produce json
// @Param accountId path int true "Account ID"
// @Success 200 {object} AccountDetail
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /accounts/{accountId} [get]
func (as *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	var detail AccountDetail
	err = as.db.QueryRowContext(r.Context(), `
		SELECT a.id, a.type, a.initial_balance, a.balance, a.status, a.client_id,
		       a.created_at, a.updated_at, c.name
		FROM accounts a
		JOIN clients c ON a.client_id = c.id
		WHERE a.id = $1`, accountID).Scan(
		&detail.ID, &detail.Type, &detail.InitialBalance, &detail.Balance, &detail.Status,
		&detail.ClientID, &detail.CreatedAt, &detail.UpdatedAt, &detail.ClientName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ACCOUNT] Failed to fetch account %d: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail)
}

// UpdateAccount replaces an account's administrative fields
// @Summary Update account
// @Description Balance fields are owned by the posting engine and cannot be updated here
// @Tags accounts
// @Accept json
// @Produce json
// @Param accountId path int true "Account ID"
// @Param account body object{type=string,status=bool,client_id=int} true "Account data"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /accounts/{accountId} [put]
func (as *AccountService) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	var req struct {
		Type     models.AccountType `json:"type" validate:"required,oneof=CHECKING SAVINGS"`
		Status   bool               `json:"status"`
		ClientID int64              `json:"client_id" validate:"required,gt=0"`
	}

	// Strict decoding keeps balance and initial_balance out of reach: the
	// posting engine is the only balance writer.
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1_048_576))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := as.db.ExecContext(r.Context(), `
		UPDATE accounts
		SET type = $1, status = $2, client_id = $3, updated_at = $4
		WHERE id = $5`,
		req.Type, req.Status, req.ClientID, time.Now(), accountID)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to update account %d: %v", accountID, err)
		SendErrorResponse(w, "Failed to update account", http.StatusInternalServerError, nil)
		return
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PatchAccount partially updates an account's administrative fields
// @Summary Patch account
// @Description Balance fields are owned by the posting engine and cannot be patched here
// @Tags accounts
// @Accept json
// @Produce json
// @Param accountId path int true "Account ID"
// @Param account body object{type=string,status=bool,client_id=int} false "Fields to update"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /accounts/{accountId} [patch]
func (as *AccountService) PatchAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	var req struct {
		Type     *models.AccountType `json:"type" validate:"omitempty,oneof=CHECKING SAVINGS"`
		Status   *bool               `json:"status"`
		ClientID *int64              `json:"client_id" validate:"omitempty,gt=0"`
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1_048_576))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if req.Type == nil && req.Status == nil && req.ClientID == nil {
		SendErrorResponse(w, "No fields to update", http.StatusBadRequest, nil)
		return
	}

	result, err := as.db.ExecContext(r.Context(), `
		UPDATE accounts
		SET type = COALESCE($1, type),
		    status = COALESCE($2, status),
		    client_id = COALESCE($3, client_id),
		    updated_at = $4
		WHERE id = $5`,
		req.Type, req.Status, req.ClientID, time.Now(), accountID)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to patch account %d: %v", accountID, err)
		SendErrorResponse(w, "Failed to update account", http.StatusInternalServerError, nil)
		return
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAccount removes an account without movements
// @Summary Delete account
// @Tags accounts
// @Param accountId path int true "Account ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /accounts/{accountId} [delete]
func (as *AccountService) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	var hasMovements bool
	err = as.db.QueryRowContext(r.Context(),
		`SELECT EXISTS(SELECT 1 FROM movements WHERE account_id = $1)`, accountID).Scan(&hasMovements)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to check movements for account %d: %v", accountID, err)
		SendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}
	if hasMovements {
		SendErrorResponse(w, "Account has posted movements", http.StatusConflict, nil)
		return
	}

	result, err := as.db.ExecContext(r.Context(), `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		log.Printf("[ACCOUNT] Failed to delete account %d: %v", accountID, err)
		SendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AccountBalanceEnquiry retrieves an account's current balance
// @Summary Get account balance
// @Tags accounts
// @Produce json
// @Param accountId path int true "Account ID"
// @Success 200 {object} object{account_id=int,balance=number,status=string}
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /accounts/{accountId}/balance [get]
func (as *AccountService) AccountBalanceEnquiry(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	var balance decimal.Decimal
	var active bool
	err = as.db.QueryRowContext(r.Context(),
		`SELECT balance, status FROM accounts WHERE id = $1`, accountID).Scan(&balance, &active)
	if errors.Is(err, sql.ErrNoRows) {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ACCOUNT] Balance enquiry failed for account %d: %v", accountID, err)
		SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	if !active {
		SendErrorResponse(w, "Account not active", http.StatusForbidden, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"account_id": accountID,
		"balance":    balance,
		"status":     "ACTIVE",
	})
}
