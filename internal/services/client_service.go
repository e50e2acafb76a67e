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

	"github.com/meridianbank/backoffice/internal/models"
)

type ClientService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewClientService(db *sql.DB) *ClientService {
	return &ClientService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

type clientRequest struct {
	CivilID     string `json:"civil_id" validate:"required,max=75"`
	Name        string `json:"name" validate:"required,max=200"`
	Gender      string `json:"gender" validate:"max=75"`
	Age         int    `json:"age" validate:"omitempty,gte=0,lte=150"`
	Address     string `json:"address" validate:"max=500"`
	PhoneNumber string `json:"phone_number" validate:"required,max=50"`
	Status      bool   `json:"status"`
}

// CreateClient registers a new client
// @Summary Create client
// @Tags clients
// @Accept json
// @Produce json
// @Param client body clientRequest true "Client data"
// @Success 201 {object} models.Client
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /clients [post]
func (cs *ClientService) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest

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

	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	client := models.Client{
		CivilID:     req.CivilID,
		Name:        req.Name,
		Gender:      req.Gender,
		Age:         req.Age,
		Address:     req.Address,
		PhoneNumber: req.PhoneNumber,
		Status:      req.Status,
	}
	client.Normalize()

	err := cs.db.QueryRowContext(r.Context(), `
		INSERT INTO clients (civil_id, name, gender, age, address, phone_number, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		client.CivilID, client.Name, client.Gender, client.Age, client.Address,
		client.PhoneNumber, client.Status).
		Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		log.Printf("[CLIENT] Failed to create client %q: %v", client.CivilID, err)
		SendErrorResponse(w, "Failed to create client", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(client)
}

// GetClient retrieves a client by id
// @Summary Get client by ID
// @Tags clients
// @Produce json
// @Param clientId path int true "Client ID"
// @Success 200 {object} models.Client
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /clients/{clientId} [get]
func (cs *ClientService) GetClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(chi.URLParam(r, "clientId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid client id", http.StatusBadRequest, nil)
		return
	}

	var client models.Client
	err = cs.db.QueryRowContext(r.Context(), `
		SELECT id, civil_id, name, gender, age, address, phone_number, status, created_at, updated_at
		FROM clients
		WHERE id = $1`, clientID).Scan(
		&client.ID, &client.CivilID, &client.Name, &client.Gender, &client.Age,
		&client.Address, &client.PhoneNumber, &client.Status, &client.CreatedAt, &client.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		SendErrorResponse(w, "Client not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[CLIENT] Failed to fetch client %d: %v", clientID, err)
		SendErrorResponse(w, "Failed to fetch client", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(client)
}

// UpdateClient replaces a client's fields
// @Summary Update client
// @Tags clients
// @Accept json
// @Param clientId path int true "Client ID"
// @Param client body clientRequest true "Client data"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /clients/{clientId} [put]
func (cs *ClientService) UpdateClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(chi.URLParam(r, "clientId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid client id", http.StatusBadRequest, nil)
		return
	}

	var req clientRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1_048_576))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	client := models.Client{CivilID: req.CivilID}
	client.Normalize()

	result, err := cs.db.ExecContext(r.Context(), `
		UPDATE clients
		SET civil_id = $1, name = $2, gender = $3, age = $4, address = $5,
		    phone_number = $6, status = $7, updated_at = $8
		WHERE id = $9`,
		client.CivilID, req.Name, req.Gender, req.Age, req.Address,
		req.PhoneNumber, req.Status, time.Now(), clientID)
	if err != nil {
		log.Printf("[CLIENT] Failed to update client %d: %v", clientID, err)
		SendErrorResponse(w, "Failed to update client", http.StatusInternalServerError, nil)
		return
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Client not found", http.StatusNotFound, nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteClient removes a client without accounts
// @Summary Delete client
// @Tags clients
// @Param clientId path int true "Client ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /clients/{clientId} [delete]
func (cs *ClientService) DeleteClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(chi.URLParam(r, "clientId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid client id", http.StatusBadRequest, nil)
		return
	}

	var hasAccounts bool
	err = cs.db.QueryRowContext(r.Context(),
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE client_id = $1)`, clientID).Scan(&hasAccounts)
	if err != nil {
		log.Printf("[CLIENT] Failed to check accounts for client %d: %v", clientID, err)
		SendErrorResponse(w, "Failed to delete client", http.StatusInternalServerError, nil)
		return
	}
	if hasAccounts {
		SendErrorResponse(w, "Client has accounts", http.StatusConflict, nil)
		return
	}

	result, err := cs.db.ExecContext(r.Context(), `DELETE FROM clients WHERE id = $1`, clientID)
	if err != nil {
		log.Printf("[CLIENT] Failed to delete client %d: %v", clientID, err)
		SendErrorResponse(w, "Failed to delete client", http.StatusInternalServerError, nil)
		return
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Client not found", http.StatusNotFound, nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
