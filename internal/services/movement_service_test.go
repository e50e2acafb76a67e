package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func newMovementRouter(ms *MovementService) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/movements", ms.CreateMovement)
	r.Get("/movements/day", ms.GetDayMovements)
	r.Get("/movements/{movementId}", ms.GetMovement)
	r.Put("/movements/{movementId}", ms.UpdateMovementDate)
	return r
}

func TestMovementService_CreateMovement(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewMovementService(db, newTestPostingService(db, nil))
	router := newMovementRouter(service)

	t.Run("successful post", func(t *testing.T) {
		ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

		mock.ExpectBegin()
		expectAccountRow(mock, 1, "1000", true, 0)
		mock.ExpectQuery(sumDebitsQuery).
			WithArgs(int64(1), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("0"))
		mock.ExpectQuery(insertMovementStmt).
			WithArgs(ts, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
		mock.ExpectExec(updateBalanceStmt).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1), 0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		body := `{"account_id": 1, "value": "-1000", "date": "2026-03-14T10:00:00Z"}`
		req := httptest.NewRequest("POST", "/movements", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var response struct {
			Success  bool `json:"success"`
			Movement struct {
				ID      int64  `json:"id"`
				Balance string `json:"balance"`
			} `json:"movement"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response.Success)
		assert.Equal(t, int64(7), response.Movement.ID)
		assert.Equal(t, "0", response.Movement.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds maps to 422", func(t *testing.T) {
		mock.ExpectBegin()
		expectAccountRow(mock, 1, "1000", true, 0)
		mock.ExpectQuery(sumDebitsQuery).
			WithArgs(int64(1), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("0"))
		mock.ExpectRollback()

		body := `{"account_id": 1, "value": "-1001", "date": "2026-03-14T10:00:00Z"}`
		req := httptest.NewRequest("POST", "/movements", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var response ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "Insufficient funds", response.Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero value maps to 422", func(t *testing.T) {
		body := `{"account_id": 1, "value": "0"}`
		req := httptest.NewRequest("POST", "/movements", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("unknown account maps to 404", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountQuery).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "status", "version"}))
		mock.ExpectRollback()

		body := `{"account_id": 99, "value": "100"}`
		req := httptest.NewRequest("POST", "/movements", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid request body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/movements", bytes.NewBufferString("invalid"))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		body := `{"account_id": 1, "value": "100", "balance": "9999"}`
		req := httptest.NewRequest("POST", "/movements", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMovementService_GetDayMovements(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewMovementService(db, newTestPostingService(db, nil))
	router := newMovementRouter(service)

	t.Run("returns the client's movements for the day", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "date", "initial_balance", "value", "balance", "account_id", "type", "status", "name"}).
			AddRow(1, time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC), "1000", "-600", "400", 1, "CHECKING", true, "Ada Lovelace").
			AddRow(2, time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC), "400", "100", "500", 1, "CHECKING", true, "Ada Lovelace")

		mock.ExpectQuery("SELECT m.id, m.date, m.initial_balance, m.value, m.balance, m.account_id, a.type, a.status, c.name FROM movements m").
			WithArgs(int64(5), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(rows)

		req := httptest.NewRequest("GET", "/movements/day?clientId=5&date=2026-03-14", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Count     int              `json:"count"`
			Movements []MovementDetail `json:"movements"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 2, response.Count)
		assert.Equal(t, "Ada Lovelace", response.Movements[0].ClientName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("404 when the day has no movements", func(t *testing.T) {
		mock.ExpectQuery("SELECT m.id, m.date, m.initial_balance, m.value, m.balance, m.account_id, a.type, a.status, c.name FROM movements m").
			WithArgs(int64(5), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "date", "initial_balance", "value", "balance", "account_id", "type", "status", "name"}))

		req := httptest.NewRequest("GET", "/movements/day?clientId=5&date=2026-03-14", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid client id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/movements/day?clientId=abc&date=2026-03-14", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMovementService_GetMovement(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewMovementService(db, newTestPostingService(db, nil))
	router := newMovementRouter(service)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT m.id, m.date, m.initial_balance, m.value, m.balance, m.account_id, a.type, a.status, c.name FROM movements m").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "date", "initial_balance", "value", "balance", "account_id", "type", "status", "name"}).
				AddRow(7, time.Now(), "1000", "-600", "400", 1, "SAVINGS", true, "Ada Lovelace"))

		req := httptest.NewRequest("GET", "/movements/7", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var detail MovementDetail
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
		assert.Equal(t, int64(7), detail.ID)
		assert.True(t, detail.Balance.Equal(detail.InitialBalance.Add(detail.Value)))
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT m.id, m.date, m.initial_balance, m.value, m.balance, m.account_id, a.type, a.status, c.name FROM movements m").
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		req := httptest.NewRequest("GET", "/movements/8", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestMovementService_UpdateMovementDate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewMovementService(db, newTestPostingService(db, nil))
	router := newMovementRouter(service)

	t.Run("updates the timestamp", func(t *testing.T) {
		mock.ExpectExec("UPDATE movements SET date = \\$1 WHERE id = \\$2").
			WithArgs(sqlmock.AnyArg(), int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		body := `{"date": "2026-03-13T08:00:00Z"}`
		req := httptest.NewRequest("PUT", "/movements/7", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("value is immutable", func(t *testing.T) {
		body := `{"date": "2026-03-13T08:00:00Z", "value": "100"}`
		req := httptest.NewRequest("PUT", "/movements/7", bytes.NewBufferString(body))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
