package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
)

type ReportService struct {
	db *sql.DB
}

func NewReportService(db *sql.DB) *ReportService {
	return &ReportService{db: db}
}

// GetMovementsReport lists a client's movements over a date range
// @Summary Movement report
// @Description List a client's movements across all accounts in [initDate, endDate), ordered by account, time, then movement id
// @Tags reports
// @Produce json
// @Param clientId query int true "Client ID"
// @Param initDate query string true "Range start (YYYY-MM-DD or RFC3339)"
// @Param endDate query string true "Range end, exclusive (YYYY-MM-DD or RFC3339)"
// @Success 200 {object} object{movements=[]MovementDetail,count=int}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /reports [get]
func (rs *ReportService) GetMovementsReport(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(r.URL.Query().Get("clientId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid client id", http.StatusBadRequest, nil)
		return
	}

	initDate, err := parseDateParam(r.URL.Query().Get("initDate"))
	if err != nil {
		SendErrorResponse(w, "Invalid initDate", http.StatusBadRequest, nil)
		return
	}

	endDate, err := parseDateParam(r.URL.Query().Get("endDate"))
	if err != nil {
		SendErrorResponse(w, "Invalid endDate", http.StatusBadRequest, nil)
		return
	}

	if !initDate.Before(endDate) {
		SendErrorResponse(w, "initDate must be before endDate", http.StatusBadRequest, nil)
		return
	}

	movements, err := fetchClientMovements(r.Context(), rs.db, clientID, initDate, endDate)
	if err != nil {
		log.Printf("[REPORT] Failed to fetch movements for client %d: %v", clientID, err)
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
