package handlers

import (
	"errors"
	"net/http"

	"github.com/ligasur/matchday/services"
)

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// GetReport: GET /matches/{matchID}/report
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid match id"))
		return
	}

	report, err := h.reports.Build(r.Context(), matchID)
	if err != nil {
		mapConsoleErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"report": report}, nil)
}

// ExportReport: POST /matches/{matchID}/report/export
func (h *ReportHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid match id"))
		return
	}

	url, err := h.reports.Export(r.Context(), matchID)
	if err != nil {
		mapConsoleErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"url": url}, nil)
}
