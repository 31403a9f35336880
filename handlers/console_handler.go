package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ligasur/matchday/live"
	"github.com/ligasur/matchday/models"
	"github.com/ligasur/matchday/services"
)

// ConsoleHandler — HTTP-поверхность консоли скорера: открытие сессии,
// фиксация и отмена инцидентов, переходы фаз, снапшот.
type ConsoleHandler struct {
	console *services.ConsoleService
}

func NewConsoleHandler(console *services.ConsoleService) *ConsoleHandler {
	return &ConsoleHandler{console: console}
}

func matchIDParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "matchID"))
}

// OpenSession: POST /matches/{matchID}/console
func (h *ConsoleHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid match id"))
		return
	}

	snap, err := h.console.Open(r.Context(), matchID)
	if err != nil {
		mapConsoleErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"snapshot": snap}, nil)
}

// CloseSession: DELETE /matches/{matchID}/console
func (h *ConsoleHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid match id"))
		return
	}

	if err := h.console.Close(matchID); err != nil {
		mapConsoleErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordIncident: POST /matches/{matchID}/incidents
func (h *ConsoleHandler) RecordIncident(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid match id"))
		return
	}

	var input live.IncidentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	snap, err := h.console.RecordIncident(r.Context(), matchID, input)
	if err != nil {
		mapConsoleErrorToHTTP(w, r, err)
		return
	}
	// 202: запись применена оптимистично, подтверждение придёт по ленте.
	writeJSON(w, http.StatusAccepted, jsonResponse{"snapshot": snap}, nil)
}

// UndoIncident: DELETE /matches/{matchID}/incidents/{entryID}
func (h *ConsoleHandler) UndoIncident(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid match id"))
		return
	}
	entryID := chi.URLParam(r, "entryID")
	if entryID == "" {
		badRequestResponse(w, r, errors.New("missing entry id"))
		return
	}

	snap, err := h.console.UndoIncident(r.Context(), matchID, entryID)
	if err != nil {
		mapConsoleErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jsonResponse{"snapshot": snap}, nil)
}

// TransitionPhase: POST /matches/{matchID}/phase
func (h *ConsoleHandler) TransitionPhase(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid match id"))
		return
	}

	var input struct {
		Action models.PhaseAction `json:"action"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	snap, err := h.console.TransitionPhase(r.Context(), matchID, input.Action)
	if err != nil {
		mapConsoleErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jsonResponse{"snapshot": snap}, nil)
}

// Snapshot: GET /matches/{matchID}/snapshot
func (h *ConsoleHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, errors.New("invalid match id"))
		return
	}

	snap, err := h.console.Snapshot(r.Context(), matchID)
	if err != nil {
		mapConsoleErrorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"snapshot": snap}, nil)
}
