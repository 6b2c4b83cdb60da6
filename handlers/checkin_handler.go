package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"gritAPI/middleware"
	"gritAPI/services"
)

type CheckinHandler struct {
	entryService *services.EntryService
}

func NewCheckinHandler(entryService *services.EntryService) *CheckinHandler {
	return &CheckinHandler{
		entryService: entryService,
	}
}

// GetCheckin returns the caller's entry for a date, or an empty body when
// nothing was submitted yet. Absence is a normal state, not a 404.
func (h *CheckinHandler) GetCheckin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	entry, err := h.entryService.GetEntry(ctx, clerkID, challengeID, r.URL.Query().Get("date"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if entry == nil {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"entry": nil})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"entry": entry})
}

// PutCheckin creates or replaces the caller's entry for a date. The submitted
// verdict set is the whole truth for that day; counts are recomputed fresh.
func (h *CheckinHandler) PutCheckin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	var req services.UpsertEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.entryService.UpsertEntry(ctx, clerkID, challengeID, &req)
	if err != nil {
		middleware.CountCheckin("error")
		respondWithAppError(w, err)
		return
	}

	middleware.CountCheckin("ok")
	respondWithJSON(w, http.StatusOK, entry)
}

// ListEntries returns the challenge's whole entry history with participant
// display names attached, newest first.
func (h *CheckinHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	_, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	entries, err := h.entryService.ListEntries(ctx, challengeID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}
