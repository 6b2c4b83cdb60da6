package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"gritAPI/internal/blob"
	"gritAPI/internal/calendar"
	"gritAPI/middleware"
	"gritAPI/services"
)

type PhotoHandler struct {
	storage      *blob.Storage
	entryService *services.EntryService
}

func NewPhotoHandler(storage *blob.Storage, entryService *services.EntryService) *PhotoHandler {
	return &PhotoHandler{
		storage:      storage,
		entryService: entryService,
	}
}

// UploadPhoto takes a multipart image, streams it to the bucket and links the
// resulting URL onto the caller's entry for the date. The entry is created
// with an empty verdict set if it doesn't exist yet; uploading before
// checking in is a supported order.
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	// Upload budget is wider than the usual 5s; mobile photos over slow
	// links routinely need more.
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
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

	date := r.FormValue("date")
	if date == "" {
		date = calendar.Today(time.Local).String()
	}
	if _, err := calendar.ParseDate(date); err != nil {
		respondWithAppError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, blob.MaxPhotoBytes+1024)
	file, header, err := r.FormFile("photo")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Multipart field 'photo' is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := blob.ValidatePhoto(contentType, header.Size); err != nil {
		respondWithAppError(w, err)
		return
	}

	photoURL, err := h.storage.UploadPhoto(ctx, challengeID, date, contentType, file)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	entry, err := h.entryService.AttachPhoto(ctx, clerkID, challengeID, date, photoURL)
	if err != nil {
		// The object is already in the bucket; an unlinked photo is
		// harmless and gets overwritten by the next attempt.
		respondWithAppError(w, err)
		return
	}

	log.Printf("UploadPhoto Handler: %s attached photo for challenge %s on %s", clerkID, challengeID, date)
	respondWithJSON(w, http.StatusOK, entry)
}
