package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ekazakov/lingoscene/internal/storage"
)

// minAttemptIDLength is a cheap malformed-id heuristic; real ids are UUIDs.
const minAttemptIDLength = 10

// AttemptStatusResponse exposes only the fields the poll loop needs.
type AttemptStatusResponse struct {
	ImageURL *string `json:"imageUrl"`
	Status   string  `json:"status"`
}

func handleAttemptStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if len(id) < minAttemptIDLength {
			httpError(w, http.StatusBadRequest, "Invalid attempt ID")
			return
		}

		imageURL, status, err := deps.Store.AttemptStatus(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "Attempt not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		resp := AttemptStatusResponse{Status: status}
		if imageURL != "" {
			resp.ImageURL = &imageURL
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
