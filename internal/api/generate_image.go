package api

import (
	"encoding/json"
	"net/http"

	"github.com/ekazakov/lingoscene/internal/imagegen"
)

type GenerateImageRequest struct {
	AttemptID string `json:"attemptId"`
	Text      string `json:"text"`
}

type GenerateImageResponse struct {
	Success   bool   `json:"success"`
	ImageURL  string `json:"imageUrl"`
	AttemptID string `json:"attemptId"`
	Latency   int64  `json:"latency"`
}

// handleGenerateImage runs generation synchronously for one attempt. It is an
// internal escape hatch behind bearer auth, mainly for re-running an attempt
// whose queued job already burned its single try.
func handleGenerateImage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req GenerateImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.AttemptID == "" || req.Text == "" {
			httpError(w, http.StatusBadRequest, "attemptId and text are required")
			return
		}

		imageURL, latency, err := imagegen.ProcessAttempt(r.Context(), deps.Store, deps.Generator, req.AttemptID, req.Text, nil)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "Image generation failed")
			return
		}

		writeJSON(w, http.StatusOK, GenerateImageResponse{
			Success:   true,
			ImageURL:  imageURL,
			AttemptID: req.AttemptID,
			Latency:   latency.Milliseconds(),
		})
	}
}
