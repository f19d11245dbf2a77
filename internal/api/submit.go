package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ekazakov/lingoscene/internal/imagegen"
	"github.com/ekazakov/lingoscene/internal/storage"
)

// MinWords is the server-side floor on description length. The client
// enforces its own (stricter) enabling threshold for UX; this one is the
// correctness bound.
const MinWords = 3

type SubmitRequest struct {
	SceneID   string `json:"sceneId"`
	Text      string `json:"text"`
	InstallID string `json:"installId"`
}

// SubmitResponse carries the evaluation fields back immediately. ImageURL is
// always null here; the image arrives later via polling.
type SubmitResponse struct {
	MinimalFix      string  `json:"minimalFix"`
	MicroReason     string  `json:"microReason"`
	BestDescription string  `json:"bestDescription"`
	Encouragement   string  `json:"encouragement"`
	ImageURL        *string `json:"imageUrl"`
	AttemptID       string  `json:"attemptId"`
}

// WordCount counts whitespace-separated words in trimmed text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func validateSubmit(req SubmitRequest) string {
	if req.SceneID == "" {
		return "sceneId is required and must be a string"
	}
	if req.Text == "" {
		return "text is required and must be a string"
	}
	if req.InstallID == "" {
		return "installId is required and must be a string"
	}
	if WordCount(req.Text) < MinWords {
		return "Description must have at least 3 words"
	}
	return ""
}

func handleSubmit(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		if msg := validateSubmit(req); msg != "" {
			httpError(w, http.StatusBadRequest, "%s", msg)
			return
		}

		if !deps.Limiter.Allow(req.InstallID) {
			httpError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		attemptID := uuid.New().String()
		if err := deps.Store.InsertAttempt(storage.Attempt{
			ID:        attemptID,
			InstallID: req.InstallID,
			SceneID:   req.SceneID,
			InputText: req.Text,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			httpError(w, http.StatusInternalServerError, "Database error")
			return
		}

		// Evaluation is the only step whose failure is fatal to the attempt.
		evalStart := time.Now()
		result, err := deps.Evaluator.Evaluate(r.Context(), req.SceneID, req.Text)
		if err != nil {
			slog.Error("text evaluation failed", "attempt_id", attemptID, "error", err)
			if markErr := deps.Store.MarkAttemptError(attemptID); markErr != nil {
				slog.Error("failed to mark attempt error", "attempt_id", attemptID, "error", markErr)
			}
			httpError(w, http.StatusInternalServerError, "Evaluation failed")
			return
		}
		evalLatency := time.Since(evalStart)

		if err := deps.Store.SetEvaluation(attemptID, storage.Evaluation{
			MinimalFix:      result.MinimalFix,
			MicroReason:     result.MicroReason,
			BestDescription: result.BestDescription,
			Encouragement:   result.Encouragement,
		}, evalLatency); err != nil {
			slog.Error("failed to persist evaluation", "attempt_id", attemptID, "error", err)
		}

		// Fire-and-forget: a single-attempt queue job. Its outcome is
		// invisible to this response; the client discovers it by polling.
		payload, _ := json.Marshal(imagegen.JobPayload{AttemptID: attemptID, Text: req.Text})
		job := storage.Job{
			ID:          uuid.New().String(),
			Type:        storage.JobTypeGenerateImage,
			PayloadJSON: string(payload),
			MaxAttempts: 1,
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			slog.Warn("failed to enqueue image job", "attempt_id", attemptID, "error", err)
		}

		writeJSON(w, http.StatusOK, SubmitResponse{
			MinimalFix:      result.MinimalFix,
			MicroReason:     result.MicroReason,
			BestDescription: result.BestDescription,
			Encouragement:   result.Encouragement,
			ImageURL:        nil,
			AttemptID:       attemptID,
		})
	}
}
