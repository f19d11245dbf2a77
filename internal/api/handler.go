// Package api implements the HTTP surface: submission orchestration, attempt
// polling, speech endpoints, and the internal image-generation trigger.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ekazakov/lingoscene/internal/evaluate"
	"github.com/ekazakov/lingoscene/internal/imagegen"
	"github.com/ekazakov/lingoscene/internal/ratelimit"
	"github.com/ekazakov/lingoscene/internal/speech"
	"github.com/ekazakov/lingoscene/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Audio payloads are larger: 25 MiB of audio base64-encoded, plus JSON framing.
const maxTranscribeBodySize = 36 << 20

// Deps holds the injected collaborators for the HTTP handlers. The rate
// limiter is passed in explicitly rather than held as package state.
type Deps struct {
	Store       *storage.Store
	Evaluator   evaluate.Evaluator
	Generator   imagegen.Generator
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
	Limiter     *ratelimit.Limiter
	Token       string // bearer token guarding the internal generate-image route
}

// NewHandler builds the public router. Every response (including errors)
// carries the permissive CORS header; OPTIONS preflights are answered before
// routing.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/submit", handleSubmit(deps))
	r.Get("/attempts/{id}", handleAttemptStatus(deps))
	r.Post("/transcribe", handleTranscribe(deps))
	r.Post("/tts", handleTTS(deps))

	// Server-to-server only; never called by the app client.
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/generate-image", handleGenerateImage(deps))
	})

	return CORS(r)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{"error": fmt.Sprintf(format, args...)})
}
