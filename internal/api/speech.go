package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ekazakov/lingoscene/internal/speech"
)

type TranscribeRequest struct {
	Audio    string `json:"audio"`
	MimeType string `json:"mimeType"`
}

func handleTranscribe(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxTranscribeBodySize)
		defer r.Body.Close()

		var req TranscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.Audio == "" {
			httpError(w, http.StatusBadRequest, "audio data is required")
			return
		}
		if req.MimeType == "" {
			req.MimeType = "audio/m4a"
		}

		result, err := deps.Transcriber.Transcribe(r.Context(), req.Audio, req.MimeType)
		if err != nil {
			var terr *speech.TranscriptionError
			if errors.As(err, &terr) && terr.Invalid {
				httpError(w, http.StatusBadRequest, "%s", terr.Reason)
				return
			}
			slog.Error("transcription failed", "error", err)
			httpError(w, http.StatusInternalServerError, "Transcription failed")
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

type TTSRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

func handleTTS(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req TTSRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.Text == "" {
			httpError(w, http.StatusBadRequest, "text is required and must be a string")
			return
		}

		result, err := deps.Synthesizer.Synthesize(r.Context(), req.Text, req.Voice, req.Speed)
		if err != nil {
			var serr *speech.SynthesisError
			if errors.As(err, &serr) && serr.Invalid {
				httpError(w, http.StatusBadRequest, "%s", serr.Reason)
				return
			}
			slog.Error("speech synthesis failed", "error", err)
			httpError(w, http.StatusInternalServerError, "TTS generation failed")
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}
