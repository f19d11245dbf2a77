package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ekazakov/lingoscene/internal/evaluate"
	"github.com/ekazakov/lingoscene/internal/ratelimit"
	"github.com/ekazakov/lingoscene/internal/speech"
	"github.com/ekazakov/lingoscene/internal/storage"
)

// --- mocks ---

type mockEvaluator struct {
	evaluateFn func(ctx context.Context, sceneID, text string) (evaluate.Result, error)
}

func (m *mockEvaluator) Evaluate(ctx context.Context, sceneID, text string) (evaluate.Result, error) {
	if m.evaluateFn != nil {
		return m.evaluateFn(ctx, sceneID, text)
	}
	return evaluate.Result{
		MinimalFix:      "A **young** woman walks in the park.",
		MicroReason:     "Use present simple here. 这里用一般现在时。",
		BestDescription: "A young woman strolls through the park holding a red umbrella.",
		Encouragement:   "Nice word choice with 'park'!",
	}, nil
}

type mockImageGenerator struct {
	generateFn func(ctx context.Context, text string) (string, error)
}

func (m *mockImageGenerator) Generate(ctx context.Context, text string) (string, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, text)
	}
	return "https://images.example/generated.png", nil
}

type mockTranscriber struct {
	transcribeFn func(ctx context.Context, audioBase64, mimeType string) (speech.Transcription, error)
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audioBase64, mimeType string) (speech.Transcription, error) {
	if m.transcribeFn != nil {
		return m.transcribeFn(ctx, audioBase64, mimeType)
	}
	return speech.Transcription{Text: "a woman with an umbrella", Language: "en"}, nil
}

type mockSynthesizer struct {
	synthesizeFn func(ctx context.Context, text, voice string, speed float64) (speech.Synthesis, error)
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) (speech.Synthesis, error) {
	if m.synthesizeFn != nil {
		return m.synthesizeFn(ctx, text, voice, speed)
	}
	return speech.Synthesis{AudioURL: "data:audio/mp3;base64,AAAA"}, nil
}

// --- helpers ---

const testToken = "test-token"

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return Deps{
		Store:       store,
		Evaluator:   &mockEvaluator{},
		Generator:   &mockImageGenerator{},
		Transcriber: &mockTranscriber{},
		Synthesizer: &mockSynthesizer{},
		Limiter:     ratelimit.New(6, time.Minute),
		Token:       testToken,
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rec, &body)
	return body["error"]
}

func submitBody(text string) map[string]string {
	return map[string]string{
		"sceneId":   "scene_001",
		"text":      text,
		"installId": "install-1234",
	}
}

// --- tests ---

func TestHealth(t *testing.T) {
	handler := NewHandler(newTestDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard CORS header, got %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	handler := NewHandler(newTestDeps(t))

	req := httptest.NewRequest(http.MethodOptions, "/submit", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Fatalf("expected POST in allowed methods, got %q", got)
	}
}

func TestSubmit_TooFewWords(t *testing.T) {
	deps := newTestDeps(t)
	handler := NewHandler(deps)

	rec := postJSON(t, handler, "/submit", submitBody("two words"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Description must have at least 3 words" {
		t.Fatalf("unexpected error message: %q", msg)
	}

	// Validation failures must not create attempt rows.
	job, err := deps.Store.ClaimNextJob([]string{storage.JobTypeGenerateImage})
	if err != nil {
		t.Fatalf("claiming job: %v", err)
	}
	if job != nil {
		t.Fatal("no job should be enqueued for a rejected submission")
	}
}

func TestSubmit_MissingFields(t *testing.T) {
	handler := NewHandler(newTestDeps(t))

	cases := []struct {
		name string
		body map[string]string
		want string
	}{
		{"missing sceneId", map[string]string{"text": "a b c", "installId": "i"}, "sceneId is required and must be a string"},
		{"missing text", map[string]string{"sceneId": "s", "installId": "i"}, "text is required and must be a string"},
		{"missing installId", map[string]string{"sceneId": "s", "text": "a b c"}, "installId is required and must be a string"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, handler, "/submit", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if msg := errorMessage(t, rec); msg != tc.want {
				t.Fatalf("unexpected error message: %q", msg)
			}
		})
	}
}

func TestSubmit_Success(t *testing.T) {
	deps := newTestDeps(t)
	handler := NewHandler(deps)

	rec := postJSON(t, handler, "/submit", submitBody("a woman walks in the park"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SubmitResponse
	decodeBody(t, rec, &resp)
	if resp.AttemptID == "" {
		t.Fatal("expected an attempt id")
	}
	if resp.ImageURL != nil {
		t.Fatalf("imageUrl must be null in the submit response, got %v", *resp.ImageURL)
	}
	if resp.MinimalFix == "" || resp.Encouragement == "" {
		t.Fatal("expected evaluation fields in the response")
	}

	// The attempt row holds the evaluation and stays partial until the image
	// job resolves it.
	attempt, err := deps.Store.GetAttempt(resp.AttemptID)
	if err != nil {
		t.Fatalf("loading attempt: %v", err)
	}
	if attempt.Status != storage.StatusPartial {
		t.Fatalf("expected status partial, got %s", attempt.Status)
	}
	if attempt.MinimalFix != resp.MinimalFix {
		t.Fatalf("persisted minimalFix %q does not match response %q", attempt.MinimalFix, resp.MinimalFix)
	}

	// Exactly one single-shot image job was enqueued.
	job, err := deps.Store.ClaimNextJob([]string{storage.JobTypeGenerateImage})
	if err != nil {
		t.Fatalf("claiming job: %v", err)
	}
	if job == nil {
		t.Fatal("expected an image job to be enqueued")
	}
	if job.MaxAttempts != 1 {
		t.Fatalf("image jobs must be single-attempt, got max_attempts=%d", job.MaxAttempts)
	}
	if !strings.Contains(job.PayloadJSON, resp.AttemptID) {
		t.Fatalf("job payload missing attempt id: %s", job.PayloadJSON)
	}
}

func TestSubmit_EvaluationFailure(t *testing.T) {
	deps := newTestDeps(t)
	deps.Evaluator = &mockEvaluator{
		evaluateFn: func(context.Context, string, string) (evaluate.Result, error) {
			return evaluate.Result{}, errors.New("upstream timeout")
		},
	}
	handler := NewHandler(deps)

	rec := postJSON(t, handler, "/submit", submitBody("a woman walks in the park"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Evaluation failed" {
		t.Fatalf("unexpected error message: %q", msg)
	}

	// No image job on a failed evaluation.
	job, err := deps.Store.ClaimNextJob([]string{storage.JobTypeGenerateImage})
	if err != nil {
		t.Fatalf("claiming job: %v", err)
	}
	if job != nil {
		t.Fatal("no job should be enqueued when evaluation fails")
	}
}

func TestSubmit_RateLimited(t *testing.T) {
	deps := newTestDeps(t)
	handler := NewHandler(deps)

	for i := 0; i < 6; i++ {
		rec := postJSON(t, handler, "/submit", submitBody(fmt.Sprintf("a woman walks number %d", i)))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := postJSON(t, handler, "/submit", submitBody("one more over the limit"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the 7th request, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Rate limit exceeded" {
		t.Fatalf("unexpected error message: %q", msg)
	}
}

func TestAttemptStatus_ShortID(t *testing.T) {
	handler := NewHandler(newTestDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/attempts/short", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Invalid attempt ID" {
		t.Fatalf("unexpected error message: %q", msg)
	}
}

func TestAttemptStatus_NotFound(t *testing.T) {
	handler := NewHandler(newTestDeps(t))

	req := httptest.NewRequest(http.MethodGet, "/attempts/does-not-exist-anywhere", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Attempt not found" {
		t.Fatalf("unexpected error message: %q", msg)
	}
}

func TestAttemptStatus_Lifecycle(t *testing.T) {
	deps := newTestDeps(t)
	handler := NewHandler(deps)

	rec := postJSON(t, handler, "/submit", submitBody("a woman walks in the park"))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit failed: %d", rec.Code)
	}
	var submitted SubmitResponse
	decodeBody(t, rec, &submitted)

	poll := func() AttemptStatusResponse {
		req := httptest.NewRequest(http.MethodGet, "/attempts/"+submitted.AttemptID, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp AttemptStatusResponse
		decodeBody(t, rec, &resp)
		return resp
	}

	if got := poll(); got.Status != storage.StatusPartial || got.ImageURL != nil {
		t.Fatalf("expected partial with null imageUrl before generation, got %+v", got)
	}

	if err := deps.Store.CompleteAttemptImage(submitted.AttemptID, "https://images.example/done.png", time.Second); err != nil {
		t.Fatalf("completing image: %v", err)
	}

	got := poll()
	if got.Status != storage.StatusOK {
		t.Fatalf("expected status ok, got %s", got.Status)
	}
	if got.ImageURL == nil || *got.ImageURL != "https://images.example/done.png" {
		t.Fatalf("unexpected imageUrl: %v", got.ImageURL)
	}
}

func TestGenerateImage_RequiresAuth(t *testing.T) {
	handler := NewHandler(newTestDeps(t))

	rec := postJSON(t, handler, "/generate-image", map[string]string{
		"attemptId": "attempt-1234567890", "text": "a park scene",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", rec.Code)
	}
}

func TestGenerateImage_Success(t *testing.T) {
	deps := newTestDeps(t)
	handler := NewHandler(deps)

	attemptID := "attempt-1234567890"
	if err := deps.Store.InsertAttempt(storage.Attempt{
		ID:        attemptID,
		InstallID: "install-1234",
		SceneID:   "scene_001",
		InputText: "a park scene",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("inserting attempt: %v", err)
	}

	b, _ := json.Marshal(map[string]string{"attemptId": attemptID, "text": "a park scene"})
	req := httptest.NewRequest(http.MethodPost, "/generate-image", bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp GenerateImageResponse
	decodeBody(t, rec, &resp)
	if !resp.Success || resp.ImageURL == "" || resp.AttemptID != attemptID {
		t.Fatalf("unexpected response: %+v", resp)
	}

	imageURL, status, err := deps.Store.AttemptStatus(attemptID)
	if err != nil {
		t.Fatalf("loading attempt status: %v", err)
	}
	if status != storage.StatusOK || imageURL != resp.ImageURL {
		t.Fatalf("attempt not updated: status=%s imageUrl=%s", status, imageURL)
	}
}

func TestGenerateImage_GeneratorFailure(t *testing.T) {
	deps := newTestDeps(t)
	deps.Generator = &mockImageGenerator{
		generateFn: func(context.Context, string) (string, error) {
			return "", errors.New("content policy rejection")
		},
	}
	handler := NewHandler(deps)

	attemptID := "attempt-1234567890"
	if err := deps.Store.InsertAttempt(storage.Attempt{
		ID:        attemptID,
		InstallID: "install-1234",
		SceneID:   "scene_001",
		InputText: "a park scene",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("inserting attempt: %v", err)
	}

	b, _ := json.Marshal(map[string]string{"attemptId": attemptID, "text": "a park scene"})
	req := httptest.NewRequest(http.MethodPost, "/generate-image", bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Image generation failed" {
		t.Fatalf("unexpected error message: %q", msg)
	}

	// The failure is recorded on the attempt as a text-only downgrade.
	_, status, err := deps.Store.AttemptStatus(attemptID)
	if err != nil {
		t.Fatalf("loading attempt status: %v", err)
	}
	if status != storage.StatusTextOnly {
		t.Fatalf("expected text_only, got %s", status)
	}
}

func TestTranscribe_InvalidFormat(t *testing.T) {
	deps := newTestDeps(t)
	deps.Transcriber = &mockTranscriber{
		transcribeFn: func(_ context.Context, audioBase64, mimeType string) (speech.Transcription, error) {
			_, _, err := speech.DecodeAudio(audioBase64, mimeType)
			return speech.Transcription{}, err
		},
	}
	handler := NewHandler(deps)

	rec := postJSON(t, handler, "/transcribe", map[string]string{
		"audio": "AAAA", "mimeType": "audio/ogg",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); !strings.Contains(msg, "invalid audio format") {
		t.Fatalf("unexpected error message: %q", msg)
	}
}

func TestTranscribe_Success(t *testing.T) {
	handler := NewHandler(newTestDeps(t))

	rec := postJSON(t, handler, "/transcribe", map[string]string{
		"audio": "AAAA", "mimeType": "audio/m4a",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp speech.Transcription
	decodeBody(t, rec, &resp)
	if resp.Text != "a woman with an umbrella" {
		t.Fatalf("unexpected transcript: %q", resp.Text)
	}
}

func TestTranscribe_UpstreamFailure(t *testing.T) {
	deps := newTestDeps(t)
	deps.Transcriber = &mockTranscriber{
		transcribeFn: func(context.Context, string, string) (speech.Transcription, error) {
			return speech.Transcription{}, &speech.TranscriptionError{Reason: "transcription failed", Err: errors.New("boom")}
		},
	}
	handler := NewHandler(deps)

	rec := postJSON(t, handler, "/transcribe", map[string]string{
		"audio": "AAAA", "mimeType": "audio/m4a",
	})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Transcription failed" {
		t.Fatalf("unexpected error message: %q", msg)
	}
}

func TestTTS_MissingText(t *testing.T) {
	handler := NewHandler(newTestDeps(t))

	rec := postJSON(t, handler, "/tts", map[string]string{"voice": "nova"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "text is required and must be a string" {
		t.Fatalf("unexpected error message: %q", msg)
	}
}

func TestTTS_Success(t *testing.T) {
	handler := NewHandler(newTestDeps(t))

	rec := postJSON(t, handler, "/tts", map[string]any{
		"text": "Great job on your description!", "voice": "nova", "speed": 1.0,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp speech.Synthesis
	decodeBody(t, rec, &resp)
	if !strings.HasPrefix(resp.AudioURL, "data:audio/mp3;base64,") {
		t.Fatalf("expected data URL, got %q", resp.AudioURL)
	}
}
