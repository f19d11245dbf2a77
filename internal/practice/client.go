// Package practice is the client core: the API client, the submission and
// feedback state machine, the voice capture pipeline, and playback. The
// rendering layer sits above it and the device audio layer below it; both
// are injected as interfaces.
package practice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Retry policy for the submit call. Polling and speech calls are never
// retried here; polling has its own timeout and speech failures surface
// directly for manual retry.
const (
	retryExtraAttempts = 2
	retryBaseDelay     = time.Second
	retryMaxDelay      = 10 * time.Second
)

// ErrorKind buckets a failed call for user-facing copy selection.
type ErrorKind string

const (
	ErrorNetwork    ErrorKind = "network"
	ErrorValidation ErrorKind = "validation"
	ErrorServer     ErrorKind = "server"
	ErrorUnknown    ErrorKind = "unknown"
)

// APIError is a non-2xx response with the server's error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// ClassifyError maps a failed call into an ErrorKind. Rate limiting (429)
// counts as a server-side condition, not a validation problem.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorUnknown
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusTooManyRequests:
			return ErrorServer
		case apiErr.Status >= 400 && apiErr.Status < 500:
			return ErrorValidation
		case apiErr.Status >= 500:
			return ErrorServer
		default:
			return ErrorUnknown
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorNetwork
	}
	// Transport-level failures arrive as url.Error wrappers.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrorNetwork
	}
	return ErrorUnknown
}

// Feedback is the evaluation payload the server returns on submit.
type Feedback struct {
	MinimalFix      string  `json:"minimalFix"`
	MicroReason     string  `json:"microReason"`
	BestDescription string  `json:"bestDescription"`
	Encouragement   string  `json:"encouragement"`
	ImageURL        *string `json:"imageUrl"`
	AttemptID       string  `json:"attemptId"`
}

// AttemptStatus is the poll endpoint's reduced view of an attempt.
type AttemptStatus struct {
	ImageURL *string `json:"imageUrl"`
	Status   string  `json:"status"`
}

// Transcription is a completed audio-to-text result.
type Transcription struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Client talks to the lingoscene server. The zero value is not usable; use
// NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryBase  time.Duration
}

// NewClient creates a Client for the given server base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryBase:  retryBaseDelay,
	}
}

// Submit sends a description for evaluation. The call is retried up to two
// extra times with doubling delay on transport and 5xx failures; 4xx
// responses are returned immediately.
func (c *Client) Submit(ctx context.Context, sceneID, text, installID string) (Feedback, error) {
	var fb Feedback
	err := c.withRetry(ctx, func() error {
		return c.postJSON(ctx, "/submit", map[string]string{
			"sceneId":   sceneID,
			"text":      text,
			"installId": installID,
		}, &fb)
	})
	return fb, err
}

// AttemptStatus polls one attempt. Never retried; the caller's poll loop
// already repeats.
func (c *Client) AttemptStatus(ctx context.Context, attemptID string) (AttemptStatus, error) {
	var status AttemptStatus
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/attempts/"+attemptID, nil)
	if err != nil {
		return status, err
	}
	err = c.do(req, &status)
	return status, err
}

// Transcribe converts base64 audio into text.
func (c *Client) Transcribe(ctx context.Context, audioBase64, mimeType string) (Transcription, error) {
	var tr Transcription
	err := c.postJSON(ctx, "/transcribe", map[string]string{
		"audio":    audioBase64,
		"mimeType": mimeType,
	}, &tr)
	return tr, err
}

// Synthesize converts text into a playable audio data URL.
func (c *Client) Synthesize(ctx context.Context, text, voice string, speed float64) (string, error) {
	var resp struct {
		AudioURL string `json:"audioUrl"`
	}
	body := map[string]any{"text": text}
	if voice != "" {
		body["voice"] = voice
	}
	if speed > 0 {
		body["speed"] = speed
	}
	if err := c.postJSON(ctx, "/tts", body, &resp); err != nil {
		return "", err
	}
	return resp.AudioURL, nil
}

func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	delay := c.retryBase
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return err
		}
		if attempt >= retryExtraAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(data, &errBody) != nil || errBody.Error == "" {
			errBody.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
