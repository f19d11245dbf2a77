// Package speech wraps the external speech APIs: audio-to-text for voice
// input and text-to-speech for reading feedback aloud.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Limits mirrored from the upstream Whisper API.
const (
	MaxAudioBytes     = 25 << 20 // 25 MiB
	TranscribeTimeout = 30 * time.Second
)

// allowedMimeTypes maps accepted audio MIME types to upload file extensions.
var allowedMimeTypes = map[string]string{
	"audio/mpeg": "mp3",
	"audio/mp3":  "mp3",
	"audio/mp4":  "mp4",
	"audio/m4a":  "m4a",
	"audio/webm": "webm",
	"audio/wav":  "wav",
}

var dataURLPrefix = regexp.MustCompile(`^data:audio/\w+;base64,`)

// Transcription is the result of one audio-to-text call.
type Transcription struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Transcriber converts captured audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioBase64, mimeType string) (Transcription, error)
}

// WhisperTranscriber implements Transcriber with the OpenAI audio API.
type WhisperTranscriber struct {
	client oai.Client
	model  string
}

// NewWhisperTranscriber constructs a transcriber. baseURL overrides the API
// endpoint when non-empty (used by tests).
func NewWhisperTranscriber(apiKey, model, baseURL string) (*WhisperTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("speech: apiKey must not be empty")
	}
	if model == "" {
		model = string(oai.AudioModelWhisper1)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &WhisperTranscriber{client: oai.NewClient(reqOpts...), model: model}, nil
}

// DecodeAudio validates and decodes a base64 payload ahead of the upstream
// call. A data-URL prefix is tolerated and stripped.
func DecodeAudio(audioBase64, mimeType string) ([]byte, string, error) {
	ext, ok := allowedMimeTypes[mimeType]
	if !ok {
		return nil, "", &TranscriptionError{
			Reason:  "invalid audio format. Supported formats: mp3, mp4, m4a, webm, wav",
			Invalid: true,
		}
	}

	raw := dataURLPrefix.ReplaceAllString(audioBase64, "")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", &TranscriptionError{Reason: "invalid audio data format", Invalid: true, Err: err}
	}
	if len(data) == 0 {
		return nil, "", &TranscriptionError{Reason: "audio data is required", Invalid: true}
	}
	if len(data) > MaxAudioBytes {
		return nil, "", &TranscriptionError{
			Reason:  fmt.Sprintf("audio file too large. Maximum size is %dMB", MaxAudioBytes/1024/1024),
			Invalid: true,
		}
	}
	return data, ext, nil
}

// Transcribe implements Transcriber. Validation happens before any network
// traffic; the upstream call is bounded by [TranscribeTimeout].
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioBase64, mimeType string) (Transcription, error) {
	data, ext, err := DecodeAudio(audioBase64, mimeType)
	if err != nil {
		return Transcription{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, TranscribeTimeout)
	defer cancel()

	resp, err := t.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		File:     oai.File(bytes.NewReader(data), "audio."+ext, mimeType),
		Model:    oai.AudioModel(t.model),
		Language: oai.String("en"),
	})
	if err != nil {
		return Transcription{}, &TranscriptionError{Reason: "transcription failed", Err: err}
	}

	// Language is pinned on the request to improve accuracy.
	return Transcription{Text: resp.Text, Language: "en"}, nil
}
