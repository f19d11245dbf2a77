package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	MaxSpeechChars   = 4096
	SynthesisTimeout = 30 * time.Second
	defaultVoice     = "nova"
)

var speechVoices = map[string]oai.AudioSpeechNewParamsVoice{
	"alloy":   oai.AudioSpeechNewParamsVoiceAlloy,
	"echo":    oai.AudioSpeechNewParamsVoiceEcho,
	"fable":   oai.AudioSpeechNewParamsVoice("fable"),
	"onyx":    oai.AudioSpeechNewParamsVoice("onyx"),
	"nova":    oai.AudioSpeechNewParamsVoice("nova"),
	"shimmer": oai.AudioSpeechNewParamsVoiceShimmer,
}

var strikethrough = regexp.MustCompile(`~~(.+?)~~`)

// Synthesis is the result of one text-to-speech call. AudioURL is a
// self-contained data URL, not a remote link.
type Synthesis struct {
	AudioURL string  `json:"audioUrl"`
	Duration float64 `json:"duration,omitempty"`
}

// Synthesizer converts feedback text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) (Synthesis, error)
}

// OpenAISynthesizer implements Synthesizer with the OpenAI speech API.
type OpenAISynthesizer struct {
	client oai.Client
	model  string
}

// NewOpenAISynthesizer constructs a synthesizer. baseURL overrides the API
// endpoint when non-empty (used by tests).
func NewOpenAISynthesizer(apiKey, model, baseURL string) (*OpenAISynthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("speech: apiKey must not be empty")
	}
	if model == "" {
		model = string(oai.SpeechModelTTS1)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &OpenAISynthesizer{client: oai.NewClient(reqOpts...), model: model}, nil
}

// SanitizeText strips the markdown emphasis markers the feedback fields
// carry (bold markers dropped, strikethrough markers dropped but their inner
// text kept) so they are not read aloud.
func SanitizeText(text string) string {
	clean := strings.ReplaceAll(text, "**", "")
	clean = strikethrough.ReplaceAllString(clean, "$1")
	clean = strings.ReplaceAll(clean, "*", "")
	return strings.TrimSpace(clean)
}

// Synthesize implements Synthesizer. Sanitization and length checks happen
// before any network traffic; the upstream call is bounded by
// [SynthesisTimeout].
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) (Synthesis, error) {
	clean := SanitizeText(text)
	if clean == "" {
		return Synthesis{}, &SynthesisError{Reason: "text cannot be empty", Invalid: true}
	}
	// Character limit, not bytes: feedback text is often Chinese.
	if utf8.RuneCountInString(clean) > MaxSpeechChars {
		return Synthesis{}, &SynthesisError{
			Reason:  fmt.Sprintf("text too long. Maximum %d characters allowed", MaxSpeechChars),
			Invalid: true,
		}
	}

	voiceParam, ok := speechVoices[voice]
	if !ok {
		voiceParam = speechVoices[defaultVoice]
	}
	if speed <= 0 {
		speed = 1.0
	}

	ctx, cancel := context.WithTimeout(ctx, SynthesisTimeout)
	defer cancel()

	resp, err := s.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(s.model),
		Input:          clean,
		Voice:          voiceParam,
		Speed:          oai.Float(speed),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return Synthesis{}, &SynthesisError{Reason: "TTS generation failed", Err: err}
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return Synthesis{}, &SynthesisError{Reason: "reading TTS response", Err: err}
	}

	return Synthesis{
		AudioURL: "data:audio/mp3;base64," + base64.StdEncoding.EncodeToString(audio),
	}, nil
}
