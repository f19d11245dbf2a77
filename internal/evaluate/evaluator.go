// Package evaluate calls the language model that grades a learner's scene
// description and produces structured feedback.
package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Timeout bounds a single evaluation call. Submissions whose evaluation does
// not complete in time abort into the terminal error state.
const Timeout = 15 * time.Second

const systemPrompt = `You are an English teacher and motivator.
You will be given:
- An image (ground truth).
- A student's English description of the image.

Your task is to give structured feedback that helps the student both improve accuracy and stay motivated.

Always respond in four sections in this exact order:

1. Minimal Fix
Correct the student's sentence with the smallest possible changes to make it:
- Grammatically correct
- Natural (sounds like how a native speaker would say it)
- Accurate (faithfully describes the given image content)
Keep the original structure when possible.
Highlight changes using bold for added/replaced words and strike-through for removed words.
Output only one corrected sentence here.

2. Micro Reason
Explain what's wrong with the original version or why you made this correct.
Use simple English + Chinese together so Chinese students can learn easily from it.

3. Best Description
Produce a completely new sentence that gives the most natural, fluent, and accurate description of the image, as a native English speaker would write it.
Do not limit yourself to the user's original sentence.
The goal is to model the best possible English description, concise and idiomatic.
Output only one sentence.

4. Encouragement
Give a short and friendly message that makes the student feel good about their work.
- Always point out something specific they did well.
- Keep the tone warm and positive, so they feel encouraged to keep learning.
- Only one sentence.

Respond with valid JSON in this exact format:
{
  "minimalFix": "The corrected sentence with **bold** for changes and ~~strikethrough~~ for removals",
  "microReason": "Explanation in simple English + 中文",
  "bestDescription": "A natural, native-speaker description",
  "encouragement": "A warm, positive message"
}`

// Result is the structured feedback for one submission.
type Result struct {
	MinimalFix      string `json:"minimalFix"`
	MicroReason     string `json:"microReason"`
	BestDescription string `json:"bestDescription"`
	Encouragement   string `json:"encouragement"`
}

// Evaluator grades a description against its scene.
type Evaluator interface {
	Evaluate(ctx context.Context, sceneID, text string) (Result, error)
}

// OpenAIEvaluator implements Evaluator against the OpenAI chat API.
type OpenAIEvaluator struct {
	client oai.Client
	model  string
}

// NewOpenAIEvaluator constructs an evaluator. baseURL overrides the API
// endpoint when non-empty (used by tests).
func NewOpenAIEvaluator(apiKey, model, baseURL string) (*OpenAIEvaluator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("evaluate: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("evaluate: model must not be empty")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEvaluator{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Evaluate implements Evaluator. The call is bounded by [Timeout].
func (e *OpenAIEvaluator) Evaluate(ctx context.Context, sceneID, text string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("Scene ID: %s\nUser description: %q\n\nPlease evaluate this description and provide feedback.", sceneID, text)

	completion, err := e.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: oai.ChatModel(e.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(userPrompt),
		},
		Temperature: oai.Float(0.7),
		MaxTokens:   oai.Int(500),
	})
	if err != nil {
		return Result{}, fmt.Errorf("evaluation request: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Result{}, fmt.Errorf("evaluation returned no choices")
	}

	return ParseResult(completion.Choices[0].Message.Content)
}

// ParseResult decodes and validates the model's JSON feedback. Markdown code
// fences around the object are tolerated.
func ParseResult(content string) (Result, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var r Result
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &r); err != nil {
		return Result{}, fmt.Errorf("parsing evaluation result: %w", err)
	}
	if r.MinimalFix == "" || r.MicroReason == "" || r.BestDescription == "" || r.Encouragement == "" {
		return Result{}, fmt.Errorf("evaluation result missing required fields")
	}
	return r, nil
}
