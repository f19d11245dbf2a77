// Package imagegen produces the illustrative image for an attempt and
// reconciles the result onto the attempt row.
package imagegen

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// styleSuffix is appended to the learner's text to form the image prompt.
// Deterministic; the only model-specific shaping we do.
const styleSuffix = " Highly realistic, photorealistic style, 16:9 aspect ratio, daytime lighting, ultra-clear focus."

// Generator turns a description into a hosted image URL.
type Generator interface {
	Generate(ctx context.Context, text string) (string, error)
}

// OpenAIGenerator implements Generator with the OpenAI images API.
type OpenAIGenerator struct {
	client oai.Client
	model  string
}

// NewOpenAIGenerator constructs a generator. baseURL overrides the API
// endpoint when non-empty (used by tests).
func NewOpenAIGenerator(apiKey, model, baseURL string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("imagegen: apiKey must not be empty")
	}
	if model == "" {
		model = string(oai.ImageModelDallE3)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &OpenAIGenerator{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Prompt returns the full image prompt for a description.
func Prompt(text string) string {
	return text + "." + styleSuffix
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, text string) (string, error) {
	resp, err := g.client.Images.Generate(ctx, oai.ImageGenerateParams{
		Prompt:         Prompt(text),
		Model:          oai.ImageModel(g.model),
		N:              oai.Int(1),
		Size:           oai.ImageGenerateParamsSize1792x1024,
		Quality:        oai.ImageGenerateParamsQualityStandard,
		ResponseFormat: oai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("image request: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("no image URL in response")
	}
	return resp.Data[0].URL, nil
}
