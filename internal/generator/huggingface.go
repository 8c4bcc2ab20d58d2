package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"cryptodaily/internal/robusthttp"

	"github.com/tidwall/gjson"
)

const (
	DefaultHuggingFaceModel   = "mistralai/Mistral-7B-Instruct-v0.3"
	DefaultHuggingFaceBaseURL = "https://api-inference.huggingface.co/models"

	huggingFaceMaxNewTokens = 160
	huggingFaceTemperature  = 0.7
)

// HuggingFaceGenerator calls the Hugging Face text generation inference API.
type HuggingFaceGenerator struct {
	client  *robusthttp.Client
	baseURL string
	modelID string
	token   string
}

func NewHuggingFaceGenerator(
	client *robusthttp.Client,
	baseURL string,
	modelID string,
	token string,
) (*HuggingFaceGenerator, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("API token is empty")
	}

	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultHuggingFaceModel
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultHuggingFaceBaseURL
	}

	return &HuggingFaceGenerator{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		modelID: modelID,
		token:   token,
	}, nil
}

func (g *HuggingFaceGenerator) Name() string {
	return "huggingface"
}

func (g *HuggingFaceGenerator) Generate(ctx context.Context, input Input) (string, error) {
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return "", errors.New("prompt is empty")
	}
	if instructions := strings.TrimSpace(input.Instructions); instructions != "" {
		prompt = instructions + "\n\n" + prompt
	}

	endpoint, err := url.JoinPath(g.baseURL, g.modelID)
	if err != nil {
		return "", fmt.Errorf("build endpoint: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+g.token)

	body, err := g.client.PostJSON(ctx, endpoint, header, map[string]any{
		"inputs": prompt,
		"parameters": map[string]any{
			"max_new_tokens":   huggingFaceMaxNewTokens,
			"temperature":      huggingFaceTemperature,
			"return_full_text": false,
		},
	})
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}

	text, ok := ExtractGeneratedText(string(body))
	if !ok {
		return "", errors.New("response has no generated text")
	}

	return text, nil
}

// ExtractGeneratedText pulls the model output out of an inference response.
// It accepts plain text, a JSON string, an object with "generated_text", and
// a list of such objects.
func ExtractGeneratedText(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	if !gjson.Valid(trimmed) {
		return trimmed, true
	}

	doc := gjson.Parse(trimmed)

	switch {
	case doc.IsArray():
		for _, item := range doc.Array() {
			if text := strings.TrimSpace(item.Get("generated_text").String()); text != "" {
				return text, true
			}
		}
		return "", false
	case doc.IsObject():
		text := strings.TrimSpace(doc.Get("generated_text").String())
		return text, text != ""
	case doc.Type == gjson.String:
		text := strings.TrimSpace(doc.String())
		return text, text != ""
	default:
		return trimmed, true
	}
}
