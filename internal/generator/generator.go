package generator

import (
	"context"
)

// Input describes a single text generation request.
type Input struct {
	// Instructions frame the model's role and output rules.
	Instructions string
	// Prompt carries the request-specific context.
	Prompt string
}

// Generator produces free text for a prompt.
type Generator interface {
	// Name identifies the backend in stored payloads.
	Name() string
	Generate(ctx context.Context, input Input) (string, error)
}
