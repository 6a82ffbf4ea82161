// Package llm defines the text-completion provider interface and related
// types. Providers are interchangeable behind this interface — OpenAI and
// Gemini today, anything tomorrow.
package llm

import (
	"context"
)

// ResponseFormat values for Options.
const (
	FormatText = ""
	FormatJSON = "json"
)

// Options tune a single completion call.
type Options struct {
	MaxTokens      int
	Temperature    float64
	ResponseFormat string // FormatText or FormatJSON
}

// Provider is the core abstraction for text-completion backends.
type Provider interface {
	// Complete sends the user content with an instruction context and waits
	// for the full response text.
	Complete(ctx context.Context, userContent, instructions string, opts Options) (string, error)

	// Name returns the provider identifier used in logs and errors.
	Name() string
}
