// Package ai resolves a logical role to a concrete provider configuration
// and exposes one completion interface over three wire protocols.
package ai

import (
	"context"

	"lead-pipeline/internal/models"
)

// CompletionOptions are honored by every adapter.
type CompletionOptions struct {
	System          string
	Prompt          string
	MaxOutputTokens int
	JSON            bool
	Temperature     *float64

	// Attribution, when set, bills token usage to a workspace.
	Attribution models.Attribution
}

type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// CompletionResult is the provider-agnostic answer. Text is trimmed.
type CompletionResult struct {
	Text  string `json:"text"`
	Usage *Usage `json:"usage,omitempty"`
}

// Adapter translates CompletionOptions into one provider's wire protocol.
type Adapter interface {
	Provider() models.ProviderKind
	Model() string
	Complete(ctx context.Context, opts CompletionOptions) (*CompletionResult, error)
}

const defaultMaxOutputTokens = 2048

func maxTokens(opts CompletionOptions) int {
	if opts.MaxOutputTokens > 0 {
		return opts.MaxOutputTokens
	}
	return defaultMaxOutputTokens
}
