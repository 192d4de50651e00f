package ai

import "context"

// SummaryConfig holds configuration for summary generation
type SummaryConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// SummaryProvider defines the interface for turning an analysis report into
// a short natural-language summary. Implementations must be safe for
// concurrent use.
type SummaryProvider interface {
	Summarize(ctx context.Context, prompt string, config SummaryConfig) (string, error)
}
