package core

import (
	"context"
)

// ModelClient defines the interface for the learned-model classification strategy
type ModelClient interface {
	// ClassifyMessage classifies a message, returning a result with the
	// model strategy tag. Errors degrade the caller to the rule-based
	// fallback for that call only.
	ClassifyMessage(ctx context.Context, event *MessageEvent) (*ClassificationResult, error)
}

// RuleEngine defines the interface for the deterministic rule-based fallback
type RuleEngine interface {
	// Score classifies a message from fixed heuristics. It never fails and
	// is reproducible for identical input.
	Score(event *MessageEvent) *ClassificationResult
}

// VerdictCache defines the interface for caching per-sender verdicts
type VerdictCache interface {
	// Get retrieves a cached verdict for a sender
	Get(ctx context.Context, sender string) (*CachedVerdict, error)

	// Set stores a verdict
	Set(ctx context.Context, verdict *CachedVerdict) error

	// Delete removes a cached verdict
	Delete(ctx context.Context, sender string) error

	// Cleanup removes expired verdicts
	Cleanup(ctx context.Context) error
}
