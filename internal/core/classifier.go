package core

import (
	"context"
	"time"

	"github.com/mikey/mailflow-monitor/internal/whitelist"
	"go.uber.org/zap"
)

// Classifier turns message text into a label and confidence. It is
// polymorphic over a learned-model primary strategy and a deterministic
// rule-based fallback: any failure of the primary degrades to the fallback
// for that call only, so a transient inference error never disables the
// model for subsequent messages.
type Classifier struct {
	primary   ModelClient // nil when the model strategy is unavailable
	fallback  RuleEngine
	whitelist *whitelist.Checker
	cache     VerdictCache
	logger    *zap.Logger

	cacheEnabled bool
	cacheTTL     time.Duration
	inference    chan struct{} // bounds concurrent model calls
	timeout      time.Duration
}

// NewClassifier creates a classifier. primary may be nil, in which case
// every call uses the fallback strategy.
func NewClassifier(
	primary ModelClient,
	fallback RuleEngine,
	wl *whitelist.Checker,
	cache VerdictCache,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
	maxConcurrentInference int,
	inferenceTimeout time.Duration,
) *Classifier {
	if maxConcurrentInference <= 0 {
		maxConcurrentInference = 4
	}
	if inferenceTimeout <= 0 {
		inferenceTimeout = 10 * time.Second
	}
	return &Classifier{
		primary:      primary,
		fallback:     fallback,
		whitelist:    wl,
		cache:        cache,
		logger:       logger,
		cacheEnabled: cacheEnabled && cache != nil,
		cacheTTL:     cacheTTL,
		inference:    make(chan struct{}, maxConcurrentInference),
		timeout:      inferenceTimeout,
	}
}

// Classify produces a result for the event. It never fails and never
// blocks indefinitely: the model path is bounded by the inference pool
// and a per-call timeout, and every failure lands on the fallback.
func (c *Classifier) Classify(ctx context.Context, event *MessageEvent) *ClassificationResult {
	if c.whitelist != nil && c.whitelist.IsWhitelisted(event.Sender) {
		c.logger.Debug("Skipping classification for whitelisted sender",
			zap.String("sender", event.Sender))
		return &ClassificationResult{
			Label:      LabelHam,
			Confidence: 1.0,
			Strategy:   StrategyRuleBased,
			Reason:     "sender domain is whitelisted",
		}
	}

	if c.cacheEnabled {
		if verdict, err := c.cache.Get(ctx, event.Sender); err == nil {
			c.logger.Debug("Verdict cache hit", zap.String("sender", event.Sender))
			return &ClassificationResult{
				Label:      verdict.Label,
				Confidence: verdict.Confidence,
				Strategy:   verdict.Strategy,
				Reason:     "cached verdict for sender",
			}
		}
	}

	if c.primary != nil {
		if result, err := c.classifyWithModel(ctx, event); err == nil {
			if c.cacheEnabled {
				c.storeVerdict(ctx, event.Sender, result)
			}
			return result
		} else {
			c.logger.Warn("Model strategy failed, falling back to rules",
				zap.Error(err),
				zap.String("sender", event.Sender))
		}
	}

	return c.fallback.Score(event)
}

// classifyWithModel runs the primary strategy on the bounded inference pool
func (c *Classifier) classifyWithModel(ctx context.Context, event *MessageEvent) (*ClassificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case c.inference <- struct{}{}:
		defer func() { <-c.inference }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	result, err := c.primary.ClassifyMessage(ctx, event)
	if err != nil {
		return nil, err
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	} else if result.Confidence > 1 {
		result.Confidence = 1
	}
	result.Strategy = StrategyModel
	return result, nil
}

func (c *Classifier) storeVerdict(ctx context.Context, sender string, result *ClassificationResult) {
	now := time.Now()
	verdict := &CachedVerdict{
		Sender:     sender,
		Label:      result.Label,
		Confidence: result.Confidence,
		Strategy:   result.Strategy,
		LastSeen:   now,
		ExpiresAt:  now.Add(c.cacheTTL),
	}
	if err := c.cache.Set(ctx, verdict); err != nil {
		c.logger.Error("Failed to update verdict cache", zap.Error(err))
	}
}
