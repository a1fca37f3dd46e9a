// Package rules implements the deterministic rule-based classification
// strategy. It has no external dependencies and is always available, which
// makes it the fallback when the model strategy is missing or failing.
package rules

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/mikey/mailflow-monitor/internal/core"
)

var (
	linkPattern        = regexp.MustCompile(`https?://\S+`)
	exclamationPattern = regexp.MustCompile(`!{2,}`)
)

// Config holds the rule set and weights. Scoring is fully determined by
// this configuration and the message text.
type Config struct {
	TriggerWords            []string
	TriggerWordWeight       float64
	LinkWeightSingle        float64
	LinkWeightMany          float64
	ExclamationWeight       float64
	UppercaseRatioThreshold float64
	UppercaseWeight         float64
	SuspiciousTLDs          []string
	SuspiciousSenderWeight  float64
	SpamThreshold           float64
}

// DefaultConfig returns the built-in rule set
func DefaultConfig() Config {
	return Config{
		TriggerWords: []string{
			"free", "buy now", "limited time", "winner", "congratulat",
			"claim prize", "click here", "urgent", "act now", "cheap",
			"viagra", "lottery",
		},
		TriggerWordWeight:       0.25,
		LinkWeightSingle:        0.08,
		LinkWeightMany:          0.2,
		ExclamationWeight:       0.15,
		UppercaseRatioThreshold: 0.6,
		UppercaseWeight:         0.2,
		SuspiciousTLDs:          []string{".xyz", ".top", ".click", ".loan"},
		SuspiciousSenderWeight:  0.2,
		SpamThreshold:           0.5,
	}
}

// Engine scores messages against a fixed heuristic rule set
type Engine struct {
	cfg          Config
	triggerWords []string
}

// NewEngine creates an engine from the given configuration, falling back
// to defaults for anything left unset
func NewEngine(cfg Config) *Engine {
	defaults := DefaultConfig()
	if len(cfg.TriggerWords) == 0 {
		cfg.TriggerWords = defaults.TriggerWords
	}
	if cfg.TriggerWordWeight == 0 {
		cfg.TriggerWordWeight = defaults.TriggerWordWeight
	}
	if cfg.LinkWeightSingle == 0 {
		cfg.LinkWeightSingle = defaults.LinkWeightSingle
	}
	if cfg.LinkWeightMany == 0 {
		cfg.LinkWeightMany = defaults.LinkWeightMany
	}
	if cfg.ExclamationWeight == 0 {
		cfg.ExclamationWeight = defaults.ExclamationWeight
	}
	if cfg.UppercaseRatioThreshold == 0 {
		cfg.UppercaseRatioThreshold = defaults.UppercaseRatioThreshold
	}
	if cfg.UppercaseWeight == 0 {
		cfg.UppercaseWeight = defaults.UppercaseWeight
	}
	if len(cfg.SuspiciousTLDs) == 0 {
		cfg.SuspiciousTLDs = defaults.SuspiciousTLDs
	}
	if cfg.SuspiciousSenderWeight == 0 {
		cfg.SuspiciousSenderWeight = defaults.SuspiciousSenderWeight
	}
	if cfg.SpamThreshold == 0 {
		cfg.SpamThreshold = defaults.SpamThreshold
	}

	normalized := make([]string, len(cfg.TriggerWords))
	for i, word := range cfg.TriggerWords {
		normalized[i] = strings.ToLower(word)
	}

	return &Engine{cfg: cfg, triggerWords: normalized}
}

// Score classifies the event. Each triggered rule contributes its weight;
// the sum is clamped to [0,1] and thresholded into a label.
func (e *Engine) Score(event *core.MessageEvent) *core.ClassificationResult {
	text := event.Subject + " " + event.Body
	lower := strings.ToLower(text)

	score := 0.0
	var triggered []string

	for _, word := range e.triggerWords {
		if strings.Contains(lower, word) {
			score += e.cfg.TriggerWordWeight
			triggered = append(triggered, fmt.Sprintf("trigger word %q", word))
		}
	}

	if exclamationPattern.MatchString(text) {
		score += e.cfg.ExclamationWeight
		triggered = append(triggered, "repeated exclamation marks")
	}

	switch links := len(linkPattern.FindAllString(text, -1)); {
	case links >= 2:
		score += e.cfg.LinkWeightMany
		triggered = append(triggered, fmt.Sprintf("%d links", links))
	case links == 1:
		score += e.cfg.LinkWeightSingle
		triggered = append(triggered, "link")
	}

	if ratio := uppercaseRatio(text); ratio > e.cfg.UppercaseRatioThreshold {
		score += e.cfg.UppercaseWeight
		triggered = append(triggered, fmt.Sprintf("uppercase ratio %.2f", ratio))
	}

	if e.suspiciousSender(event.Sender) {
		score += e.cfg.SuspiciousSenderWeight
		triggered = append(triggered, "suspicious sender domain")
	}

	if score > 1.0 {
		score = 1.0
	}

	label := core.LabelHam
	reason := "no spam heuristics triggered"
	if score >= e.cfg.SpamThreshold {
		label = core.LabelSpam
	}
	if len(triggered) > 0 {
		reason = strings.Join(triggered, "; ")
	}

	return &core.ClassificationResult{
		Label:      label,
		Confidence: score,
		Strategy:   core.StrategyRuleBased,
		Reason:     reason,
	}
}

// uppercaseRatio is the share of letters that are uppercase. Short texts
// are ignored to avoid punishing terse subjects like "RE: FW:".
func uppercaseRatio(text string) float64 {
	letters := 0
	uppers := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	if letters < 20 {
		return 0
	}
	return float64(uppers) / float64(letters)
}

func (e *Engine) suspiciousSender(sender string) bool {
	domain := core.DomainOf(sender)
	if domain == "unknown" {
		return false
	}
	for _, tld := range e.cfg.SuspiciousTLDs {
		if strings.HasSuffix(domain, tld) {
			return true
		}
	}
	return false
}
