package rules

import (
	"testing"
	"time"

	"github.com/mikey/mailflow-monitor/internal/core"
	"github.com/stretchr/testify/assert"
)

func event(sender, subject, body string) *core.MessageEvent {
	return &core.MessageEvent{
		Sender:     sender,
		Recipients: []string{"ops@example.com"},
		Subject:    subject,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
		StatusCode: 250,
	}
}

func TestScoreCleanMessageIsHam(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	result := engine.Score(event("b@good.org", "Lunch tomorrow?", "Does noon still work for you?"))
	assert.Equal(t, core.LabelHam, result.Label)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, core.StrategyRuleBased, result.Strategy)
	assert.Equal(t, "no spam heuristics triggered", result.Reason)
}

func TestScoreTriggerWordsAccumulate(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	// One trigger word alone stays under the threshold.
	single := engine.Score(event("a@evil.com", "winner announcement", "the raffle results are in"))
	assert.Equal(t, core.LabelHam, single.Label)
	assert.InDelta(t, 0.25, single.Confidence, 1e-9)

	// Two trigger words cross it.
	double := engine.Score(event("a@evil.com", "winner", "claim prize today"))
	assert.Equal(t, core.LabelSpam, double.Label)
	assert.InDelta(t, 0.5, double.Confidence, 1e-9)
}

func TestScoreLinkWeights(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	one := engine.Score(event("a@x.test", "hi", "see http://example.test/a"))
	assert.InDelta(t, 0.08, one.Confidence, 1e-9)

	two := engine.Score(event("a@x.test", "hi", "see http://example.test/a and https://example.test/b"))
	assert.InDelta(t, 0.2, two.Confidence, 1e-9)
}

func TestScoreRepeatedExclamations(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	calm := engine.Score(event("a@x.test", "hi", "great news!"))
	assert.Equal(t, 0.0, calm.Confidence)

	shouty := engine.Score(event("a@x.test", "hi", "great news!!!"))
	assert.InDelta(t, 0.15, shouty.Confidence, 1e-9)
}

func TestScoreUppercaseRatio(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	// Short shouting is tolerated.
	short := engine.Score(event("a@x.test", "RE: FW:", "OK"))
	assert.Equal(t, 0.0, short.Confidence)

	long := engine.Score(event("a@x.test", "IMPORTANT NOTICE", "PLEASE RESPOND IMMEDIATELY TO THIS MESSAGE"))
	assert.InDelta(t, 0.2, long.Confidence, 1e-9)
}

func TestScoreSuspiciousSenderDomain(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	result := engine.Score(event("promo@deals.xyz", "hi", "just checking in"))
	assert.InDelta(t, 0.2, result.Confidence, 1e-9)
	assert.Contains(t, result.Reason, "suspicious sender domain")
}

func TestScoreIsClampedToOne(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	result := engine.Score(event(
		"promo@deals.xyz",
		"WINNER WINNER",
		"Congratulations!!! Free lottery prize, claim prize now, click here urgent act now http://a.test http://b.test",
	))
	assert.Equal(t, core.LabelSpam, result.Label)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestScoreIsDeterministic(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	msg := event("a@evil.com", "winner", "claim prize now!!! http://evil.test/win")

	first := engine.Score(msg)
	for i := 0; i < 10; i++ {
		next := engine.Score(msg)
		assert.Equal(t, first.Label, next.Label)
		assert.Equal(t, first.Confidence, next.Confidence)
		assert.Equal(t, first.Reason, next.Reason)
	}
}

func TestNewEngineFillsDefaults(t *testing.T) {
	engine := NewEngine(Config{})

	result := engine.Score(event("a@x.test", "winner", "claim prize today"))
	assert.Equal(t, core.LabelSpam, result.Label)
}

func TestScoreCustomTriggerWords(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TriggerWords = []string{"totally bespoke"}
	engine := NewEngine(cfg)

	hit := engine.Score(event("a@x.test", "hi", "a Totally Bespoke offer"))
	assert.InDelta(t, 0.25, hit.Confidence, 1e-9)

	miss := engine.Score(event("a@x.test", "winner", "claim prize"))
	assert.Equal(t, 0.0, miss.Confidence)
}
