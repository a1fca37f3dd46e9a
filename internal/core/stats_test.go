package core

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEvent(sender string, statusCode int) *MessageEvent {
	return &MessageEvent{
		Sender:     sender,
		Recipients: []string{"ops@example.com"},
		Subject:    "hello",
		Body:       "hello there",
		ReceivedAt: time.Now().UTC(),
		StatusCode: statusCode,
	}
}

func spamResult() *ClassificationResult {
	return &ClassificationResult{Label: LabelSpam, Confidence: 0.9, Strategy: StrategyRuleBased}
}

func hamResult() *ClassificationResult {
	return &ClassificationResult{Label: LabelHam, Confidence: 0.1, Strategy: StrategyRuleBased}
}

func TestRecordKeepsInvariants(t *testing.T) {
	agg := NewStatsAggregator(10, zap.NewNop())

	agg.Record(testEvent("a@evil.com", 250), spamResult())
	agg.Record(testEvent("b@good.org", 250), hamResult())
	agg.Record(testEvent("c@good.org", 250), hamResult())

	snap := agg.Snapshot()
	assert.Equal(t, uint64(3), snap.Total)
	assert.Equal(t, uint64(1), snap.Spam)
	assert.Equal(t, uint64(2), snap.Ham)
	assert.Equal(t, snap.Total, snap.Spam+snap.Ham)

	var domainSum, statusSum uint64
	for _, count := range snap.Domains {
		domainSum += count
	}
	for _, count := range snap.StatusCodes {
		statusSum += count
	}
	assert.Equal(t, snap.Total, domainSum)
	assert.Equal(t, snap.Total, statusSum)

	assert.Equal(t, uint64(1), snap.Domains["evil.com"])
	assert.Equal(t, uint64(2), snap.Domains["good.org"])
	assert.Equal(t, uint64(3), snap.StatusCodes[250])
}

func TestConcurrentRecordsLoseNoUpdates(t *testing.T) {
	agg := NewStatsAggregator(100, zap.NewNop())

	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				sender := fmt.Sprintf("user%d@host%d.test", i, g%5)
				if i%2 == 0 {
					agg.Record(testEvent(sender, 250), spamResult())
				} else {
					agg.Record(testEvent(sender, 250), hamResult())
				}
			}
		}(g)
	}
	wg.Wait()

	snap := agg.Snapshot()
	assert.Equal(t, uint64(goroutines*perGoroutine), snap.Total)
	assert.Equal(t, snap.Total, snap.Spam+snap.Ham)

	var domainSum uint64
	for _, count := range snap.Domains {
		domainSum += count
	}
	assert.Equal(t, snap.Total, domainSum)
}

func TestRecordRejectionTouchesNoOtherCounter(t *testing.T) {
	agg := NewStatsAggregator(10, zap.NewNop())

	agg.Record(testEvent("a@evil.com", 250), spamResult())
	agg.RecordRejection()

	snap := agg.Snapshot()
	assert.Equal(t, uint64(1), snap.Total)
	assert.Equal(t, uint64(1), snap.Rejected)
	assert.Equal(t, uint64(1), snap.Spam)
	assert.Equal(t, uint64(0), snap.Ham)
	assert.Len(t, snap.Domains, 1)
}

func TestRecentFeedIsBoundedNewestFirst(t *testing.T) {
	agg := NewStatsAggregator(2, zap.NewNop())

	agg.Record(testEvent("first@x.test", 250), hamResult())
	agg.Record(testEvent("second@x.test", 250), hamResult())
	agg.Record(testEvent("third@x.test", 250), spamResult())

	snap := agg.Snapshot()
	require.Len(t, snap.Recent, 2)
	assert.Equal(t, "third@x.test", snap.Recent[0].Sender)
	assert.Equal(t, LabelSpam, snap.Recent[0].Label)
	assert.Equal(t, "second@x.test", snap.Recent[1].Sender)
}

func TestFallbackCounterTracksRuleBasedResults(t *testing.T) {
	agg := NewStatsAggregator(10, zap.NewNop())

	agg.Record(testEvent("a@x.test", 250), &ClassificationResult{Label: LabelSpam, Confidence: 0.8, Strategy: StrategyModel})
	agg.Record(testEvent("b@x.test", 250), hamResult())

	snap := agg.Snapshot()
	assert.Equal(t, uint64(1), snap.Fallback)
}

func TestSnapshotIsIsolatedFromLaterRecords(t *testing.T) {
	agg := NewStatsAggregator(10, zap.NewNop())

	agg.Record(testEvent("a@x.test", 250), hamResult())
	snap := agg.Snapshot()

	agg.Record(testEvent("b@y.test", 250), spamResult())

	assert.Equal(t, uint64(1), snap.Total)
	assert.Len(t, snap.Domains, 1)

	// Mutating the copy must not leak back
	snap.Domains["y.test"] = 99
	fresh := agg.Snapshot()
	assert.Equal(t, uint64(1), fresh.Domains["y.test"])
}

func TestDomainExtraction(t *testing.T) {
	tests := []struct {
		sender string
		domain string
	}{
		{"user@Example.COM", "example.com"},
		{"user@sub.mail.org", "sub.mail.org"},
		{"no-at-sign", "unknown"},
		{"trailing@", "unknown"},
		{"", "unknown"},
		{"<user@wrapped.net>", "wrapped.net"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.domain, DomainOf(tt.sender), "sender %q", tt.sender)
	}
}
