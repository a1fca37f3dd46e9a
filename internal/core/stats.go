package core

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// StatsAggregator owns all mutable pipeline counters. It is the single
// point of truth for aggregate statistics; every update goes through
// Record or RecordRejection and is serialized by the aggregator's lock.
type StatsAggregator struct {
	mu sync.Mutex

	total       uint64
	spam        uint64
	ham         uint64
	rejected    uint64
	fallback    uint64
	domains     map[string]uint64
	statusCodes map[int]uint64
	recent      []RecentEntry

	recentSize int
	logger     *zap.Logger
}

// NewStatsAggregator creates a new aggregator with a bounded recent-activity feed
func NewStatsAggregator(recentSize int, logger *zap.Logger) *StatsAggregator {
	if recentSize <= 0 {
		recentSize = 100
	}
	return &StatsAggregator{
		domains:     make(map[string]uint64),
		statusCodes: make(map[int]uint64),
		recent:      make([]RecentEntry, 0, recentSize),
		recentSize:  recentSize,
		logger:      logger,
	}
}

// Record applies the effects of one classified message as a single unit:
// total, spam/ham, sender-domain count, status-code count and the recent
// feed all move together under the lock, so a snapshot can never observe
// a partially applied record.
func (a *StatsAggregator) Record(event *MessageEvent, result *ClassificationResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	switch result.Label {
	case LabelSpam:
		a.spam++
	case LabelHam:
		a.ham++
	default:
		// Unreachable by construction; a hole here would silently break
		// the total == spam + ham invariant.
		panic(fmt.Sprintf("stats: unknown label %q", result.Label))
	}
	if result.Strategy == StrategyRuleBased {
		a.fallback++
	}

	a.domains[event.SenderDomain()]++
	a.statusCodes[event.StatusCode]++

	entry := RecentEntry{
		Sender:     event.Sender,
		Label:      result.Label,
		Confidence: result.Confidence,
		Timestamp:  event.ReceivedAt,
	}
	// Newest first, oldest evicted at capacity
	if len(a.recent) < a.recentSize {
		a.recent = append(a.recent, RecentEntry{})
	}
	copy(a.recent[1:], a.recent)
	a.recent[0] = entry

	if a.total != a.spam+a.ham {
		panic(fmt.Sprintf("stats: invariant violated: total=%d spam=%d ham=%d", a.total, a.spam, a.ham))
	}
}

// RecordRejection counts a message rejected by validation. Rejected
// messages never reach classification and touch no other counter.
func (a *StatsAggregator) RecordRejection() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejected++
	a.logger.Debug("Recorded rejected message", zap.Uint64("rejected", a.rejected))
}

// Snapshot returns a consistent copy reflecting every Record call that
// completed before it was invoked
func (a *StatsAggregator) Snapshot() *StatsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := &StatsSnapshot{
		Total:       a.total,
		Spam:        a.spam,
		Ham:         a.ham,
		Rejected:    a.rejected,
		Fallback:    a.fallback,
		Domains:     make(map[string]uint64, len(a.domains)),
		StatusCodes: make(map[int]uint64, len(a.statusCodes)),
		Recent:      make([]RecentEntry, len(a.recent)),
	}
	for domain, count := range a.domains {
		snap.Domains[domain] = count
	}
	for code, count := range a.statusCodes {
		snap.StatusCodes[code] = count
	}
	copy(snap.Recent, a.recent)

	return snap
}
