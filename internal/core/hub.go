package core

import (
	"sync"

	"go.uber.org/zap"
)

// SubscriberState is the liveness state of an observer handle
type SubscriberState int32

const (
	SubscriberActive SubscriberState = iota
	SubscriberDraining
	SubscriberClosed
)

// Subscriber is an observer handle: an identity, a bounded delivery queue
// and liveness state. The hub owns the subscriber; consumers only read
// from Snapshots and signal departure through Unsubscribe.
type Subscriber struct {
	id    uint64
	queue chan *StatsSnapshot

	mu    sync.Mutex
	state SubscriberState
	drops int
}

// ID returns the subscriber's opaque identity
func (s *Subscriber) ID() uint64 {
	return s.id
}

// Snapshots returns the delivery channel. It is closed when the subscriber
// is evicted or unsubscribed; a delivery loop drains remaining snapshots
// and exits.
func (s *Subscriber) Snapshots() <-chan *StatsSnapshot {
	return s.queue
}

// State reports the subscriber's liveness state
func (s *Subscriber) State() SubscriberState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BroadcastHub owns the set of active observers and fans snapshots out to
// them. Publish only ever enqueues: a slow subscriber loses old snapshots
// (latest-state-wins) and is evicted after too many consecutive drops, so
// no observer can stall ingestion or delivery to the others.
type BroadcastHub struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscriber
	nextID uint64
	closed bool

	queueSize int
	maxDrops  int
	logger    *zap.Logger
}

// NewBroadcastHub creates a hub with the given per-subscriber queue
// capacity and consecutive-drop eviction threshold
func NewBroadcastHub(queueSize int, maxDrops int, logger *zap.Logger) *BroadcastHub {
	if queueSize <= 0 {
		queueSize = 8
	}
	if maxDrops <= 0 {
		maxDrops = 5
	}
	return &BroadcastHub{
		subs:      make(map[uint64]*Subscriber),
		queueSize: queueSize,
		maxDrops:  maxDrops,
		logger:    logger,
	}
}

// Subscribe registers a new observer and returns its handle
func (h *BroadcastHub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscriber{
		id:    h.nextID,
		queue: make(chan *StatsSnapshot, h.queueSize),
		state: SubscriberActive,
	}
	if h.closed {
		sub.state = SubscriberClosed
		close(sub.queue)
		return sub
	}
	h.subs[sub.id] = sub
	h.logger.Info("Subscriber connected",
		zap.Uint64("subscriber_id", sub.id),
		zap.Int("active", len(h.subs)))
	return sub
}

// Unsubscribe removes an observer. Safe to call more than once and for
// subscribers the hub already evicted.
func (h *BroadcastHub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	h.closeSubscriber(sub)
	h.logger.Info("Subscriber disconnected",
		zap.Uint64("subscriber_id", sub.id),
		zap.Int("active", len(h.subs)))
}

// Publish enqueues the snapshot for every active subscriber. A full queue
// drops its oldest snapshot to make room; a subscriber that keeps dropping
// is transitioned to draining and evicted.
func (h *BroadcastHub) Publish(snap *StatsSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for id, sub := range h.subs {
		dropped := false
		select {
		case sub.queue <- snap:
		default:
			// Queue full: stats are a current-value view, so the oldest
			// entry is the one to lose.
			select {
			case <-sub.queue:
			default:
			}
			select {
			case sub.queue <- snap:
			default:
			}
			dropped = true
		}

		sub.mu.Lock()
		if dropped {
			sub.drops++
		} else {
			sub.drops = 0
		}
		evict := sub.drops >= h.maxDrops
		if evict {
			sub.state = SubscriberDraining
		}
		sub.mu.Unlock()

		if evict {
			delete(h.subs, id)
			h.closeSubscriber(sub)
			h.logger.Warn("Evicted unresponsive subscriber",
				zap.Uint64("subscriber_id", sub.id),
				zap.Int("consecutive_drops", h.maxDrops))
		}
	}
}

// ActiveCount returns the number of subscribers currently receiving publishes
func (h *BroadcastHub) ActiveCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close evicts every subscriber and rejects future publishes
func (h *BroadcastHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		h.closeSubscriber(sub)
	}
}

// closeSubscriber finalizes a handle that is no longer in the active set.
// Caller holds h.mu; the subscriber is out of the map, so no further
// Publish can race with the close.
func (h *BroadcastHub) closeSubscriber(sub *Subscriber) {
	sub.mu.Lock()
	if sub.state != SubscriberClosed {
		sub.state = SubscriberClosed
		close(sub.queue)
	}
	sub.mu.Unlock()
}
