package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func numberedSnapshot(n uint64) *StatsSnapshot {
	return &StatsSnapshot{Total: n}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	hub := NewBroadcastHub(4, 3, zap.NewNop())

	sub := hub.Subscribe()
	assert.Equal(t, SubscriberActive, sub.State())
	assert.Equal(t, 1, hub.ActiveCount())

	hub.Unsubscribe(sub)
	assert.Equal(t, SubscriberClosed, sub.State())
	assert.Equal(t, 0, hub.ActiveCount())

	// Unsubscribing twice is harmless
	hub.Unsubscribe(sub)
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	hub := NewBroadcastHub(4, 3, zap.NewNop())

	first := hub.Subscribe()
	second := hub.Subscribe()

	hub.Publish(numberedSnapshot(1))

	assert.Equal(t, uint64(1), (<-first.Snapshots()).Total)
	assert.Equal(t, uint64(1), (<-second.Snapshots()).Total)
}

func TestSlowSubscriberKeepsLatestAndIsEvicted(t *testing.T) {
	const queueSize = 2
	const maxDrops = 5
	hub := NewBroadcastHub(queueSize, maxDrops, zap.NewNop())

	sub := hub.Subscribe()

	// Burst without draining: queue fills, then drop-oldest kicks in
	// until the eviction threshold is reached.
	const burst = queueSize + maxDrops
	for n := 1; n <= burst; n++ {
		hub.Publish(numberedSnapshot(uint64(n)))
	}

	assert.Equal(t, 0, hub.ActiveCount())
	assert.Equal(t, SubscriberClosed, sub.State())

	// The channel is closed, so draining terminates. Only the newest
	// snapshots survived.
	var received []uint64
	for snap := range sub.Snapshots() {
		received = append(received, snap.Total)
	}
	require.Len(t, received, queueSize)
	assert.Equal(t, uint64(burst), received[len(received)-1])
	assert.Less(t, len(received), burst)
}

func TestDropCounterResetsOnSuccessfulDelivery(t *testing.T) {
	hub := NewBroadcastHub(1, 2, zap.NewNop())

	sub := hub.Subscribe()

	// Fill the queue, then force one drop.
	hub.Publish(numberedSnapshot(1))
	hub.Publish(numberedSnapshot(2))
	assert.Equal(t, 1, hub.ActiveCount())

	// Drain and deliver successfully: the consecutive-drop counter resets.
	<-sub.Snapshots()
	hub.Publish(numberedSnapshot(3))
	assert.Equal(t, 1, hub.ActiveCount())

	// It takes the full threshold of fresh drops to evict now.
	hub.Publish(numberedSnapshot(4))
	assert.Equal(t, 1, hub.ActiveCount())
	hub.Publish(numberedSnapshot(5))
	assert.Equal(t, 0, hub.ActiveCount())
}

func TestEvictedSubscriberDoesNotAffectOthers(t *testing.T) {
	hub := NewBroadcastHub(1, 1, zap.NewNop())

	slow := hub.Subscribe()
	fast := hub.Subscribe()

	hub.Publish(numberedSnapshot(1))
	// fast drains, slow does not
	<-fast.Snapshots()

	hub.Publish(numberedSnapshot(2))
	assert.Equal(t, SubscriberClosed, slow.State())
	assert.Equal(t, 1, hub.ActiveCount())

	assert.Equal(t, uint64(2), (<-fast.Snapshots()).Total)
	assert.Equal(t, SubscriberActive, fast.State())
}

func TestCloseEvictsEveryone(t *testing.T) {
	hub := NewBroadcastHub(4, 3, zap.NewNop())

	first := hub.Subscribe()
	second := hub.Subscribe()

	hub.Close()
	assert.Equal(t, 0, hub.ActiveCount())
	assert.Equal(t, SubscriberClosed, first.State())
	assert.Equal(t, SubscriberClosed, second.State())

	// Publishing after close is a no-op
	hub.Publish(numberedSnapshot(1))

	// Subscribing after close yields an already-closed handle
	late := hub.Subscribe()
	assert.Equal(t, SubscriberClosed, late.State())
	_, open := <-late.Snapshots()
	assert.False(t, open)
}
