package feed

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/mikey/mailflow-monitor/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startTestServer(t *testing.T) (*Server, *core.StatsAggregator, *core.BroadcastHub, string) {
	t.Helper()
	logger := zap.NewNop()
	stats := core.NewStatsAggregator(10, logger)
	hub := core.NewBroadcastHub(16, 5, logger)

	server := NewServer(hub, stats, logger, "127.0.0.1:0", time.Second)
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Stop() })

	return server, stats, hub, server.listener.Addr().String()
}

func recordMessage(stats *core.StatsAggregator, sender string, label core.Label) {
	event := &core.MessageEvent{
		Sender:     sender,
		Recipients: []string{"ops@example.com"},
		Subject:    "hello",
		Body:       "hello there",
		ReceivedAt: time.Now().UTC(),
		StatusCode: 250,
	}
	stats.Record(event, &core.ClassificationResult{
		Label:      label,
		Confidence: 0.5,
		Strategy:   core.StrategyRuleBased,
	})
}

func readSnapshot(t *testing.T, reader *bufio.Reader) *core.StatsSnapshot {
	t.Helper()
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	var snap core.StatsSnapshot
	require.NoError(t, json.Unmarshal(line, &snap))
	return &snap
}

func TestObserverGetsSnapshotOnConnect(t *testing.T) {
	_, stats, _, addr := startTestServer(t)

	recordMessage(stats, "a@evil.com", core.LabelSpam)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	snap := readSnapshot(t, bufio.NewReader(conn))
	assert.Equal(t, uint64(1), snap.Total)
	assert.Equal(t, uint64(1), snap.Spam)
	assert.Equal(t, uint64(1), snap.Domains["evil.com"])
}

func TestObserverReceivesPublishedSnapshots(t *testing.T) {
	_, stats, hub, addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)

	initial := readSnapshot(t, reader)
	assert.Equal(t, uint64(0), initial.Total)

	// The handler subscribes before writing the initial snapshot, but give
	// the accept loop a moment to pick the connection up.
	require.Eventually(t, func() bool { return hub.ActiveCount() == 1 },
		time.Second, 10*time.Millisecond)

	recordMessage(stats, "a@evil.com", core.LabelSpam)
	hub.Publish(stats.Snapshot())

	next := readSnapshot(t, reader)
	assert.Equal(t, uint64(1), next.Total)
	require.Len(t, next.Recent, 1)
	assert.Equal(t, "a@evil.com", next.Recent[0].Sender)
}

func TestStopDisconnectsObservers(t *testing.T) {
	server, _, hub, addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	readSnapshot(t, reader)

	require.NoError(t, server.Stop())
	assert.Equal(t, 0, hub.ActiveCount())

	// The server side closed; the observer sees EOF once the buffer drains.
	_, err = reader.ReadBytes('\n')
	assert.Error(t, err)
}
