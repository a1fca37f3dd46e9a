package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/mikey/mailflow-monitor/internal/core"
	"github.com/mikey/mailflow-monitor/internal/rules"
	"github.com/mikey/mailflow-monitor/internal/whitelist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPipeline(t *testing.T) (*core.IngestService, *core.StatsAggregator, *core.BroadcastHub) {
	t.Helper()
	logger := zap.NewNop()
	classifier := core.NewClassifier(
		nil,
		rules.NewEngine(rules.DefaultConfig()),
		whitelist.NewChecker(nil, logger),
		nil,
		logger,
		false,
		0,
		1,
		time.Second,
	)
	stats := core.NewStatsAggregator(10, logger)
	hub := core.NewBroadcastHub(16, 5, logger)
	return core.NewIngestService(classifier, stats, hub, logger), stats, hub
}

func rawMessage(sender string, recipients []string, data string) *core.RawInboundMessage {
	return &core.RawInboundMessage{
		Sender:     sender,
		Recipients: recipients,
		Data:       []byte(data),
		StatusCode: 250,
	}
}

const spamBody = "Subject: You are a WINNER\r\n" +
	"From: a@evil.com\r\n" +
	"\r\n" +
	"Congratulations!!! Claim prize now, click here:\r\n" +
	"http://evil.test/win http://evil.test/claim\r\n"

const hamBody = "Subject: Lunch tomorrow?\r\n" +
	"From: b@good.org\r\n" +
	"\r\n" +
	"Does noon still work for you?\r\n"

func TestIngestPipeline(t *testing.T) {
	ingest, stats, hub := newPipeline(t)

	sub := hub.Subscribe()
	ctx := context.Background()

	ingest.Ingest(ctx, rawMessage("a@evil.com", []string{"ops@example.com"}, spamBody))
	ingest.Ingest(ctx, rawMessage("b@good.org", []string{"ops@example.com"}, hamBody))
	ingest.Ingest(ctx, rawMessage("", []string{"ops@example.com"}, hamBody))

	snap := stats.Snapshot()
	assert.Equal(t, uint64(2), snap.Total)
	assert.Equal(t, uint64(1), snap.Spam)
	assert.Equal(t, uint64(1), snap.Ham)
	assert.Equal(t, uint64(1), snap.Rejected)
	assert.Equal(t, uint64(1), snap.Domains["evil.com"])
	assert.Equal(t, uint64(1), snap.Domains["good.org"])
	assert.Equal(t, uint64(2), snap.StatusCodes[250])

	require.Len(t, snap.Recent, 2)
	assert.Equal(t, "b@good.org", snap.Recent[0].Sender)
	assert.Equal(t, core.LabelHam, snap.Recent[0].Label)
	assert.Equal(t, "a@evil.com", snap.Recent[1].Sender)
	assert.Equal(t, core.LabelSpam, snap.Recent[1].Label)

	// One snapshot per accepted message; rejections publish nothing.
	first := <-sub.Snapshots()
	assert.Equal(t, uint64(1), first.Total)
	second := <-sub.Snapshots()
	assert.Equal(t, uint64(2), second.Total)
	select {
	case extra := <-sub.Snapshots():
		t.Fatalf("unexpected snapshot with total %d", extra.Total)
	default:
	}
}

func TestIngestRejectsInvalidMessages(t *testing.T) {
	tests := []struct {
		name string
		raw  *core.RawInboundMessage
	}{
		{"empty sender", rawMessage("", []string{"ops@example.com"}, hamBody)},
		{"no recipients", rawMessage("b@good.org", nil, hamBody)},
		{"undecodable payload", rawMessage("b@good.org", []string{"ops@example.com"}, "this is not a mail message")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingest, stats, _ := newPipeline(t)
			ingest.Ingest(context.Background(), tt.raw)

			snap := stats.Snapshot()
			assert.Equal(t, uint64(1), snap.Rejected)
			assert.Equal(t, uint64(0), snap.Total)
			assert.Empty(t, snap.Domains)
			assert.Empty(t, snap.Recent)
		})
	}
}

func TestIngestRecordsRuleFallbackUsage(t *testing.T) {
	ingest, stats, _ := newPipeline(t)

	ingest.Ingest(context.Background(), rawMessage("b@good.org", []string{"ops@example.com"}, hamBody))

	snap := stats.Snapshot()
	assert.Equal(t, uint64(1), snap.Fallback)
}
