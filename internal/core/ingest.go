package core

import (
	"context"
	"time"

	"github.com/mikey/mailflow-monitor/internal/mailparse"
	"go.uber.org/zap"
)

// IngestService is the pipeline's entry point. It turns a raw inbound
// message into a MessageEvent, classifies it, records it, and publishes a
// fresh snapshot to the hub. Each message flows through exactly once.
type IngestService struct {
	classifier *Classifier
	stats      *StatsAggregator
	hub        *BroadcastHub
	logger     *zap.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	classifier *Classifier,
	stats *StatsAggregator,
	hub *BroadcastHub,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		classifier: classifier,
		stats:      stats,
		hub:        hub,
		logger:     logger,
	}
}

// Ingest processes one fully received message. Malformed messages are
// counted as rejected and go no further; accepted messages always run
// classification and recording to completion, then trigger a publish.
// Nothing is ever surfaced to the transport as an error.
func (s *IngestService) Ingest(ctx context.Context, raw *RawInboundMessage) {
	event, ok := s.buildEvent(raw)
	if !ok {
		s.stats.RecordRejection()
		return
	}

	result := s.classifier.Classify(ctx, event)

	// Record before snapshot so observers never see stats older than the
	// message that triggered their notification.
	s.stats.Record(event, result)
	s.hub.Publish(s.stats.Snapshot())

	s.logger.Info("Processed message",
		zap.String("sender", event.Sender),
		zap.String("sender_domain", event.SenderDomain()),
		zap.String("label", string(result.Label)),
		zap.Float64("confidence", result.Confidence),
		zap.String("strategy", string(result.Strategy)))
}

// buildEvent validates the raw message and constructs the immutable event.
// Validation failures are logged at debug level; the rejection counter is
// the operator-visible signal.
func (s *IngestService) buildEvent(raw *RawInboundMessage) (*MessageEvent, bool) {
	if raw.Sender == "" {
		s.logger.Debug("Rejecting message with empty sender")
		return nil, false
	}
	if len(raw.Recipients) == 0 {
		s.logger.Debug("Rejecting message with no recipients",
			zap.String("sender", raw.Sender))
		return nil, false
	}

	subject, body, err := mailparse.Parse(raw.Data)
	if err != nil {
		s.logger.Debug("Rejecting message with undecodable body",
			zap.String("sender", raw.Sender),
			zap.Error(err))
		return nil, false
	}

	recipients := make([]string, len(raw.Recipients))
	copy(recipients, raw.Recipients)

	return &MessageEvent{
		Sender:     raw.Sender,
		Recipients: recipients,
		Subject:    subject,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
		StatusCode: raw.StatusCode,
	}, true
}
