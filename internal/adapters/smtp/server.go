// Package smtp receives inbound mail and feeds it into the ingestion
// pipeline. It is a receive-only endpoint: once a message has been handed
// to the pipeline the session replies 250, regardless of how
// classification turns out.
package smtp

import (
	"context"
	"io"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/mailflow-monitor/internal/core"
	"go.uber.org/zap"
)

// The SMTP accept code recorded on every event that makes it past DATA
const acceptedStatusCode = 250

// Server is the inbound SMTP listener
type Server struct {
	ingest *core.IngestService
	logger *zap.Logger
	server *smtp.Server

	listenAddr      string
	domain          string
	maxMessageBytes int
	maxRecipients   int
}

// NewServer creates a new inbound SMTP server
func NewServer(
	ingest *core.IngestService,
	logger *zap.Logger,
	listenAddr string,
	domain string,
	maxMessageBytes int,
	maxRecipients int,
) *Server {
	if domain == "" {
		domain = "localhost"
	}
	return &Server{
		ingest:          ingest,
		logger:          logger,
		listenAddr:      listenAddr,
		domain:          domain,
		maxMessageBytes: maxMessageBytes,
		maxRecipients:   maxRecipients,
	}
}

// Start starts the SMTP listener
func (s *Server) Start() error {
	s.server = smtp.NewServer(&backend{srv: s})

	s.server.Addr = s.listenAddr
	s.server.Domain = s.domain
	s.server.ReadTimeout = 30 * time.Second
	s.server.WriteTimeout = 30 * time.Second
	s.server.MaxMessageBytes = int64(s.maxMessageBytes)
	s.server.MaxRecipients = s.maxRecipients
	s.server.AllowInsecureAuth = true

	s.logger.Info("SMTP listener starting", zap.String("address", s.listenAddr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				s.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP listener
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// backend implements the go-smtp Backend interface
type backend struct {
	srv *Server
}

// NewSession creates a new SMTP session
func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &session{
		srv:        b.srv,
		recipients: make([]string, 0),
	}, nil
}

// session implements the go-smtp Session interface
type session struct {
	srv        *Server
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *session) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for a monitor)
func (s *session) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data hands the received message to the ingestion pipeline. Pipeline
// outcomes (rejection, fallback classification) are visible through the
// aggregator's counters, never as SMTP errors.
func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		s.srv.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	raw := &core.RawInboundMessage{
		Sender:     s.sender,
		Recipients: s.recipients,
		Data:       data,
		StatusCode: acceptedStatusCode,
	}

	s.srv.ingest.Ingest(context.Background(), raw)
	return nil
}

// Logout handles SMTP logout
func (s *session) Logout() error {
	return nil
}
