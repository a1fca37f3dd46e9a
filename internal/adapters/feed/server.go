// Package feed streams statistics snapshots to connected observers over a
// plain TCP push channel, one JSON object per line. Observers get a full
// snapshot on connect and every published snapshot after that, subject to
// the hub's drop-oldest policy.
package feed

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/mikey/mailflow-monitor/internal/core"
	"go.uber.org/zap"
)

// Server is the observer feed listener
type Server struct {
	hub    *core.BroadcastHub
	stats  *core.StatsAggregator
	logger *zap.Logger

	listenAddr   string
	writeTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a new feed server
func NewServer(
	hub *core.BroadcastHub,
	stats *core.StatsAggregator,
	logger *zap.Logger,
	listenAddr string,
	writeTimeout time.Duration,
) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Server{
		hub:          hub,
		stats:        stats,
		logger:       logger,
		listenAddr:   listenAddr,
		writeTimeout: writeTimeout,
	}
}

// Start starts accepting observer connections
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("Feed listener starting", zap.String("address", s.listenAddr))

	s.wg.Add(1)
	go s.acceptLoop(listener)

	return nil
}

// Stop closes the listener and waits for connection handlers to finish.
// Subscriber eviction by the hub closes each handler's delivery channel,
// so handlers drain and exit.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.closed = true
	listener := s.listener
	s.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}
	s.hub.Close()
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.logger.Error("Feed accept error", zap.Error(err))
			}
			return
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn serves one observer: subscribe, send the current snapshot,
// then relay everything the hub delivers until the observer goes away or
// the hub evicts it.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	remote := conn.RemoteAddr().String()
	s.logger.Info("Observer connected",
		zap.String("remote", remote),
		zap.Uint64("subscriber_id", sub.ID()))

	if err := s.writeSnapshot(conn, s.stats.Snapshot()); err != nil {
		s.logger.Debug("Observer write failed", zap.String("remote", remote), zap.Error(err))
		return
	}

	// Reads only detect disconnects; observers are not expected to send
	// anything.
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := conn.Read(buf); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for snap := range sub.Snapshots() {
		if err := s.writeSnapshot(conn, snap); err != nil {
			s.logger.Debug("Observer write failed", zap.String("remote", remote), zap.Error(err))
			return
		}
	}

	s.logger.Info("Observer stream closed",
		zap.String("remote", remote),
		zap.Uint64("subscriber_id", sub.ID()))
}

func (s *Server) writeSnapshot(conn net.Conn, snap *core.StatsSnapshot) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return json.NewEncoder(conn).Encode(snap)
}
