package graphite

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/taskhive/taskpulse/internal/metrics"
)

// Sink writes observation batches to a Graphite plaintext listener over a
// persistent connection. Delivery is best effort: a batch that cannot be
// written after one reconnect attempt is dropped with an error, and the next
// push starts over with a fresh connection.
type Sink struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

// NewSink creates a Sink. The connection is established lazily on the first
// push so a temporarily unreachable endpoint does not block startup.
func NewSink(cfg Config, logger *slog.Logger) (*Sink, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sink{
		cfg:    cfg,
		logger: logger.With("component", "graphite"),
	}, nil
}

// Push encodes the batch and writes it. It has the collector callback
// signature.
func (s *Sink) Push(lines metrics.Lines) error {
	batch := encode(s.cfg.Prefix, lines)
	if len(batch) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.write(batch)
	if err == nil {
		return nil
	}
	s.logger.Debug("write failed, reconnecting", "error", err)

	// One reconnect attempt per push: the endpoint may have dropped an idle
	// connection between ticks.
	s.closeLocked()
	if err := s.write(batch); err != nil {
		s.closeLocked()
		return fmt.Errorf("graphite: push %d bytes to %s: %w", len(batch), s.cfg.Address, err)
	}
	return nil
}

// Close tears down the connection. A later Push re-establishes it.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

// write sends one batch over the current connection, dialing if needed.
// Must be called with s.mu held.
func (s *Sink) write(batch []byte) error {
	if s.conn == nil {
		conn, err := net.DialTimeout(s.cfg.Network, s.cfg.Address, s.cfg.DialTimeout)
		if err != nil {
			return err
		}
		s.conn = conn
		s.logger.Debug("connected", "address", s.cfg.Address, "network", s.cfg.Network)
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	_, err := s.conn.Write(batch)
	return err
}

// closeLocked closes the connection if open. Must be called with s.mu held.
func (s *Sink) closeLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// encode renders a batch in the plaintext line protocol:
// "<prefix><line> <value> <unix-timestamp>\n", lines in name order.
func encode(prefix string, lines metrics.Lines) []byte {
	names := make([]string, 0, len(lines))
	for name := range lines {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		for _, obs := range lines[name] {
			buf.WriteString(prefix)
			buf.WriteString(name)
			buf.WriteByte(' ')
			buf.WriteString(strconv.FormatFloat(obs.Value, 'f', -1, 64))
			buf.WriteByte(' ')
			buf.WriteString(strconv.FormatInt(obs.Time.Unix(), 10))
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}
