package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Channel delivers one serialized message to the host
type Channel interface {
	Post(payload []byte) error
}

// Stats counts delivery outcomes
type Stats struct {
	Sent    uint64
	Dropped uint64 // no host channel attached
	Failed  uint64 // serialization or transport error
}

// Bridge forwards pipeline output to the embedding host. Delivery is
// best effort: Send never reports failure to the caller.
type Bridge struct {
	ch  Channel
	log *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a bridge. A nil channel makes every Send a no-op, which
// is how the pipeline runs standalone.
func New(ch Channel, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{ch: ch, log: log}
}

// Attached reports whether a host channel is present
func (b *Bridge) Attached() bool {
	return b.ch != nil
}

// Send serializes payload and posts it to the host channel
func (b *Bridge) Send(payload any) {
	if b.ch == nil {
		b.count(func(s *Stats) { s.Dropped++ })
		b.log.Debug("no host channel, message dropped")
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		b.count(func(s *Stats) { s.Failed++ })
		b.log.Warn("failed to serialize host message", "error", err)
		return
	}

	if err := b.post(data); err != nil {
		b.count(func(s *Stats) { s.Failed++ })
		b.log.Warn("failed to deliver host message", "error", err, "size", len(data))
		return
	}

	b.count(func(s *Stats) { s.Sent++ })
}

// post shields the caller from a misbehaving channel
func (b *Bridge) post(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("host channel panic: %v", r)
		}
	}()
	return b.ch.Post(data)
}

// Stats returns delivery counters
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Bridge) count(fn func(*Stats)) {
	b.mu.Lock()
	fn(&b.stats)
	b.mu.Unlock()
}

// WriterChannel writes newline-delimited JSON messages to w
type WriterChannel struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterChannel creates a channel over w (typically stdout)
func NewWriterChannel(w io.Writer) *WriterChannel {
	return &WriterChannel{w: w}
}

// Post writes payload followed by a newline
func (c *WriterChannel) Post(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := make([]byte, 0, len(payload)+1)
	line = append(append(line, payload...), '\n')

	n, err := c.w.Write(line)
	if err != nil {
		return err
	}
	if n != len(line) {
		return io.ErrShortWrite
	}
	return nil
}

// ErrNotConnected is returned when the transport has no live connection
var ErrNotConnected = errors.New("host channel not connected")
