package frameloop

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/mirrorfit/internal/pose"
)

// Mailbox is a latest-wins Source for frames pushed by a live pose
// estimator. Publish never blocks; a frame not yet consumed when the next
// one arrives is replaced and counted as dropped.
type Mailbox struct {
	mu      sync.Mutex
	pending pose.Frame
	has     bool
	closed  bool

	drops atomic.Uint64
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Publish offers a frame for the next tick. Frames published after Close
// are ignored.
func (m *Mailbox) Publish(frame pose.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.has {
		m.drops.Add(1)
	}
	m.pending, m.has = frame, true
}

// NextFrame takes the pending frame, or returns ErrNoFrame. After Close and
// once drained it returns io.EOF.
func (m *Mailbox) NextFrame(ctx context.Context) (pose.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.has {
		if m.closed {
			return nil, io.EOF
		}
		return nil, ErrNoFrame
	}
	frame := m.pending
	m.pending, m.has = nil, false
	return frame, nil
}

// Close ends the stream.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Drops returns how many frames were overwritten before being consumed.
func (m *Mailbox) Drops() uint64 {
	return m.drops.Load()
}
