// Package stream fans encoded frames out to HTTP viewers.
//
// Each subscriber owns a single-slot mailbox: a new frame replaces an
// unread one, so a slow viewer sees fewer frames instead of older ones.
package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Next once the frame source is exhausted.
var ErrClosed = errors.New("stream closed")

type Broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscription]struct{})}
}

// Subscription is a lazy, non-restartable sequence of frames.
type Subscription struct {
	b     *Broadcaster
	slot  chan []byte
	done  chan struct{}
	once  sync.Once
	drops atomic.Uint64
}

// Subscribe registers a viewer. Subscribing to a closed broadcaster returns a
// subscription that is already finished.
func (b *Broadcaster) Subscribe() *Subscription {
	s := &Subscription{
		b:    b,
		slot: make(chan []byte, 1),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.finish()
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish hands frame to every subscriber without blocking.
func (b *Broadcaster) Publish(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs {
		s.offer(frame)
	}
}

func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Further Publish calls are no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.finish()
		delete(b.subs, s)
	}
}

// offer is called with b.mu held.
func (s *Subscription) offer(frame []byte) {
	select {
	case s.slot <- frame:
		return
	default:
	}
	select {
	case <-s.slot:
		s.drops.Add(1)
	default:
	}
	select {
	case s.slot <- frame:
	default:
	}
}

func (s *Subscription) finish() {
	s.once.Do(func() { close(s.done) })
}

// Next blocks until a frame is available, the broadcaster closes, or ctx ends.
func (s *Subscription) Next(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-s.slot:
		return frame, nil
	default:
	}

	select {
	case frame := <-s.slot:
		return frame, nil
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Drops reports how many frames were overwritten before being read.
func (s *Subscription) Drops() uint64 {
	return s.drops.Load()
}

// Cancel detaches the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.b.mu.Lock()
	delete(s.b.subs, s)
	s.b.mu.Unlock()
	s.finish()
}
