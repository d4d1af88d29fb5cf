// Package memory provides an in-process queue transport for local
// development and tests. It mimics the production transport's semantics:
// received messages become invisible for the visibility window and reappear
// if not deleted in time.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/korrarahuldev/company-crawler/internal/crawler"
)

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport closed")

type entry struct {
	id             string
	body           []byte
	receipt        string
	invisibleUntil time.Time
}

// Transport implements crawler.Transport with per-queue in-memory buffers.
type Transport struct {
	visibility time.Duration
	clock      crawler.Clock

	mu      sync.Mutex
	queues  map[string][]*entry
	nextID  uint64
	closed  bool
	wakeups map[string]chan struct{}
}

// NewTransport builds a transport with the given visibility window.
func NewTransport(visibility time.Duration, clock crawler.Clock) *Transport {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &Transport{
		visibility: visibility,
		clock:      clock,
		queues:     make(map[string][]*entry),
		wakeups:    make(map[string]chan struct{}),
	}
}

// Send appends a message to the queue.
func (t *Transport) Send(_ context.Context, queue string, body []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	t.nextID++
	buf := make([]byte, len(body))
	copy(buf, body)
	t.queues[queue] = append(t.queues[queue], &entry{
		id:   fmt.Sprintf("%s-%d", queue, t.nextID),
		body: buf,
	})
	if ch, ok := t.wakeups[queue]; ok {
		close(ch)
		delete(t.wakeups, queue)
	}
	return nil
}

// Receive returns up to max visible messages, polling until wait elapses.
// Returned messages are hidden for the visibility window.
func (t *Transport) Receive(ctx context.Context, queue string, max int, wait time.Duration) ([]crawler.Message, error) {
	deadline := t.clock.Now().Add(wait)
	for {
		msgs, wake, err := t.takeVisible(queue, max)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			return msgs, nil
		}

		remaining := deadline.Sub(t.clock.Now())
		if remaining <= 0 {
			return nil, nil
		}
		pause := remaining
		if pause > 50*time.Millisecond {
			pause = 50 * time.Millisecond
		}
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("receive canceled: %w", ctx.Err())
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (t *Transport) takeVisible(queue string, max int) ([]crawler.Message, chan struct{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, nil, ErrClosed
	}

	now := t.clock.Now()
	var out []crawler.Message
	for _, e := range t.queues[queue] {
		if len(out) >= max {
			break
		}
		if e.invisibleUntil.After(now) {
			continue
		}
		t.nextID++
		e.receipt = fmt.Sprintf("rcpt-%d", t.nextID)
		e.invisibleUntil = now.Add(t.visibility)
		out = append(out, crawler.Message{ID: e.id, Body: e.body, Receipt: e.receipt})
	}
	if len(out) > 0 {
		return out, nil, nil
	}

	wake, ok := t.wakeups[queue]
	if !ok {
		wake = make(chan struct{})
		t.wakeups[queue] = wake
	}
	return nil, wake, nil
}

// Delete removes the message matching receipt. A stale receipt (the message
// was already redelivered under a new one) is an error.
func (t *Transport) Delete(_ context.Context, queue string, receipt string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	entries := t.queues[queue]
	for i, e := range entries {
		if e.receipt == receipt && e.invisibleUntil.After(t.clock.Now()) {
			t.queues[queue] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("unknown receipt %s for queue %s", receipt, queue)
}

// Close marks the transport closed; pending messages are dropped.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for q, ch := range t.wakeups {
		close(ch)
		delete(t.wakeups, q)
	}
	t.queues = make(map[string][]*entry)
	return nil
}

// Len reports the number of messages (visible or not) in a queue. Test helper.
func (t *Transport) Len(queue string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queues[queue])
}
