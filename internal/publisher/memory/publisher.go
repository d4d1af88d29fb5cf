// Package memory provides an in-memory publisher for local development and
// tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Publisher records published payloads.
type Publisher struct {
	mu       sync.Mutex
	messages [][]byte
	nextID   int
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish marshals the payload and appends it to the recorded messages.
func (p *Publisher) Publish(_ context.Context, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.messages = append(p.messages, data)
	return fmt.Sprintf("mem-%d", p.nextID), nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}

// Messages returns copies of all published payloads. Test helper.
func (p *Publisher) Messages() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.messages))
	for i, m := range p.messages {
		out[i] = append([]byte(nil), m...)
	}
	return out
}
