package natsqueue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

type stubMsg struct {
	data  []byte
	acked bool
}

func (m *stubMsg) Metadata() (*jetstream.MsgMetadata, error) { return nil, fmt.Errorf("no metadata") }
func (m *stubMsg) Data() []byte                              { return m.data }
func (m *stubMsg) Headers() nats.Header                      { return nil }
func (m *stubMsg) Subject() string                           { return "jobs" }
func (m *stubMsg) Reply() string                             { return "" }
func (m *stubMsg) Ack() error                                { m.acked = true; return nil }
func (m *stubMsg) DoubleAck(context.Context) error           { m.acked = true; return nil }
func (m *stubMsg) Nak() error                                { return nil }
func (m *stubMsg) NakWithDelay(time.Duration) error          { return nil }
func (m *stubMsg) InProgress() error                         { return nil }
func (m *stubMsg) Term() error                               { return nil }
func (m *stubMsg) TermWithReason(string) error               { return nil }

func newTestTransport(visibility time.Duration) *Transport {
	return &Transport{
		cfg:       Config{Visibility: visibility},
		logger:    zap.NewNop(),
		consumers: make(map[string]jetstream.Consumer),
		pending:   make(map[string]pendingMsg),
	}
}

func TestTrackAndDelete(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(time.Minute)
	msg := &stubMsg{data: []byte("payload")}

	tracked := tr.track("jobs", msg)
	if string(tracked.Body) != "payload" {
		t.Fatalf("body = %q", tracked.Body)
	}
	if tracked.Receipt == "" {
		t.Fatal("expected a receipt")
	}
	if len(tr.pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(tr.pending))
	}

	if err := tr.Delete(context.Background(), "jobs", tracked.Receipt); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !msg.acked {
		t.Fatal("message not acknowledged")
	}
	if len(tr.pending) != 0 {
		t.Fatalf("pending = %d after delete, want 0", len(tr.pending))
	}
}

func TestDeleteUnknownReceipt(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(time.Minute)
	if err := tr.Delete(context.Background(), "jobs", "jobs-99"); err == nil {
		t.Fatal("expected error for unknown receipt")
	}
}

func TestDeleteExpiredReceipt(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(time.Minute)
	msg := &stubMsg{}
	tracked := tr.track("jobs", msg)

	tr.mu.Lock()
	tr.pending[tracked.Receipt] = pendingMsg{msg: msg, expires: time.Now().Add(-time.Second)}
	tr.mu.Unlock()

	if err := tr.Delete(context.Background(), "jobs", tracked.Receipt); err == nil {
		t.Fatal("expected error for expired receipt")
	}
	if msg.acked {
		t.Fatal("expired delivery must not be acknowledged")
	}
	if len(tr.pending) != 0 {
		t.Fatalf("pending = %d, want expired entry removed", len(tr.pending))
	}
}

func TestTrackEvictsExpiredReceipts(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(time.Minute)
	stale := tr.track("jobs", &stubMsg{})
	tr.mu.Lock()
	tr.pending[stale.Receipt] = pendingMsg{msg: &stubMsg{}, expires: time.Now().Add(-time.Second)}
	tr.mu.Unlock()

	fresh := tr.track("jobs", &stubMsg{})
	if len(tr.pending) != 1 {
		t.Fatalf("pending = %d, want only the fresh receipt", len(tr.pending))
	}
	if _, ok := tr.pending[fresh.Receipt]; !ok {
		t.Fatal("fresh receipt missing from pending map")
	}
}
