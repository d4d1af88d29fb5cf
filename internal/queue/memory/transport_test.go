package memory

import (
	"context"
	"sync"
	"testing"
	"time"
)

// stubClock lets tests move time forward past the visibility window.
type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Unix(1700000000, 0).UTC()}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSendReceiveDelete(t *testing.T) {
	t.Parallel()

	clock := newStubClock()
	tr := NewTransport(time.Minute, clock)
	ctx := context.Background()

	if err := tr.Send(ctx, "jobs", []byte(`{"job_id":"1"}`)); err != nil {
		t.Fatalf("Send error = %v", err)
	}
	msgs, err := tr.Receive(ctx, "jobs", 10, time.Second)
	if err != nil {
		t.Fatalf("Receive error = %v", err)
	}
	if len(msgs) != 1 || string(msgs[0].Body) != `{"job_id":"1"}` {
		t.Fatalf("unexpected messages %v", msgs)
	}

	if err := tr.Delete(ctx, "jobs", msgs[0].Receipt); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if tr.Len("jobs") != 0 {
		t.Fatalf("queue should be empty, has %d", tr.Len("jobs"))
	}
}

func TestReceiveHidesInFlightMessages(t *testing.T) {
	t.Parallel()

	clock := newStubClock()
	tr := NewTransport(time.Minute, clock)
	ctx := context.Background()

	if err := tr.Send(ctx, "jobs", []byte("a")); err != nil {
		t.Fatal(err)
	}
	first, err := tr.Receive(ctx, "jobs", 10, time.Second)
	if err != nil || len(first) != 1 {
		t.Fatalf("first receive = %v, %v", first, err)
	}

	// Still invisible: a second poll comes back empty.
	second, err := tr.Receive(ctx, "jobs", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Fatalf("in-flight message redelivered early: %v", second)
	}
}

func TestVisibilityLapseRedelivers(t *testing.T) {
	t.Parallel()

	clock := newStubClock()
	tr := NewTransport(time.Minute, clock)
	ctx := context.Background()

	if err := tr.Send(ctx, "jobs", []byte("a")); err != nil {
		t.Fatal(err)
	}
	first, err := tr.Receive(ctx, "jobs", 10, time.Second)
	if err != nil || len(first) != 1 {
		t.Fatalf("first receive = %v, %v", first, err)
	}

	clock.Advance(2 * time.Minute)

	second, err := tr.Receive(ctx, "jobs", 10, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 {
		t.Fatal("expected redelivery after visibility lapse")
	}
	if second[0].Receipt == first[0].Receipt {
		t.Fatal("redelivery must carry a fresh receipt")
	}

	// The stale receipt can no longer settle the message.
	if err := tr.Delete(ctx, "jobs", first[0].Receipt); err == nil {
		t.Fatal("expected stale receipt rejection")
	}
	if err := tr.Delete(ctx, "jobs", second[0].Receipt); err != nil {
		t.Fatalf("fresh receipt rejected: %v", err)
	}
}

func TestReceiveRespectsMax(t *testing.T) {
	t.Parallel()

	clock := newStubClock()
	tr := NewTransport(time.Minute, clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := tr.Send(ctx, "jobs", []byte{byte('a' + i)}); err != nil {
			t.Fatal(err)
		}
	}
	msgs, err := tr.Receive(ctx, "jobs", 3, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
}

func TestReceiveLongPollWakesOnSend(t *testing.T) {
	t.Parallel()

	clock := newStubClock()
	tr := NewTransport(time.Minute, clock)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		msgs, err := tr.Receive(ctx, "jobs", 1, 5*time.Second)
		if err != nil || len(msgs) != 1 {
			t.Errorf("Receive = %v, %v", msgs, err)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	if err := tr.Send(ctx, "jobs", []byte("late")); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not wake on send")
	}
}

func TestReceiveCanceledContext(t *testing.T) {
	t.Parallel()

	clock := newStubClock()
	tr := NewTransport(time.Minute, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Receive(ctx, "jobs", 1, time.Minute); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestClosedTransportRejectsOperations(t *testing.T) {
	t.Parallel()

	clock := newStubClock()
	tr := NewTransport(time.Minute, clock)
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Send(context.Background(), "jobs", []byte("x")); err == nil {
		t.Fatal("expected ErrClosed")
	}
}
