// Package natsqueue implements the queue transport on NATS JetStream.
//
// Each logical queue maps to a work-queue stream with a single durable pull
// consumer. The consumer's AckWait is the visibility window: a message that is
// received but not deleted before AckWait lapses is redelivered.
package natsqueue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/korrarahuldev/company-crawler/internal/crawler"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// Config holds NATS connection and delivery settings.
type Config struct {
	URL        string        `mapstructure:"url"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	Visibility time.Duration `mapstructure:"visibility"`
}

// Transport is a crawler.Transport backed by JetStream pull consumers.
type Transport struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	consumers map[string]jetstream.Consumer
	pending   map[string]pendingMsg
	nextSeq   uint64
}

// pendingMsg is an unacknowledged delivery. Past expires the server has
// redelivered the message under a new receipt, so the entry is dead weight.
type pendingMsg struct {
	msg     jetstream.Msg
	expires time.Time
}

// New connects to NATS and initializes the JetStream context.
func New(cfg Config, logger *zap.Logger) (*Transport, error) {
	if cfg.Visibility <= 0 {
		cfg.Visibility = 5 * time.Minute
	}

	opts := []nats.Option{
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("disconnected from nats", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to nats", zap.String("server", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("nats subscription error", zap.String("subject", subject), zap.Error(err))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	logger.Info("connected to nats", zap.String("server", conn.ConnectedUrl()))
	return &Transport{
		conn:      conn,
		js:        js,
		cfg:       cfg,
		logger:    logger,
		consumers: make(map[string]jetstream.Consumer),
		pending:   make(map[string]pendingMsg),
	}, nil
}

// Send publishes a message to the queue's stream, creating the stream on
// first use. Publish waits for the server acknowledgement.
func (t *Transport) Send(ctx context.Context, queue string, body []byte) error {
	if _, err := t.ensureStream(ctx, queue); err != nil {
		return err
	}
	if _, err := t.js.Publish(ctx, queue, body); err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

// Receive fetches up to max messages, long-polling up to wait. Returned
// messages stay invisible to other consumers until Delete or until the
// visibility window lapses.
func (t *Transport) Receive(ctx context.Context, queue string, max int, wait time.Duration) ([]crawler.Message, error) {
	consumer, err := t.ensureConsumer(ctx, queue)
	if err != nil {
		return nil, err
	}

	batch, err := consumer.Fetch(max, jetstream.FetchMaxWait(wait))
	if err != nil {
		return nil, fmt.Errorf("fetch from %s: %w", queue, err)
	}

	var out []crawler.Message
	for msg := range batch.Messages() {
		out = append(out, t.track(queue, msg))
	}
	if err := batch.Error(); err != nil {
		return out, fmt.Errorf("fetch batch from %s: %w", queue, err)
	}
	return out, nil
}

// Delete acknowledges the delivery identified by receipt, removing the
// message from the stream. Unknown and expired receipts are an error: the
// visibility window already lapsed and the message was redelivered.
func (t *Transport) Delete(_ context.Context, queue string, receipt string) error {
	now := time.Now()

	t.mu.Lock()
	p, ok := t.pending[receipt]
	delete(t.pending, receipt)
	t.mu.Unlock()

	if !ok || now.After(p.expires) {
		return fmt.Errorf("unknown or expired receipt %s for queue %s", receipt, queue)
	}
	if err := p.msg.Ack(); err != nil {
		return fmt.Errorf("ack message on %s: %w", queue, err)
	}
	return nil
}

// Close drains the connection, letting in-flight operations finish.
func (t *Transport) Close() error {
	if t.conn != nil && t.conn.IsConnected() {
		return t.conn.Drain()
	}
	return nil
}

func (t *Transport) track(queue string, msg jetstream.Msg) crawler.Message {
	now := time.Now()

	t.mu.Lock()
	t.evictExpiredLocked(now)
	t.nextSeq++
	receipt := fmt.Sprintf("%s-%d", queue, t.nextSeq)
	t.pending[receipt] = pendingMsg{msg: msg, expires: now.Add(t.cfg.Visibility)}
	t.mu.Unlock()

	id := receipt
	if meta, err := msg.Metadata(); err == nil {
		id = fmt.Sprintf("%s-%d", streamName(queue), meta.Sequence.Stream)
	}
	return crawler.Message{ID: id, Body: msg.Data(), Receipt: receipt}
}

func (t *Transport) ensureStream(ctx context.Context, queue string) (jetstream.Stream, error) {
	stream, err := t.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName(queue),
		Subjects:  []string{queue},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream for %s: %w", queue, err)
	}
	return stream, nil
}

func (t *Transport) ensureConsumer(ctx context.Context, queue string) (jetstream.Consumer, error) {
	t.mu.Lock()
	if consumer, ok := t.consumers[queue]; ok {
		t.mu.Unlock()
		return consumer, nil
	}
	t.mu.Unlock()

	stream, err := t.ensureStream(ctx, queue)
	if err != nil {
		return nil, err
	}
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:   streamName(queue) + "_WORKERS",
		AckPolicy: jetstream.AckExplicitPolicy,
		AckWait:   t.cfg.Visibility,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer for %s: %w", queue, err)
	}

	t.mu.Lock()
	t.consumers[queue] = consumer
	t.mu.Unlock()
	return consumer, nil
}

// evictExpiredLocked drops receipts whose visibility window has lapsed, so
// receipts for messages never deleted do not accumulate. Callers hold t.mu.
func (t *Transport) evictExpiredLocked(now time.Time) {
	for receipt, p := range t.pending {
		if now.After(p.expires) {
			delete(t.pending, receipt)
		}
	}
}

// streamName derives a JetStream-safe stream name from a queue name.
func streamName(queue string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(queue))
}
