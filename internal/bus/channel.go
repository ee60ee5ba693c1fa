// Package bus provides the event transports carrying Kestrel's dispatch
// pipeline: requests in, decisions and alerts out, rule reloads to the
// workers.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// ChannelBus implements EventBus on Go channels, the Community tier
// transport. Delivery is per-process and at-most-once: a subscriber whose
// buffer is full loses the message.
type ChannelBus struct {
	mu         sync.RWMutex
	bufferSize int
	subs       map[string]map[string]*channelSubscription
	closed     bool
}

type channelSubscription struct {
	bus     *ChannelBus
	id      string
	key     string
	topic   string
	handler domain.MessageHandler
	msgCh   chan *domain.Message
	ctx     context.Context
	cancel  context.CancelFunc
	dropped atomic.Int64
}

// NewChannelBus creates a channel-based event bus.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufferSize: bufferSize,
		subs:       make(map[string]map[string]*channelSubscription),
	}
}

// Publish fans a message out to every subscriber of the tenant's topic
// without blocking. A dropped dispatch request is a lost decision, so
// drops are logged with a running count per subscriber.
func (b *ChannelBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	targets := make([]*channelSubscription, 0, len(b.subs[subKey(tenantID, topic)]))
	for _, sub := range b.subs[subKey(tenantID, topic)] {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	msg := newMessage(tenantID, topic, payload)

	for _, sub := range targets {
		select {
		case sub.msgCh <- msg:
		default:
			total := sub.dropped.Add(1)
			slog.Warn("subscriber buffer full, message dropped",
				"tenant_id", tenantID,
				"topic", topic,
				"dropped_total", total,
			)
		}
	}

	return nil
}

// Subscribe registers a handler for a tenant's topic and starts its
// delivery goroutine.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)
	key := subKey(tenantID, topic)

	sub := &channelSubscription{
		bus:     b,
		id:      uuid.New().String(),
		key:     key,
		topic:   topic,
		handler: handler,
		msgCh:   make(chan *domain.Message, b.bufferSize),
		ctx:     subCtx,
		cancel:  cancel,
	}

	if b.subs[key] == nil {
		b.subs[key] = make(map[string]*channelSubscription)
	}
	b.subs[key][sub.id] = sub

	go sub.deliver()

	return sub, nil
}

// deliver pumps messages into the handler until the subscription is
// cancelled or its channel is closed.
func (s *channelSubscription) deliver() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.msgCh:
			if msg == nil {
				return
			}
			_ = s.handler(s.ctx, msg)
		}
	}
}

// Request implements request-reply over a throwaway reply topic.
func (b *ChannelBus) Request(ctx context.Context, tenantID string, topic string, payload []byte) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	replyCh := make(chan []byte, 1)
	replyTopic := topic + ".reply." + uuid.New().String()

	sub, err := b.Subscribe(ctx, tenantID, replyTopic, func(ctx context.Context, msg *domain.Message) error {
		select {
		case replyCh <- msg.Payload:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer sub.Unsubscribe()

	if err := b.Publish(ctx, tenantID, topic, payload); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("request timeout")
	}
}

// Ping checks bus health.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Close cancels every subscription and rejects further operations.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, byID := range b.subs {
		for _, sub := range byID {
			sub.cancel()
			close(sub.msgCh)
		}
	}
	b.subs = make(map[string]map[string]*channelSubscription)

	return nil
}

// remove detaches a subscription so publishes stop targeting it.
func (b *ChannelBus) remove(key, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if byID := b.subs[key]; byID != nil {
		delete(byID, id)
		if len(byID) == 0 {
			delete(b.subs, key)
		}
	}
}

func subKey(tenantID, topic string) string {
	return tenantID + ":" + topic
}

// Unsubscribe stops delivery and detaches from the bus.
func (s *channelSubscription) Unsubscribe() error {
	s.cancel()
	s.bus.remove(s.key, s.id)
	return nil
}

// Topic returns the subscribed topic.
func (s *channelSubscription) Topic() string {
	return s.topic
}
