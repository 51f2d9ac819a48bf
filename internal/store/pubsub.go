package store

import (
	"context"
	"path"
	"sync"
)

const subscriptionBuffer = 100

// Message is one payload received from the bus
type Message struct {
	Channel string
	Payload string
}

// Subscription delivers messages until closed or its context ends.
// Slow consumers lose messages rather than block publishers.
type Subscription interface {
	Messages() <-chan *Message
	Close() error
}

// memSubscription is the in-memory counterpart of redis.PubSub
type memSubscription struct {
	channels map[string]bool
	patterns []string
	msgChan  chan *Message
	closeCh  chan struct{}
	closed   bool
	mu       sync.RWMutex
}

func newMemSubscription(channels, patterns []string) *memSubscription {
	channelMap := make(map[string]bool)
	for _, ch := range channels {
		channelMap[ch] = true
	}

	return &memSubscription{
		channels: channelMap,
		patterns: patterns,
		msgChan:  make(chan *Message, subscriptionBuffer),
		closeCh:  make(chan struct{}),
	}
}

func (m *memSubscription) Messages() <-chan *Message {
	return m.msgChan
}

func (m *memSubscription) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.closeCh)
		close(m.msgChan)
	}
	return nil
}

func (m *memSubscription) matches(channel string) bool {
	if m.channels[channel] {
		return true
	}
	for _, p := range m.patterns {
		if ok, _ := path.Match(p, channel); ok {
			return true
		}
	}
	return false
}

// sendMessage delivers without blocking; a full buffer drops the message
func (m *memSubscription) sendMessage(msg *Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed || !m.matches(msg.Channel) {
		return
	}

	select {
	case m.msgChan <- msg:
	default:
	}
}

// PubSubHub manages in-memory subscriptions
type PubSubHub struct {
	subscribers map[*memSubscription]struct{}
	mu          sync.RWMutex
}

func NewPubSubHub() *PubSubHub {
	return &PubSubHub{
		subscribers: make(map[*memSubscription]struct{}),
	}
}

// Subscribe creates a subscription for exact channel names
func (h *PubSubHub) Subscribe(ctx context.Context, channels ...string) Subscription {
	return h.add(ctx, newMemSubscription(channels, nil))
}

// PSubscribe creates a subscription for glob patterns
func (h *PubSubHub) PSubscribe(ctx context.Context, patterns ...string) Subscription {
	return h.add(ctx, newMemSubscription(nil, patterns))
}

func (h *PubSubHub) add(ctx context.Context, sub *memSubscription) *memSubscription {
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.closeCh:
		}

		h.mu.Lock()
		delete(h.subscribers, sub)
		h.mu.Unlock()
	}()

	return sub
}

// Publish sends payload to every subscription matching channel
func (h *PubSubHub) Publish(channel, payload string) {
	h.mu.RLock()
	subscribers := make([]*memSubscription, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subscribers = append(subscribers, sub)
	}
	h.mu.RUnlock()

	msg := &Message{Channel: channel, Payload: payload}
	for _, sub := range subscribers {
		sub.sendMessage(msg)
	}
}
