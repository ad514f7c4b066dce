// Package notification fans playback notifications out to subscribers.
package notification

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// DefaultMaxFailures is the number of consecutive failed deliveries after
// which a subscriber is dropped.
const DefaultMaxFailures = 3

// Stream receives notifications for one subscriber.
type Stream interface {
	Send(*Notification) error
}

// Closer is implemented by streams that want to learn they were dropped.
type Closer interface {
	Close()
}

type subscriber struct {
	id       string
	stream   Stream
	failures atomic.Int32
}

// Manager stamps notifications with a sequence number and delivers them to
// every subscriber. A subscriber that keeps failing or timing out is dropped
// and its stream closed, so one stalled client cannot pile up undelivered
// work.
type Manager struct {
	sendTimeout time.Duration
	maxFailures int32

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	sequenceNo  uint64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxFailures sets how many consecutive failed deliveries drop a subscriber.
func WithMaxFailures(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxFailures = int32(n)
		}
	}
}

// NewManager creates a manager. Each delivery is abandoned after sendTimeout.
func NewManager(sendTimeout time.Duration, opts ...ManagerOption) *Manager {
	m := &Manager{
		sendTimeout: sendTimeout,
		maxFailures: DefaultMaxFailures,
		subscribers: make(map[string]*subscriber),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe registers stream and returns its subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	id := uuid.NewString()

	m.mu.Lock()
	m.subscribers[id] = &subscriber{id: id, stream: stream}
	m.mu.Unlock()

	zlog.Debug().Msgf("notification: subscribed: id=%s", id)
	return id
}

// Unsubscribe removes a subscription. The stream is not closed.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	delete(m.subscribers, subscriptionID)
	m.mu.Unlock()

	zlog.Debug().Msgf("notification: unsubscribed: id=%s", subscriptionID)
}

// Broadcast stamps n with the next sequence number and delivers it to all
// subscribers in parallel. It returns once every delivery has finished or
// timed out.
func (m *Manager) Broadcast(n *Notification) {
	m.mu.Lock()
	m.sequenceNo++
	n.SequenceNo = m.sequenceNo
	subs := lo.Values(m.subscribers)
	m.mu.Unlock()

	var (
		wg      sync.WaitGroup
		dropped = make(chan *subscriber, len(subs))
	)
	for _, sub := range subs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !m.deliver(sub, n) {
				dropped <- sub
			}
		}()
	}
	wg.Wait()
	close(dropped)

	for sub := range dropped {
		m.drop(sub)
	}
}

// deliver sends n to sub and tracks its failure streak. Returns false once
// the streak reaches the limit.
func (m *Manager) deliver(sub *subscriber, n *Notification) bool {
	ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- sub.stream.Send(n)
	}()

	var err error
	select {
	case err = <-result:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err == nil {
		sub.failures.Store(0)
		return true
	}

	failures := sub.failures.Add(1)
	zlog.Debug().Msgf("notification: delivery failed: id=%s seq=%d failures=%d err=%v", sub.id, n.SequenceNo, failures, err)
	return failures < m.maxFailures
}

// drop removes sub if it is still registered and closes its stream.
func (m *Manager) drop(sub *subscriber) {
	m.mu.Lock()
	current, ok := m.subscribers[sub.id]
	if ok && current == sub {
		delete(m.subscribers, sub.id)
	}
	m.mu.Unlock()
	if !ok || current != sub {
		return
	}

	zlog.Warn().Msgf("notification: dropping subscriber after repeated failures: id=%s", sub.id)
	if c, ok := sub.stream.(Closer); ok {
		c.Close()
	}
}

// Send delivers n to one subscriber without stamping it.
// Unknown subscription IDs are ignored.
func (m *Manager) Send(subscriptionID string, n *Notification) error {
	m.mu.RLock()
	sub, ok := m.subscribers[subscriptionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return sub.stream.Send(n)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

// Close removes all subscriptions and closes their streams.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := lo.Values(m.subscribers)
	m.subscribers = make(map[string]*subscriber)
	m.mu.Unlock()

	for _, sub := range subs {
		if c, ok := sub.stream.(Closer); ok {
			c.Close()
		}
	}
}
