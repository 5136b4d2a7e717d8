package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/csssit/club-api/pkg/messaging"
	"github.com/csssit/club-api/pkg/metrics"
)

// subscriber is a member of a broadcast group. The hub never blocks on a
// subscriber: Send must be non-blocking and report whether the message was
// accepted.
type subscriber interface {
	Send(payload []byte) bool
}

// Hub is the in-process broadcast router. Groups are logical addresses keyed
// by recipient identity; publishing to a group reaches every connection
// currently subscribed to it and no one else. Join, Leave and Publish are
// safe to call concurrently and independently.
type Hub struct {
	mu      sync.RWMutex
	groups  map[string]map[subscriber]struct{}
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewHub(logger zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		groups:  make(map[string]map[subscriber]struct{}),
		logger:  logger,
		metrics: m,
	}
}

var _ messaging.Broker = (*Hub)(nil)

func (h *Hub) Join(group string, sub subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		members = make(map[subscriber]struct{})
		h.groups[group] = members
	}
	members[sub] = struct{}{}
}

func (h *Hub) Leave(group string, sub subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// Publish delivers a message to every current member of a group, at most
// once each. A group with no members is not an error; there is simply no one
// to deliver to. Slow members have the message dropped rather than stalling
// the rest of the group.
func (h *Hub) Publish(_ context.Context, group string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	h.mu.RLock()
	members := make([]subscriber, 0, len(h.groups[group]))
	for sub := range h.groups[group] {
		members = append(members, sub)
	}
	h.mu.RUnlock()

	for _, sub := range members {
		if sub.Send(payload) {
			h.metrics.PublishesTotal.WithLabelValues(metrics.PublishDelivered).Inc()
		} else {
			h.metrics.PublishesTotal.WithLabelValues(metrics.PublishDropped).Inc()
			h.metrics.MessagesDropped.Inc()
			h.logger.Warn().Str("group", group).Msg("dropped message to slow subscriber")
		}
	}

	return nil
}

// Subscribe satisfies messaging.Broker for in-process consumers; live
// connections use Join/Leave instead.
func (h *Hub) Subscribe(ctx context.Context, group string) (<-chan []byte, error) {
	sub := newChannelSubscriber(100)
	h.Join(group, sub)

	go func() {
		<-ctx.Done()
		h.Leave(group, sub)
		// A Publish may still hold a membership snapshot taken before the
		// Leave; the subscriber must turn those late sends into drops
		// before its channel can be closed.
		sub.shutdown()
	}()

	return sub.ch, nil
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.groups = make(map[string]map[subscriber]struct{})
	return nil
}

// GroupSize reports current membership, for tests and the health endpoint.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// channelSubscriber adapts a channel to the subscriber contract. Send and
// shutdown race by design: a Publish holding a pre-Leave membership snapshot
// may fire after the subscriber is gone, and that late send must degrade to
// a drop, never a panic on a closed channel.
type channelSubscriber struct {
	ch     chan []byte
	mu     sync.Mutex
	closed bool
}

func newChannelSubscriber(buffer int) *channelSubscriber {
	return &channelSubscriber{ch: make(chan []byte, buffer)}
}

func (c *channelSubscriber) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.ch <- payload:
		return true
	default:
		return false
	}
}

func (c *channelSubscriber) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
