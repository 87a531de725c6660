package feed

import (
	"log/slog"
	"sync"
)

const subscriptionBuffer = 256

// Hub is the in-process change-feed broker. Publishing assigns a global
// commit sequence under one lock and delivers to matching subscriptions
// while still holding it, so each subscription observes commit order.
type Hub struct {
	mu     sync.Mutex
	seq    uint64
	origin string
	subs   map[*subscription]struct{}
	logger *slog.Logger
}

func NewHub(origin string, logger *slog.Logger) *Hub {
	return &Hub{
		origin: origin,
		subs:   make(map[*subscription]struct{}),
		logger: logger,
	}
}

// Origin identifies this hub instance in published events.
func (h *Hub) Origin() string {
	return h.origin
}

// Publish stamps and fans out the event. Delivery to a subscription is
// non-blocking: a subscriber that falls subscriptionBuffer events behind
// is closed to keep backpressure bounded, mirroring how a slow websocket
// client would be dropped.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	h.seq++
	ev.Seq = h.seq
	if ev.Origin == "" {
		ev.Origin = h.origin
	}
	for sub := range h.subs {
		if !sub.wants(ev) {
			continue
		}
		if !sub.deliver(ev, h.logger) {
			delete(h.subs, sub)
		}
	}
	h.mu.Unlock()
}

// Subscribe opens an ordered stream for the table. types nil means all
// event types.
func (h *Hub) Subscribe(table Table, types []EventType, filter Filter) Subscription {
	sub := &subscription{
		hub:    h,
		table:  table,
		filter: filter,
		ch:     make(chan Event, subscriptionBuffer),
	}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Close tears down every open subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[*subscription]struct{})
	h.mu.Unlock()
	for _, sub := range subs {
		sub.shutdown()
	}
}

func (h *Hub) remove(sub *subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

type subscription struct {
	hub    *Hub
	table  Table
	types  map[EventType]struct{}
	filter Filter

	mu     sync.Mutex
	closed bool
	ch     chan Event
}

func (s *subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription. It is synchronous: once it returns,
// nothing is delivered anymore and the events channel is closed.
func (s *subscription) Close() {
	s.hub.remove(s)
	s.shutdown()
}

func (s *subscription) shutdown() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
}

func (s *subscription) wants(ev Event) bool {
	if ev.Table != s.table {
		return false
	}
	if s.types != nil {
		if _, ok := s.types[ev.Type]; !ok {
			return false
		}
	}
	return s.filter.matches(ev)
}

// deliver reports whether the subscription is still attached.
func (s *subscription) deliver(ev Event, logger *slog.Logger) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	select {
	case s.ch <- ev:
		s.mu.Unlock()
		return true
	default:
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		if logger != nil {
			logger.Warn("feed subscription dropped, buffer exceeded", "table", s.table)
		}
		return false
	}
}

var _ Source = (*Hub)(nil)
var _ Publisher = (*Hub)(nil)
