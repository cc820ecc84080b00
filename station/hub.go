package station

import (
	"sync"

	"github.com/railctl/z21/protocol"
)

// hub fans incoming packets out to any number of subscribers. Every
// subscriber owns a bounded queue and receives its own copy of every
// packet published after it subscribed. When a subscriber's queue is
// full the oldest packet is evicted, so a stalled consumer observes
// gaps instead of blocking the receive loop or growing memory without
// bound. Correlation is always content-filtered, never positional, so
// gaps are acceptable.
type hub struct {
	mu       sync.Mutex
	subs     map[*subscription]struct{}
	capacity int
	closed   bool
}

// subscription is one consumer's view of the packet stream.
type subscription struct {
	ch   chan protocol.Packet
	hub  *hub
	once sync.Once
}

func newHub(capacity int) *hub {
	return &hub{
		subs:     make(map[*subscription]struct{}),
		capacity: capacity,
	}
}

// subscribe registers a new consumer. The subscriber sees every packet
// published after this call returns, and nothing published before it.
func (h *hub) subscribe() *subscription {
	sub := &subscription{
		ch:  make(chan protocol.Packet, h.capacity),
		hub: h,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// publish delivers a packet to every current subscriber. Called only by
// the receive loop.
func (h *hub) publish(pkt protocol.Packet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for sub := range h.subs {
		select {
		case sub.ch <- pkt:
		default:
			// Queue full: evict the oldest packet, then retry once.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- pkt:
			default:
			}
		}
	}
}

// close ends the stream. Every subscriber's channel is closed after any
// already-queued packets are drained by the consumer.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		sub.closeChan()
		delete(h.subs, sub)
	}
}

// cancel removes the subscription from the hub and closes its channel.
// Safe to call more than once and concurrently with publish.
func (s *subscription) cancel() {
	s.hub.mu.Lock()
	if _, ok := s.hub.subs[s]; ok {
		delete(s.hub.subs, s)
		s.closeChan()
	}
	s.hub.mu.Unlock()
}

func (s *subscription) closeChan() {
	s.once.Do(func() { close(s.ch) })
}
