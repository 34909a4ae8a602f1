package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultBuffer is the subscriber channel capacity when none is given.
const defaultBuffer = 16

// Hub fans events out to all current subscribers. Publish never blocks:
// when a subscriber's buffer is full that subscriber misses the event.
type Hub struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewHub creates a hub. A nil logger falls back to slog.Default().
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[int]chan Event),
	}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel func. The subscriber sees only events published after this call.
// Cancel is idempotent and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber whose buffer has room.
// Missing ID and timestamp fields are filled in.
func (h *Hub) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("Subscriber buffer full, dropping event",
				"type", ev.Type,
				"slug", ev.Slug)
		}
	}
}

// Close unsubscribes everyone and closes their channels. Publishing after
// Close is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
