package events

import "sync"

type Kind uint8

const (
	Created Kind = iota
	Updated
	Removed
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// Event says that the chart for a channel changed.
type Event struct {
	ChannelID string
	Kind      Kind
	Version   uint64
}

type EventHub struct {
	mu   sync.Mutex
	subs   map[int]chan *Event
	lagged map[int]bool
	next   int
}

func NewHub() *EventHub {
	return &EventHub{subs: map[int]chan *Event{}, lagged: map[int]bool{}}
}

func (h *EventHub) Subscribe() (int, <-chan *Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan *Event, 64)
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			close(c)
			delete(h.subs, id)
			delete(h.lagged, id)
		}
	}
	return id, ch, cancel
}

// Broadcast never blocks; a subscriber that isn't keeping up misses the event and is marked as lagged.
func (h *EventHub) Broadcast(event *Event) {
	h.mu.Lock()
	for id, ch := range h.subs {
		select {
		case ch <- h.copy(event):
		default:
			h.lagged[id] = true
		}
	}
	h.mu.Unlock()
}

// Lagged reports whether the subscriber has missed events since the last call, and clears the mark.
func (h *EventHub) Lagged(id int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	lagged := h.lagged[id]
	delete(h.lagged, id)
	return lagged
}

func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *EventHub) copy(e *Event) *Event {
	return &Event{e.ChannelID, e.Kind, e.Version}
}
