package service

import (
	"log/slog"
	"sync"

	"github.com/raphaelgruber/altron-go/internal/models"
)

// EventType names a thread change.
type EventType string

const (
	EventMessage EventType = "message"
	EventRenamed EventType = "renamed"
	EventDeleted EventType = "deleted"
)

// ThreadEvent is published to subscribers of a thread.
type ThreadEvent struct {
	Type     EventType       `json:"type"`
	ThreadID string          `json:"threadId"`
	Title    string          `json:"title,omitempty"`
	Message  *models.Message `json:"message,omitempty"`
}

const subscriberBuffer = 16

// hub fans thread events out to subscribers. A subscriber that falls
// behind loses events instead of blocking the publisher.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[chan ThreadEvent]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[chan ThreadEvent]struct{})}
}

func (h *hub) subscribe(threadID string) (<-chan ThreadEvent, func()) {
	ch := make(chan ThreadEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[threadID] == nil {
		h.subs[threadID] = make(map[chan ThreadEvent]struct{})
	}
	h.subs[threadID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[threadID]; ok {
				if _, ok := set[ch]; ok {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(h.subs, threadID)
				}
			}
		})
	}
	return ch, cancel
}

func (h *hub) publish(ev ThreadEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[ev.ThreadID] {
		select {
		case ch <- ev:
		default:
			slog.Warn("dropping thread event for slow subscriber", "thread_id", ev.ThreadID, "type", ev.Type)
		}
	}
}

// closeThread ends every subscription to threadID.
func (h *hub) closeThread(threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[threadID] {
		close(ch)
	}
	delete(h.subs, threadID)
}

func (h *hub) subscribers(threadID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[threadID])
}
