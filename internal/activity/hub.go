package activity

import (
	"log/slog"
	"sync"
	"time"
)

// Event types published by the loan service.
const (
	EventLoanCreated  = "loan_created"
	EventBookReturned = "book_returned"
)

// Event is a single circulation event pushed to connected dashboards.
type Event struct {
	Type     string    `json:"type"`
	LoanID   int64     `json:"loanId"`
	BookID   int64     `json:"bookId"`
	MemberID int64     `json:"memberId"`
	At       time.Time `json:"at"`
}

// Hub fans circulation events out to websocket subscribers. Publishing never
// blocks: a subscriber that cannot keep up loses events rather than stalling
// the loan service.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[chan Event]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new subscriber and returns its event channel together
// with a cancel function. The cancel function must be called exactly once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber that has buffer space left.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Debug("activity subscriber lagging, event dropped",
				slog.String("type", ev.Type),
				slog.Int64("loan_id", ev.LoanID),
			)
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
