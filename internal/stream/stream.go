package stream

import (
	"context"
	"sync"
	"time"
)

// LoanEvent describes a completed borrow transition, for live dashboards.
type LoanEvent struct {
	BookID     string    `json:"book_id"`
	ISBN       string    `json:"isbn"`
	Title      string    `json:"title"`
	BorrowerID string    `json:"borrower_id"`
	DueDate    time.Time `json:"due_date"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stream fan-outs loan events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan LoanEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan LoanEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan LoanEvent {
	ch := make(chan LoanEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt LoanEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
