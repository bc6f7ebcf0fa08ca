package toast

import (
	"sync"

	"github.com/rs/zerolog"
)

// Queue delivers toasts to a sink from its own goroutine so a slow UI
// cannot stall the caller. When the buffer is full the toast is dropped.
type Queue struct {
	sink   Toaster
	ch     chan Toast
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewQueue starts a queue with room for size pending toasts.
func NewQueue(sink Toaster, size int, logger zerolog.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	q := &Queue{
		sink:   sink,
		ch:     make(chan Toast, size),
		logger: logger.With().Str("component", "toast-queue").Logger(),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Toast enqueues t without blocking. It is dropped when the queue is full
// or closed.
func (q *Queue) Toast(t Toast) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- t:
	default:
		q.logger.Warn().Str("title", t.Title).Msg("toast queue full, dropping")
	}
}

// Close delivers what is already queued and stops the worker.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for t := range q.ch {
		q.sink.Toast(t)
	}
}
