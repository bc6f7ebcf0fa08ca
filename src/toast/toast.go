package toast

import (
	"sync"

	"github.com/rs/zerolog"
)

// Toast is a transient notification shown to the end user.
type Toast struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Toaster surfaces toasts to a UI layer.
type Toaster interface {
	Toast(t Toast)
}

// Func adapts a plain function to a Toaster.
type Func func(Toast)

func (f Func) Toast(t Toast) { f(t) }

// Log writes each toast as a structured log line.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a toaster that logs at info level.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "toast").Logger()}
}

func (l *Log) Toast(t Toast) {
	l.logger.Info().Str("title", t.Title).Str("description", t.Description).Msg("toast")
}

// Multi fans a toast out to every wrapped toaster in order.
type Multi []Toaster

func (m Multi) Toast(t Toast) {
	for _, s := range m {
		if s != nil {
			s.Toast(t)
		}
	}
}

// Recorder keeps every toast it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Toast(t Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

// Toasts returns a copy of the recorded toasts.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]Toast, len(r.toasts))
	copy(cp, r.toasts)
	return cp
}
