package channel

import (
	"github.com/orchestra-mcp/notify/src/metrics"
	"github.com/orchestra-mcp/notify/src/types"
	"github.com/rs/zerolog"
)

// Option customises a Channel.
type Option func(*Channel)

// WithDialer replaces the websocket dialer.
func WithDialer(d types.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// WithScheduler replaces the clock used for reconnect delays.
func WithScheduler(s Scheduler) Option {
	return func(c *Channel) { c.sched = s }
}

// WithLogger sets the parent logger. The channel adds its own component field.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Channel) { c.logger = logger }
}

// WithMetrics records channel activity on m. A nil m disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Channel) { c.metrics = m }
}

// WithStateListener registers fn for every state transition. Listeners run
// on the channel's event loop and must not call Dispose.
func WithStateListener(fn func(from, to types.State)) Option {
	return func(c *Channel) { c.listeners = append(c.listeners, fn) }
}
