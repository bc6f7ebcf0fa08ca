// Package metrics exposes Prometheus collectors for the notification channel
// and the hub server. All methods are safe on a nil *Metrics so callers can
// run without instrumentation.
package metrics

import (
	"github.com/orchestra-mcp/notify/src/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector registered by New.
type Metrics struct {
	connects          prometheus.Counter
	disconnects       prometheus.Counter
	reconnectAttempts prometheus.Counter
	dialFailures      prometheus.Counter
	messages          *prometheus.CounterVec
	malformed         prometheus.Counter
	toasts            prometheus.Counter
	sends             *prometheus.CounterVec
	connected         prometheus.Gauge

	hubClients   prometheus.Gauge
	hubPublished prometheus.Counter
	hubDropped   prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_channel_connects_total",
			Help: "Successful channel connection opens",
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_channel_disconnects_total",
			Help: "Channel connections that closed or failed",
		}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_channel_reconnect_attempts_total",
			Help: "Scheduled reconnect attempts that started a dial",
		}),
		dialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_channel_dial_failures_total",
			Help: "Dials that failed before the connection opened",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_channel_messages_total",
			Help: "Well-formed inbound messages",
		}, []string{"kind"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_channel_malformed_messages_total",
			Help: "Inbound payloads that could not be decoded",
		}),
		toasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_channel_toasts_total",
			Help: "Toasts dispatched to the UI",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_channel_sends_total",
			Help: "Outbound send calls by result",
		}, []string{"result"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notify_channel_connected",
			Help: "1 while the channel connection is open",
		}),
		hubClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notify_hub_clients",
			Help: "Websocket clients registered on the hub",
		}),
		hubPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_hub_published_total",
			Help: "Messages published through the hub",
		}),
		hubDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notify_hub_dropped_total",
			Help: "Messages dropped because a client send buffer was full",
		}),
	}
	reg.MustRegister(
		m.connects, m.disconnects, m.reconnectAttempts, m.dialFailures,
		m.messages, m.malformed, m.toasts, m.sends, m.connected,
		m.hubClients, m.hubPublished, m.hubDropped,
	)
	return m
}

// Connected counts an opened connection and raises the connected gauge.
func (m *Metrics) Connected() {
	if m == nil {
		return
	}
	m.connects.Inc()
	m.connected.Set(1)
}

// Disconnected counts a lost connection and lowers the connected gauge.
func (m *Metrics) Disconnected() {
	if m == nil {
		return
	}
	m.disconnects.Inc()
	m.connected.Set(0)
}

// ReconnectAttempt counts a dial started by the reconnect timer.
func (m *Metrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

// DialFailed counts a dial that did not produce a connection.
func (m *Metrics) DialFailed() {
	if m == nil {
		return
	}
	m.dialFailures.Inc()
}

// Message counts a decoded message. Types other than notification share
// one label value to keep cardinality bounded.
func (m *Metrics) Message(typ string) {
	if m == nil {
		return
	}
	kind := "other"
	if typ == types.TypeNotification {
		kind = types.TypeNotification
	}
	m.messages.WithLabelValues(kind).Inc()
}

// Malformed counts an inbound payload that could not be decoded.
func (m *Metrics) Malformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

// Toast counts a toast handed to the sink.
func (m *Metrics) Toast() {
	if m == nil {
		return
	}
	m.toasts.Inc()
}

// Send records an outbound call as "sent", "dropped" or "failed".
func (m *Metrics) Send(result string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(result).Inc()
}

// HubClients sets the number of clients registered with the hub.
func (m *Metrics) HubClients(n int) {
	if m == nil {
		return
	}
	m.hubClients.Set(float64(n))
}

// HubPublished counts a message published to a topic.
func (m *Metrics) HubPublished() {
	if m == nil {
		return
	}
	m.hubPublished.Inc()
}

// HubDropped counts a message a client could not accept.
func (m *Metrics) HubDropped() {
	if m == nil {
		return
	}
	m.hubDropped.Inc()
}
