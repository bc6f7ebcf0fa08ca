// Package channel keeps a live notification connection open to a websocket
// endpoint and turns inbound notification messages into toasts.
//
// A Channel owns at most one connection. When it closes, the channel waits a
// fixed delay and dials again, forever, until the owner calls Dispose.
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/orchestra-mcp/notify/config"
	"github.com/orchestra-mcp/notify/src/metrics"
	"github.com/orchestra-mcp/notify/src/toast"
	"github.com/orchestra-mcp/notify/src/transport"
	"github.com/orchestra-mcp/notify/src/types"
	"github.com/rs/zerolog"
)

var (
	// ErrDisposed is returned by Connect after Dispose.
	ErrDisposed = errors.New("channel disposed")

	// ErrAlreadyStarted is returned by a second Connect.
	ErrAlreadyStarted = errors.New("channel already started")
)

// Channel is a self-reconnecting notification connection.
type Channel struct {
	cfg       config.ChannelConfig
	toaster   toast.Toaster
	dialer    types.Dialer
	sched     Scheduler
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	listeners []func(from, to types.State)

	events  chan any
	quit    chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup

	mu          sync.RWMutex
	state       types.State
	lastMessage *types.Message
	started     bool
	disposed    bool
	endpoint    string

	// Owned by the event loop.
	conn       types.Conn
	gen        uint64
	pending    Task
	cancelDial context.CancelFunc
}

type dialResult struct {
	gen  uint64
	conn types.Conn
	err  error
}

type inbound struct {
	gen  uint64
	data []byte
}

type closed struct {
	gen uint64
	err error
}

type reconnectDue struct{}

type sendRequest struct {
	payload []byte
	result  chan error
}

// New creates an idle channel. Toasts from notification messages go to
// toaster; a nil toaster logs them instead.
func New(cfg config.ChannelConfig, toaster toast.Toaster, opts ...Option) *Channel {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = config.DefaultReconnectDelay
	}
	c := &Channel{
		cfg:     cfg,
		toaster: toaster,
		sched:   RealScheduler,
		logger:  zerolog.Nop(),
		events:  make(chan any),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		state:   types.StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "channel").Logger()
	if c.dialer == nil {
		c.dialer = transport.NewDialer(cfg.DialTimeout, cfg.WriteTimeout)
	}
	if c.toaster == nil {
		c.toaster = toast.NewLog(c.logger)
	}
	return c
}

// Connect starts the event loop and dials endpoint. An empty endpoint
// leaves the channel inert and returns nil.
func (c *Channel) Connect(endpoint string) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	if endpoint == "" {
		c.mu.Unlock()
		c.logger.Info().Msg("no endpoint configured, channel inert")
		return nil
	}
	c.started = true
	c.endpoint = endpoint
	c.logger = c.logger.With().Str("endpoint", endpoint).Logger()
	c.mu.Unlock()

	go c.run()
	return nil
}

// Send marshals v and writes it if the connection is open. While the
// channel is not connected the message is dropped and Send returns nil.
func (c *Channel) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c.mu.RLock()
	running := c.started && !c.disposed
	c.mu.RUnlock()
	if !running {
		c.metrics.Send("dropped")
		return nil
	}

	req := sendRequest{payload: payload, result: make(chan error, 1)}
	if !c.post(req) {
		c.metrics.Send("dropped")
		return nil
	}
	select {
	case err := <-req.result:
		return err
	case <-c.stopped:
		return nil
	}
}

// Dispose closes the connection, cancels any pending reconnect and waits
// for the channel's goroutines to exit. The channel cannot be reused.
func (c *Channel) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	started := c.started
	c.mu.Unlock()

	close(c.quit)
	if started {
		<-c.stopped
	}
	c.wg.Wait()
	c.setState(types.StateDisposed)
}

// State returns the current lifecycle state.
func (c *Channel) State() types.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connected reports whether the connection is open.
func (c *Channel) Connected() bool {
	return c.State() == types.StateConnected
}

// LastMessage returns the most recent well-formed inbound message, or nil.
func (c *Channel) LastMessage() *types.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastMessage == nil {
		return nil
	}
	msg := *c.lastMessage
	return &msg
}

// Snapshot returns the observable state in one read.
func (c *Channel) Snapshot() types.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := types.Snapshot{State: c.state, Connected: c.state == types.StateConnected}
	if c.lastMessage != nil {
		msg := *c.lastMessage
		s.LastMessage = &msg
	}
	return s
}

// run is the event loop. All connection state changes happen here.
func (c *Channel) run() {
	defer close(c.stopped)

	c.dial()
	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-c.quit:
			c.teardown()
			return
		}
	}
}

// post hands an event to the loop. It reports false once the loop is gone.
func (c *Channel) post(ev any) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.quit:
		return false
	}
}

func (c *Channel) handle(ev any) {
	switch ev := ev.(type) {
	case dialResult:
		c.handleDial(ev)
	case inbound:
		if ev.gen == c.gen && c.conn != nil {
			c.handleData(ev.data)
		}
	case closed:
		c.handleClosed(ev)
	case reconnectDue:
		if c.pending == nil {
			return
		}
		c.pending = nil
		c.metrics.ReconnectAttempt()
		c.logger.Info().Msg("reconnecting")
		c.dial()
	case sendRequest:
		c.handleSend(ev)
	}
}

func (c *Channel) dial() {
	c.gen++
	gen := c.gen

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.cfg.DialTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	c.cancelDial = cancel
	c.setState(types.StateConnecting)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		conn, err := c.dialer.Dial(ctx, c.endpoint)
		if !c.post(dialResult{gen: gen, conn: conn, err: err}) && conn != nil {
			conn.Close()
		}
	}()
}

func (c *Channel) handleDial(ev dialResult) {
	if ev.gen != c.gen {
		if ev.conn != nil {
			ev.conn.Close()
		}
		return
	}
	c.cancelDial = nil

	if ev.err != nil {
		c.logger.Warn().Err(ev.err).Msg("connect failed")
		c.metrics.DialFailed()
		c.scheduleReconnect()
		return
	}

	c.conn = ev.conn
	c.setState(types.StateConnected)
	c.metrics.Connected()
	c.logger.Info().Msg("connected")

	c.wg.Add(1)
	go c.readPump(ev.gen, ev.conn)
}

func (c *Channel) readPump(gen uint64, conn types.Conn) {
	defer c.wg.Done()
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.post(closed{gen: gen, err: err})
			return
		}
		if !c.post(inbound{gen: gen, data: data}) {
			return
		}
	}
}

func (c *Channel) handleClosed(ev closed) {
	if ev.gen != c.gen || c.conn == nil {
		return
	}
	c.conn.Close()
	c.conn = nil
	c.metrics.Disconnected()
	c.logger.Warn().Err(ev.err).Msg("disconnected")
	c.scheduleReconnect()
}

func (c *Channel) scheduleReconnect() {
	c.setState(types.StateDisconnected)
	if c.pending != nil {
		return
	}
	c.pending = c.sched.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.post(reconnectDue{})
	})
	c.logger.Debug().Dur("delay", c.cfg.ReconnectDelay).Msg("reconnect scheduled")
}

func (c *Channel) handleData(data []byte) {
	msg, err := decodeMessage(data)
	if err != nil {
		c.logger.Warn().Err(err).Int("bytes", len(data)).Msg("malformed message ignored")
		c.metrics.Malformed()
		return
	}

	c.mu.Lock()
	c.lastMessage = &msg
	c.mu.Unlock()
	c.metrics.Message(msg.Type)

	if msg.Type != types.TypeNotification {
		return
	}
	n := msg.Notification()
	c.toaster.Toast(toast.Toast{Title: n.Title, Description: n.Description})
	c.metrics.Toast()
}

func (c *Channel) handleSend(req sendRequest) {
	if c.conn == nil {
		c.metrics.Send("dropped")
		req.result <- nil
		return
	}
	if err := c.conn.WriteMessage(req.payload); err != nil {
		c.metrics.Send("failed")
		c.logger.Warn().Err(err).Msg("send failed")
		req.result <- err
		return
	}
	c.metrics.Send("sent")
	req.result <- nil
}

func (c *Channel) teardown() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.metrics.Disconnected()
	}
	c.logger.Info().Msg("disposed")
}

func (c *Channel) setState(s types.State) {
	c.mu.Lock()
	from := c.state
	if from == s || from == types.StateDisposed {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	for _, fn := range c.listeners {
		fn(from, s)
	}
}

// decodeMessage accepts only JSON objects.
func decodeMessage(data []byte) (types.Message, error) {
	var msg types.Message
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return msg, errors.New("payload is not a JSON object")
	}
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return msg, err
	}
	return msg, nil
}
