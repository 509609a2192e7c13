package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// State is the connection lifecycle of a Channel.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Event names a Channel emits to local handlers.
const (
	EventNotification = "notification"
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventError        = "error"
)

// lifecycleEvents are cleared by Disconnect; notification handlers survive.
var lifecycleEvents = []string{EventConnected, EventDisconnected, EventError}

// Message is what handlers receive. Notification is set for
// EventNotification, Err for EventError.
type Message struct {
	Name         string
	Notification *Event
	Err          error
}

// HandlerFunc consumes channel messages. Handlers run on the channel's receive
// goroutine and must not call Disconnect synchronously.
type HandlerFunc func(Message)

// HandlerRef identifies one registration made with On.
type HandlerRef uint64

// Observer is notified about lifecycle changes and deliveries.
type Observer interface {
	StateChanged(from, to State)
	Delivered(kind Kind)
}

// ChannelOptions tunes a Channel.
type ChannelOptions struct {
	Logger     *slog.Logger
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Observer   Observer
}

type registration struct {
	ref HandlerRef
	fn  HandlerFunc
}

// Channel maintains at most one live transport connection and fans inbound
// events out to registered handlers in arrival order.
type Channel struct {
	transport  Transport
	logger     *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
	observer   Observer

	mu       sync.Mutex
	state    State
	conn     Conn
	cancel   context.CancelFunc
	done     chan struct{}
	handlers map[string][]registration
	nextRef  HandlerRef
}

// NewChannel constructs a disconnected Channel over transport.
func NewChannel(transport Transport, opts ChannelOptions) *Channel {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 30 * time.Second
	}
	return &Channel{
		transport:  transport,
		logger:     opts.Logger,
		minBackoff: opts.MinBackoff,
		maxBackoff: opts.MaxBackoff,
		observer:   opts.Observer,
		handlers:   make(map[string][]registration),
	}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// On registers fn for name. Handlers for the same name run in registration
// order.
func (c *Channel) On(name string, fn HandlerFunc) HandlerRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextRef++
	ref := c.nextRef
	c.handlers[name] = append(c.handlers[name], registration{ref: ref, fn: fn})
	return ref
}

// Off removes exactly the registration identified by ref.
func (c *Channel) Off(name string, ref HandlerRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	regs := c.handlers[name]
	for i, reg := range regs {
		if reg.ref == ref {
			c.handlers[name] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Connect opens the connection with token as credential. It is a no-op
// unless the channel is disconnected. A rejected credential fails closed and
// is returned; other failures are reported through EventError and retried
// in the background.
func (c *Channel) Connect(ctx context.Context, token string) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	first := make(chan error, 1)
	go c.run(runCtx, token, done, first)

	select {
	case err := <-first:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect tears the connection down immediately, emits EventDisconnected
// and clears lifecycle handlers. Notification handlers stay registered so a
// later Connect resumes delivery to them.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	if cancel == nil {
		c.mu.Unlock()
		return
	}
	c.cancel = nil
	c.done = nil
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-done

	c.emit(Message{Name: EventDisconnected})
	c.mu.Lock()
	for _, name := range lifecycleEvents {
		delete(c.handlers, name)
	}
	c.mu.Unlock()
}

// Send forwards an outbound frame on the live connection.
func (c *Channel) Send(ctx context.Context, f Frame) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if conn == nil || state != StateConnected {
		return ErrChannelUnavailable
	}
	return conn.Send(ctx, f)
}

func (c *Channel) run(ctx context.Context, token string, done chan struct{}, first chan<- error) {
	defer close(done)
	report := func(err error) {
		if first != nil {
			first <- err
			first = nil
		}
	}
	defer report(nil)

	conn, err := c.transport.Dial(ctx, token)
	if err != nil {
		c.emit(Message{Name: EventError, Err: err})
		if errors.Is(err, ErrAuthRejected) || ctx.Err() != nil {
			c.finish(done)
			report(err)
			return
		}
		report(nil)
		if !c.setState(done, StateReconnecting) {
			return
		}
		if conn, err = c.reconnect(ctx, token); err != nil {
			c.giveUp(ctx, done, err)
			return
		}
	}

	for {
		if !c.attach(done, conn) {
			_ = conn.Close()
			return
		}
		report(nil)
		c.emit(Message{Name: EventConnected})
		err := c.pump(ctx, conn)
		c.detach(done, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("notify channel lost", slog.Any("error", err))
		c.emit(Message{Name: EventError, Err: err})
		c.emit(Message{Name: EventDisconnected})
		if errors.Is(err, ErrAuthRejected) {
			c.finish(done)
			return
		}
		if !c.setState(done, StateReconnecting) {
			return
		}
		if conn, err = c.reconnect(ctx, token); err != nil {
			c.giveUp(ctx, done, err)
			return
		}
	}
}

// pump delivers frames until the connection fails.
func (c *Channel) pump(ctx context.Context, conn Conn) error {
	for {
		f, err := conn.Recv(ctx)
		if err != nil {
			return err
		}
		if f.Type != FrameNotification {
			c.logger.Debug("notify ignore frame", slog.String("type", f.Type))
			continue
		}
		var ev Event
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			c.logger.Warn("notify decode notification", slog.Any("error", err))
			continue
		}
		if err := ev.Validate(); err != nil {
			c.logger.Warn("notify invalid notification", slog.Any("error", err))
			continue
		}
		c.emit(Message{Name: EventNotification, Notification: &ev})
		if c.observer != nil {
			c.observer.Delivered(ev.Kind)
		}
	}
}

func (c *Channel) reconnect(ctx context.Context, token string) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.minBackoff):
	}
	b := retry.NewExponential(c.minBackoff)
	b = retry.WithCappedDuration(c.maxBackoff, b)
	b = retry.WithJitterPercent(20, b)

	var conn Conn
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		cn, err := c.transport.Dial(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.emit(Message{Name: EventError, Err: err})
			if errors.Is(err, ErrAuthRejected) {
				return err
			}
			return retry.RetryableError(err)
		}
		conn = cn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Channel) giveUp(ctx context.Context, done chan struct{}, err error) {
	if ctx.Err() != nil {
		return
	}
	c.logger.Warn("notify channel closed", slog.Any("error", err))
	c.finish(done)
	c.emit(Message{Name: EventDisconnected})
}

// attach records conn as live for the run identified by done.
func (c *Channel) attach(done chan struct{}, conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != done {
		return false
	}
	c.conn = conn
	c.setStateLocked(StateConnected)
	return true
}

func (c *Channel) detach(done chan struct{}, conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == done && c.conn == conn {
		c.conn = nil
	}
}

func (c *Channel) setState(done chan struct{}, s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != done {
		return false
	}
	c.setStateLocked(s)
	return true
}

// finish returns the channel to disconnected if the run is still current.
func (c *Channel) finish(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != done {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = nil
	c.done = nil
	c.conn = nil
	c.setStateLocked(StateDisconnected)
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	prev := c.state
	c.state = s
	if c.observer != nil {
		c.observer.StateChanged(prev, s)
	}
}

func (c *Channel) emit(msg Message) {
	c.mu.Lock()
	regs := make([]registration, len(c.handlers[msg.Name]))
	copy(regs, c.handlers[msg.Name])
	c.mu.Unlock()
	for _, reg := range regs {
		reg.fn(msg)
	}
}
