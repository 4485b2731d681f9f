package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("realtime: not connected")

// Handle is the single outbound chat connection of a process.
type Handle struct {
	opts   Options
	dialer *websocket.Dialer
	header http.Header
	logger *zap.SugaredLogger

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	cancel context.CancelFunc
	// gen changes on every Connect and Disconnect so a superseded connection
	// cycle cannot touch the current state.
	gen uint64

	writeMu sync.Mutex

	obsMu     sync.RWMutex
	observers map[uint64]func(Event)
	nextObsID uint64

	// State events are queued while mu is held, so the queue order is the
	// transition order. One goroutine at a time drains it.
	qMu      sync.Mutex
	queue    []Event
	draining bool
}

func newHandle(opts Options) *Handle {
	header := http.Header{}
	for k, v := range opts.Header {
		header[k] = append([]string(nil), v...)
	}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	return &Handle{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			Jar:              opts.Jar,
		},
		header:    header,
		logger:    opts.Logger.With("url", opts.URL),
		state:     StateDisconnected,
		observers: make(map[uint64]func(Event)),
	}
}

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Subscribe registers fn for every event until the returned func is called.
// fn runs on the handle's goroutines and must not block.
func (h *Handle) Subscribe(fn func(Event)) (unsubscribe func()) {
	h.obsMu.Lock()
	id := h.nextObsID
	h.nextObsID++
	h.observers[id] = fn
	h.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.obsMu.Lock()
			delete(h.observers, id)
			h.obsMu.Unlock()
		})
	}
}

// Connect starts a connection cycle unless one is already connecting or connected.
func (h *Handle) Connect() {
	h.mu.Lock()
	if h.state == StateConnecting || h.state == StateConnected {
		h.mu.Unlock()
		return
	}
	h.gen++
	gen := h.gen
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.setStateLocked(StateConnecting)
	h.mu.Unlock()

	h.drain()
	go h.run(ctx, gen)
}

// Disconnect closes the connection or aborts an in-flight dial. No-op when idle.
func (h *Handle) Disconnect() {
	h.mu.Lock()
	if h.state != StateConnecting && h.state != StateConnected {
		h.mu.Unlock()
		return
	}
	h.gen++
	cancel, conn := h.cancel, h.conn
	h.cancel, h.conn = nil, nil
	h.setStateLocked(StateDisconnected)
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}

	h.logger.Infow("realtime session disconnected")
	h.drain()
}

// Send writes one frame. Returns ErrNotConnected unless the handle is connected.
func (h *Handle) Send(env Envelope) error {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("realtime: write frame: %w", err)
	}
	return nil
}

// run owns one connection cycle: dial within the retry budget, read until
// the connection drops, then start over with a fresh budget.
func (h *Handle) run(ctx context.Context, gen uint64) {
	for {
		conn, err := h.dial(ctx)
		if err != nil {
			if ctx.Err() == nil {
				h.logger.Warnw("realtime reconnection budget exhausted",
					"attempts", h.opts.ReconnectionAttempts+1,
					"error", err,
				)
				h.giveUp(gen)
			}
			return
		}

		if !h.attach(gen, conn) {
			_ = conn.Close()
			return
		}
		h.logger.Infow("realtime session connected")

		readErr := h.readLoop(conn)
		if !h.detach(gen) {
			return
		}
		h.logger.Warnw("realtime connection lost, reconnecting", "error", readErr)
		h.emit(Event{Type: EventError, Err: &TransportError{Err: readErr}})
	}
}

func (h *Handle) dial(ctx context.Context) (*websocket.Conn, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (*websocket.Conn, error) {
		attempt++
		conn, resp, err := h.dialer.DialContext(ctx, h.opts.URL, h.header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			if resp != nil {
				err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
			}
			h.logger.Debugw("realtime dial failed", "attempt", attempt, "error", err)
			h.emit(Event{Type: EventError, Err: &TransportError{Attempt: attempt, Err: err}})
			return nil, err
		}
		return conn, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(h.opts.ReconnectionDelay)),
		backoff.WithMaxTries(uint(h.opts.ReconnectionAttempts+1)),
		backoff.WithMaxElapsedTime(0),
	)
}

func (h *Handle) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.logger.Warnw("dropping malformed realtime frame", "error", err)
			continue
		}
		h.emit(Event{Type: EventMessage, Message: &env})
	}
}

func (h *Handle) attach(gen uint64, conn *websocket.Conn) bool {
	h.mu.Lock()
	if h.gen != gen {
		h.mu.Unlock()
		return false
	}
	h.conn = conn
	h.setStateLocked(StateConnected)
	h.mu.Unlock()

	h.drain()
	return true
}

// detach moves a dropped connection back to Connecting. It reports false when
// Disconnect already took over.
func (h *Handle) detach(gen uint64) bool {
	h.mu.Lock()
	if h.gen != gen {
		h.mu.Unlock()
		return false
	}
	conn := h.conn
	h.conn = nil
	h.setStateLocked(StateConnecting)
	h.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	h.drain()
	return true
}

func (h *Handle) giveUp(gen uint64) {
	h.mu.Lock()
	if h.gen != gen {
		h.mu.Unlock()
		return
	}
	cancel := h.cancel
	h.cancel = nil
	h.setStateLocked(StateDisconnected)
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	h.drain()
}

// setStateLocked records a transition and queues its event. Callers hold mu
// and call drain after releasing it.
func (h *Handle) setStateLocked(to State) {
	from := h.state
	if from == to {
		return
	}
	h.state = to
	h.enqueue(Event{Type: EventStateChange, From: from, To: to})
}

func (h *Handle) emit(ev Event) {
	h.enqueue(ev)
	h.drain()
}

func (h *Handle) enqueue(ev Event) {
	h.qMu.Lock()
	h.queue = append(h.queue, ev)
	h.qMu.Unlock()
}

// drain delivers queued events in order. When another goroutine is already
// draining it picks up whatever this caller queued.
func (h *Handle) drain() {
	h.qMu.Lock()
	if h.draining {
		h.qMu.Unlock()
		return
	}
	h.draining = true
	for len(h.queue) > 0 {
		ev := h.queue[0]
		h.queue[0] = Event{}
		h.queue = h.queue[1:]
		h.qMu.Unlock()

		h.deliver(ev)

		h.qMu.Lock()
	}
	h.draining = false
	h.qMu.Unlock()
}

func (h *Handle) deliver(ev Event) {
	h.obsMu.RLock()
	fns := make([]func(Event), 0, len(h.observers))
	for _, fn := range h.observers {
		fns = append(fns, fn)
	}
	h.obsMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
