package realtime

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultURL                  = "ws://localhost:8081/ws"
	DefaultReconnectionAttempts = 5
	DefaultReconnectionDelay    = 1000 * time.Millisecond
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 10 * time.Second
)

// Options configure the session handle. The handle never connects on its own;
// call Connect.
type Options struct {
	URL string
	// ReconnectionAttempts is the number of retries after a failed dial.
	ReconnectionAttempts int
	ReconnectionDelay    time.Duration
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration

	// Token is sent as "Authorization: Bearer <token>" on every dial.
	Token string
	// Header is merged into the handshake request.
	Header http.Header
	// Jar supplies cookies for the handshake, for cookie-authenticated deployments.
	Jar http.CookieJar

	Logger *zap.SugaredLogger
}

// DefaultOptions returns the options every client process starts from.
func DefaultOptions() Options {
	return Options{
		URL:                  DefaultURL,
		ReconnectionAttempts: DefaultReconnectionAttempts,
		ReconnectionDelay:    DefaultReconnectionDelay,
		HandshakeTimeout:     DefaultHandshakeTimeout,
		WriteTimeout:         DefaultWriteTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.URL == "" {
		o.URL = DefaultURL
	}
	if o.ReconnectionAttempts < 0 {
		o.ReconnectionAttempts = 0
	}
	if o.ReconnectionDelay <= 0 {
		o.ReconnectionDelay = DefaultReconnectionDelay
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	return o
}

// Manager owns at most one Handle for the lifetime of the process.
// All methods are safe for concurrent use.
type Manager struct {
	opts   Options
	once   sync.Once
	handle atomic.Pointer[Handle]
}

func NewManager(opts Options) *Manager {
	return &Manager{opts: opts.withDefaults()}
}

// Handle returns the session handle, creating it on first use. Every call
// returns the same pointer. The handle starts Disconnected.
func (m *Manager) Handle() *Handle {
	m.once.Do(func() {
		m.handle.Store(newHandle(m.opts))
	})
	return m.handle.Load()
}

// Connect starts connecting the handle if it exists and is idle. It does not
// create the handle and never blocks.
func (m *Manager) Connect() {
	if h := m.handle.Load(); h != nil {
		h.Connect()
	}
}

// Disconnect tears down the handle's connection if it exists and is active.
func (m *Manager) Disconnect() {
	if h := m.handle.Load(); h != nil {
		h.Disconnect()
	}
}

// State reports StateUninitialized until Handle has been called.
func (m *Manager) State() State {
	if h := m.handle.Load(); h != nil {
		return h.State()
	}
	return StateUninitialized
}
