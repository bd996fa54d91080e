// Package storesocket keeps an optional websocket open to the store and
// refreshes the order list whenever the store pushes a frame.
package storesocket

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
)

const (
	Path               = "/wp-json/wc/v3/socket"
	DefaultMaxAttempts = 5
	DefaultDelay       = 5 * time.Second
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateFailed       State = "failed"
)

var ErrAlreadyConnected = errors.New("store socket already connected")

type StoreSource interface {
	Store(ctx context.Context) (settings.Store, error)
}

type Invalidator interface{ Invalidate() }

type Status struct {
	State     State     `json:"state"`
	URL       string    `json:"url,omitempty"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
	Since     time.Time `json:"since"`
	Frames    int64     `json:"frames"`
}

// Manager owns at most one connection at a time.
type Manager struct {
	src StoreSource
	inv Invalidator
	log *slog.Logger

	MaxAttempts int
	Delay       time.Duration
	Dialer      *websocket.Dialer

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	conn   *websocket.Conn
	done   chan struct{}
}

func NewManager(src StoreSource, inv Invalidator, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		src:         src,
		inv:         inv,
		log:         log,
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
		Dialer:      websocket.DefaultDialer,
		status:      Status{State: StateDisconnected, Since: time.Now()},
	}
}

// SocketURL maps the store URL onto the socket endpoint (http→ws, https→wss).
func SocketURL(s settings.Store) (string, error) {
	u, err := url.Parse(s.BaseURL())
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.New("store url must be http or https")
	}
	u.Path = strings.TrimRight(u.Path, "/") + Path
	return u.String(), nil
}

// Connect resolves the store URL and starts the connection loop in the
// background. The loop outlives ctx; stop it with Disconnect.
func (m *Manager) Connect(ctx context.Context) error {
	s, err := m.src.Store(ctx)
	if err != nil {
		return err
	}
	target, err := SocketURL(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return ErrAlreadyConnected
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.done = make(chan struct{})
	m.setLocked(StateConnecting, nil)
	m.status.URL = target
	m.status.Attempts = 0
	m.status.Frames = 0

	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(s.ConsumerKey+":"+s.ConsumerSecret)))

	go m.run(runCtx, target, header, m.done)
	return nil
}

// Disconnect stops the loop and waits for it to exit.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel, conn, done := m.cancel, m.conn, m.done
	if cancel == nil {
		m.setLocked(StateDisconnected, nil)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-done

	m.mu.Lock()
	m.cancel, m.conn, m.done = nil, nil, nil
	m.setLocked(StateDisconnected, nil)
	m.mu.Unlock()
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) run(ctx context.Context, target string, header http.Header, done chan struct{}) {
	defer close(done)
	failures := 0
	for {
		conn, _, err := m.Dialer.DialContext(ctx, target, header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			m.mu.Lock()
			m.status.Attempts = failures
			if failures > m.MaxAttempts {
				m.setLocked(StateFailed, err)
				cancel := m.cancel
				m.cancel, m.done = nil, nil
				m.mu.Unlock()
				if cancel != nil {
					cancel()
				}
				m.log.Error("store socket gave up", "url", target, "attempts", failures-1, "error", err)
				return
			}
			m.setLocked(StateConnecting, err)
			m.mu.Unlock()
			m.log.Warn("store socket dial failed", "url", target, "attempt", failures, "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(m.Delay):
			}
			continue
		}

		failures = 0
		m.mu.Lock()
		m.conn = conn
		m.status.Attempts = 0
		m.setLocked(StateConnected, nil)
		m.mu.Unlock()
		m.log.Info("store socket connected", "url", target)

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err = m.read(conn)
		stop()
		_ = conn.Close()

		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		m.log.Warn("store socket dropped", "url", target, "error", err)
		m.mu.Lock()
		m.setLocked(StateConnecting, err)
		m.mu.Unlock()
	}
}

func (m *Manager) read(conn *websocket.Conn) error {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return err
		}
		m.mu.Lock()
		m.status.Frames++
		m.mu.Unlock()
		m.inv.Invalidate()
	}
}

func (m *Manager) setLocked(st State, err error) {
	if m.status.State != st {
		m.status.Since = time.Now()
	}
	m.status.State = st
	if err != nil {
		m.status.LastError = err.Error()
	} else if st == StateConnected || st == StateDisconnected {
		m.status.LastError = ""
	}
}
