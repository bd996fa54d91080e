package storesocket

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
)

type fixedStore struct{ s settings.Store }

func (f fixedStore) Store(context.Context) (settings.Store, error) { return f.s, nil }

type counter struct{ n atomic.Int64 }

func (c *counter) Invalidate() { c.n.Add(1) }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSocketURL(t *testing.T) {
	got, err := SocketURL(settings.Store{StoreURL: "https://shop.example.pl/"})
	require.NoError(t, err)
	assert.Equal(t, "wss://shop.example.pl/wp-json/wc/v3/socket", got)

	got, err = SocketURL(settings.Store{StoreURL: "http://localhost:8080/sklep"})
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/sklep/wp-json/wc/v3/socket", got)

	_, err = SocketURL(settings.Store{StoreURL: "ftp://x"})
	assert.Error(t, err)
}

func TestManager_FramesInvalidate(t *testing.T) {
	var auth atomic.Value
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != Path {
			http.NotFound(w, r)
			return
		}
		user, _, _ := r.BasicAuth()
		auth.Store(user)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"order.updated"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"order.created"}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	inv := &counter{}
	m := NewManager(fixedStore{settings.Store{StoreURL: srv.URL, ConsumerKey: "ck", ConsumerSecret: "cs"}}, inv, quiet())
	require.NoError(t, m.Connect(context.Background()))
	assert.ErrorIs(t, m.Connect(context.Background()), ErrAlreadyConnected)

	require.Eventually(t, func() bool { return inv.n.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	st := m.Status()
	assert.Equal(t, StateConnected, st.State)
	assert.Equal(t, int64(2), st.Frames)
	assert.Equal(t, "ck", auth.Load())

	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.Status().State)
}

func TestManager_GivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewManager(fixedStore{settings.Store{StoreURL: srv.URL, ConsumerKey: "ck", ConsumerSecret: "cs"}}, &counter{}, quiet())
	m.MaxAttempts = 2
	m.Delay = time.Millisecond
	require.NoError(t, m.Connect(context.Background()))

	require.Eventually(t, func() bool { return m.Status().State == StateFailed }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(3), hits.Load())
	assert.NotEmpty(t, m.Status().LastError)

	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.Status().State)
}
