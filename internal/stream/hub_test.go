package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optionDesk/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// chanFeed hands out one channel the test writes to.
type chanFeed struct {
	ch chan domain.Quote
}

func (f *chanFeed) Subscribe(int) (<-chan domain.Quote, func()) {
	return f.ch, func() {}
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_FiltersBySymbol(t *testing.T) {
	feed := &chanFeed{ch: make(chan domain.Quote, 8)}
	hub := NewHub(feed, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("symbol"))
	}))
	defer srv.Close()

	btcOnly := dial(t, srv, "?symbol=BTC/USD")
	all := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 5*time.Millisecond)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	feed.ch <- domain.Quote{Symbol: "ETH/USD", Price: 3150.25, Time: now}
	feed.ch <- domain.Quote{Symbol: "BTC/USD", Price: 84421.44, Time: now}

	var q domain.Quote
	btcOnly.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, btcOnly.ReadJSON(&q))
	assert.Equal(t, "BTC/USD", q.Symbol)
	assert.Equal(t, 84421.44, q.Price)

	all.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, all.ReadJSON(&q))
	assert.Equal(t, "ETH/USD", q.Symbol)
	require.NoError(t, all.ReadJSON(&q))
	assert.Equal(t, "BTC/USD", q.Symbol)
}

func TestHub_ClientDisconnectIsRemoved(t *testing.T) {
	feed := &chanFeed{ch: make(chan domain.Quote)}
	hub := NewHub(feed, nopLogger{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "")
	}))
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_RunClosesClientsOnCancel(t *testing.T) {
	feed := &chanFeed{ch: make(chan domain.Quote)}
	hub := NewHub(feed, nopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "")
	}))
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 0, hub.Clients())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
