package rhclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"rh-portal-be/internal/auth"
	"rh-portal-be/internal/models"
	"rh-portal-be/internal/realtime"
	"rh-portal-be/internal/rhclient"
	"rh-portal-be/internal/ws"
)

type allowAll struct{}

func (allowAll) CanJoinRoom(context.Context, auth.Principal, string) (bool, error) { return true, nil }

var ana = auth.Principal{ID: 7, Role: models.RoleColab, Name: "Ana"}

// server is a minimal gateway: one fixed token, every join allowed.
func server(t *testing.T, hub *ws.Hub, clients chan<- *ws.Client) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "good" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c := hub.AddClient(ana, conn)
		if clients != nil {
			clients <- c
		}
		hub.Serve(r.Context(), c, allowAll{})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fastConfig(url, token string) rhclient.Config {
	return rhclient.Config{
		BaseURL:          url,
		Token:            token,
		HandshakeTimeout: 2 * time.Second,
		MinBackoff:       10 * time.Millisecond,
		MaxBackoff:       50 * time.Millisecond,
	}
}

func TestClient_UnauthorizedStops(t *testing.T) {
	srv := server(t, ws.NewHub(zerolog.Nop()), nil)
	c := rhclient.New(fastConfig(srv.URL, "bad"), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.ErrorIs(t, c.Run(ctx), rhclient.ErrUnauthorized)
}

func TestClient_FeedsNotificationsAndRejoinsAfterReconnect(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	clients := make(chan *ws.Client, 4)
	srv := server(t, hub, clients)

	c := rhclient.New(fastConfig(srv.URL, "good"), zerolog.Nop())
	center := c.Notifications()
	connected := make(chan struct{}, 4)
	c.OnConnect(func() { connected <- struct{}{} })
	messages := make(chan realtime.MessagePayload, 4)
	c.OnMessage(func(m realtime.MessagePayload) { messages <- m })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, connected)
	first := waitFor(t, clients)

	require.NoError(t, hub.Broadcast("colab:7", realtime.EventNotify, realtime.NotifyPayload{ConversationID: "c1", Preview: "oi"}))
	require.NoError(t, hub.Broadcast("colab:7", realtime.EventNotify, realtime.NotifyPayload{ConversationID: "c2", Preview: "olá"}))
	assert.Eventually(t, func() bool { return center.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	// Opening c1 dismisses its notification and follows its room.
	require.NoError(t, c.Join(ctx, "c1"))
	assert.Equal(t, 1, center.Count())
	room := realtime.ConversationRoom("c1")
	assert.Eventually(t, func() bool { return hub.RoomSize(room) == 1 }, 2*time.Second, 10*time.Millisecond)

	// Drop the connection from the server side.
	hub.RemoveClient(first)
	waitFor(t, connected)
	waitFor(t, clients)
	assert.Eventually(t, func() bool { return hub.RoomSize(room) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast(room, realtime.EventMessage, realtime.MessagePayload{ConversationID: "c1"}))
	got := waitFor(t, messages)
	assert.Equal(t, "c1", got.ConversationID)

	require.NoError(t, c.Leave(ctx, "c1"))
	assert.Eventually(t, func() bool { return hub.RoomSize(room) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func waitFor[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out")
	}
	var zero T
	return zero
}

func TestClient_NotificationCapacity(t *testing.T) {
	c := rhclient.New(rhclient.Config{BaseURL: "http://localhost:8084", KeepNotifications: 2}, zerolog.Nop())
	for _, id := range []string{"c1", "c2", "c3"} {
		c.Notifications().Add(realtime.NotifyPayload{ConversationID: id})
	}

	require.Equal(t, 2, c.Notifications().Count())
	assert.Equal(t, "c2", c.Notifications().List()[0].ConversationID)
	assert.Same(t, c.Notifications(), c.Notifications())
}
