package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rh-portal-be/internal/auth"
	"rh-portal-be/internal/models"
	"rh-portal-be/internal/realtime"
)

var (
	ana   = auth.Principal{ID: 7, Role: models.RoleColab}
	carla = auth.Principal{ID: 1, Role: models.RoleAdmin}
)

// connect registers a client without a socket; tests read its queue directly.
func connect(h *Hub, p auth.Principal) *Client {
	c := newClient(p, nil)
	h.register(c)
	return c
}

func drain(c *Client) []realtime.Envelope {
	var out []realtime.Envelope
	for {
		select {
		case env := <-c.send:
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestHub_AutoJoinsRoleAndIdentityRooms(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := connect(h, ana)
	c := connect(h, carla)

	assert.Equal(t, 1, h.RoomSize("role:COLAB"))
	assert.Equal(t, 1, h.RoomSize("colab:7"))
	assert.Equal(t, 1, h.RoomSize("role:ADMIN"))
	assert.Equal(t, 1, h.RoomSize("admin:1"))

	require.NoError(t, h.Broadcast("role:ADMIN", realtime.EventNotify, realtime.NotifyPayload{ConversationID: "c1"}))
	assert.Empty(t, drain(a))
	got := drain(c)
	require.Len(t, got, 1)
	assert.Equal(t, realtime.EventNotify, got[0].Type)
}

func TestHub_JoinLeaveAndRemove(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := connect(h, ana)
	room := realtime.ConversationRoom("c1")

	h.Join(a, room)
	assert.Equal(t, 1, h.RoomSize(room))
	require.NoError(t, h.Broadcast(room, realtime.EventMessage, nil))
	assert.Len(t, drain(a), 1)

	h.Leave(a, room)
	assert.Zero(t, h.RoomSize(room))
	require.NoError(t, h.Broadcast(room, realtime.EventMessage, nil))
	assert.Empty(t, drain(a))

	h.Join(a, room)
	h.RemoveClient(a)
	assert.Zero(t, h.RoomSize(room))
	assert.Zero(t, h.RoomSize("colab:7"))

	// Joining after removal is a no-op.
	h.Join(a, room)
	assert.Zero(t, h.RoomSize(room))
	h.RemoveClient(a)
}

func TestHub_Shutdown(t *testing.T) {
	h := NewHub(zerolog.Nop())
	connect(h, ana)
	connect(h, carla)

	h.Shutdown()
	assert.Zero(t, h.RoomSize("role:COLAB"))
	assert.Zero(t, h.RoomSize("role:ADMIN"))
}

func TestHub_SeveralConnectionsPerUser(t *testing.T) {
	h := NewHub(zerolog.Nop())
	tab1 := connect(h, ana)
	tab2 := connect(h, ana)

	require.NoError(t, h.Broadcast("colab:7", realtime.EventNotify, nil))
	assert.Len(t, drain(tab1), 1)
	assert.Len(t, drain(tab2), 1)

	h.RemoveClient(tab1)
	assert.Equal(t, 1, h.RoomSize("colab:7"))
}

func TestHub_DropsWhenQueueIsFull(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := connect(h, ana)

	for i := 0; i < sendQueueSize+10; i++ {
		require.NoError(t, h.Broadcast("colab:7", realtime.EventNotify, nil))
	}
	assert.Len(t, drain(a), sendQueueSize)
}

func TestHub_BroadcastEncodingError(t *testing.T) {
	h := NewHub(zerolog.Nop())
	connect(h, ana)
	assert.Error(t, h.Broadcast("colab:7", realtime.EventNotify, make(chan int)))
}

type authorizer struct {
	allow bool
	err   error
}

func (a authorizer) CanJoinRoom(context.Context, auth.Principal, string) (bool, error) {
	return a.allow, a.err
}

func envelope(t *testing.T, typ string, payload any) realtime.Envelope {
	t.Helper()
	env, err := realtime.NewEnvelope(typ, payload)
	require.NoError(t, err)
	return env
}

func TestHub_HandleInbound(t *testing.T) {
	room := realtime.ConversationRoom("c1")
	join := realtime.RoomPayload{ConversationID: "c1"}

	tests := []struct {
		name     string
		env      realtime.Envelope
		authz    authorizer
		wantType string
		inRoom   bool
	}{
		{"join allowed", envelope(t, realtime.EventJoin, join), authorizer{allow: true}, realtime.EventJoined, true},
		{"join denied", envelope(t, realtime.EventJoin, join), authorizer{}, realtime.EventError, false},
		{"join lookup fails", envelope(t, realtime.EventJoin, join), authorizer{err: errors.New("db down")}, realtime.EventError, false},
		{"join without id", envelope(t, realtime.EventJoin, realtime.RoomPayload{}), authorizer{allow: true}, realtime.EventError, false},
		{"leave", envelope(t, realtime.EventLeave, join), authorizer{}, realtime.EventLeft, false},
		{"unknown", envelope(t, "rh:typing", join), authorizer{allow: true}, realtime.EventError, false},
		{"malformed", realtime.Envelope{Type: realtime.EventJoin, Data: json.RawMessage(`"x"`)}, authorizer{allow: true}, realtime.EventError, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHub(zerolog.Nop())
			a := connect(h, ana)

			h.handle(context.Background(), a, tc.env, tc.authz)

			got := drain(a)
			require.Len(t, got, 1)
			assert.Equal(t, tc.wantType, got[0].Type)
			assert.Equal(t, tc.inRoom, h.RoomSize(room) == 1)
		})
	}
}
