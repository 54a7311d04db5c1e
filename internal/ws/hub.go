// Package ws is the websocket side of the realtime gateway. The Hub is the
// only owner of connection and room membership state; producers reach it
// through realtime.Broadcaster.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"rh-portal-be/internal/auth"
	"rh-portal-be/internal/metrics"
	"rh-portal-be/internal/realtime"
)

const (
	sendQueueSize = 64
	writeTimeout  = 10 * time.Second
	pingInterval  = 25 * time.Second
	pingTimeout   = 5 * time.Second
	joinTimeout   = 5 * time.Second
)

// RoomAuthorizer decides whether a principal may follow a conversation room.
type RoomAuthorizer interface {
	CanJoinRoom(ctx context.Context, p auth.Principal, conversationID string) (bool, error)
}

type Client struct {
	ID        string
	Principal auth.Principal

	conn *websocket.Conn
	send chan realtime.Envelope

	// rooms is guarded by Hub.mu.
	rooms map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(p auth.Principal, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:        uuid.NewString(),
		Principal: p,
		conn:      conn,
		send:      make(chan realtime.Envelope, sendQueueSize),
		rooms:     map[string]struct{}{},
		ctx:       ctx,
		cancel:    cancel,
	}
}

// enqueue never blocks. A full queue means the peer is not keeping up and
// the event is dropped for that connection only.
func (c *Client) enqueue(env realtime.Envelope) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.send <- env:
		metrics.RecordDelivered(env.Type)
		return true
	default:
		metrics.RecordDropped(env.Type)
		return false
	}
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	log zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: map[string]*Client{},
		rooms:   map[string]map[string]*Client{},
		log:     log.With().Str("component", "ws_hub").Logger(),
	}
}

// AddClient registers an authenticated connection, subscribes it to its role
// and identity rooms and starts its writer.
func (h *Hub) AddClient(p auth.Principal, conn *websocket.Conn) *Client {
	c := newClient(p, conn)
	h.register(c)

	go c.writeLoop(h.log)
	go c.keepAliveLoop()
	return c
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.joinLocked(c, realtime.RoleRoom(c.Principal.Role))
	h.joinLocked(c, realtime.IdentityRoom(c.Principal.Role, c.Principal.ID))
	h.mu.Unlock()

	metrics.RecordConnected()
	h.log.Debug().Str("client_id", c.ID).Uint("user_id", c.Principal.ID).Str("role", c.Principal.Role.String()).Msg("client connected")
}

func (h *Hub) RemoveClient(c *Client) {
	c.cancel()

	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	h.mu.Unlock()

	metrics.RecordDisconnected()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	}
	h.log.Debug().Str("client_id", c.ID).Msg("client disconnected")
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; ok {
		h.joinLocked(c, room)
	}
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) joinLocked(c *Client, room string) {
	members := h.rooms[room]
	if members == nil {
		members = map[string]*Client{}
		h.rooms[room] = members
	}
	members[c.ID] = c
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Broadcast queues the event to every member of room. Slow members are
// skipped; the only error is a payload that cannot be encoded.
func (h *Hub) Broadcast(room, event string, payload any) error {
	env, err := realtime.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		c.enqueue(env)
	}
	return nil
}

// Shutdown disconnects every client. http.Server.Shutdown does not touch
// hijacked connections.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.RemoveClient(c)
	}
}

// RoomSize reports how many connections are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Serve reads inbound frames until the connection ends. Only rh:join and
// rh:leave are understood; join requests go through authz.
func (h *Hub) Serve(ctx context.Context, c *Client, authz RoomAuthorizer) {
	defer h.RemoveClient(c)

	// A failed write cancels the client; stop reading too.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	for {
		var env realtime.Envelope
		if err := wsjson.Read(ctx, c.conn, &env); err != nil {
			if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
				h.log.Debug().Err(err).Str("client_id", c.ID).Msg("read failed")
			}
			return
		}
		h.handle(ctx, c, env, authz)
	}
}

func (h *Hub) handle(ctx context.Context, c *Client, env realtime.Envelope, authz RoomAuthorizer) {
	var req realtime.RoomPayload
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &req); err != nil {
			h.reply(c, realtime.EventError, realtime.ErrorPayload{Message: "malformed payload"})
			return
		}
	}

	switch env.Type {
	case realtime.EventJoin:
		if req.ConversationID == "" {
			h.reply(c, realtime.EventError, realtime.ErrorPayload{Message: "conversationId is required"})
			return
		}
		joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
		ok, err := authz.CanJoinRoom(joinCtx, c.Principal, req.ConversationID)
		cancel()
		if err != nil {
			h.log.Error().Err(err).Str("client_id", c.ID).Str("conversation_id", req.ConversationID).Msg("room authorization failed")
			h.reply(c, realtime.EventError, realtime.ErrorPayload{ConversationID: req.ConversationID, Message: "could not join conversation"})
			return
		}
		if !ok {
			h.reply(c, realtime.EventError, realtime.ErrorPayload{ConversationID: req.ConversationID, Message: "conversation not found"})
			return
		}
		h.Join(c, realtime.ConversationRoom(req.ConversationID))
		h.reply(c, realtime.EventJoined, req)

	case realtime.EventLeave:
		if req.ConversationID == "" {
			h.reply(c, realtime.EventError, realtime.ErrorPayload{Message: "conversationId is required"})
			return
		}
		h.Leave(c, realtime.ConversationRoom(req.ConversationID))
		h.reply(c, realtime.EventLeft, req)

	default:
		h.reply(c, realtime.EventError, realtime.ErrorPayload{Message: "unknown event " + env.Type})
	}
}

func (h *Hub) reply(c *Client, event string, payload any) {
	env, err := realtime.NewEnvelope(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode reply")
		return
	}
	c.enqueue(env)
}

func (c *Client) writeLoop(log zerolog.Logger) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case env := <-c.send:
			writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, env)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("client_id", c.ID).Str("event", env.Type).Msg("write failed")
				c.cancel()
				return
			}
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, pingTimeout)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}
