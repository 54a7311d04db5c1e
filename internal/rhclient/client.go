// Package rhclient is a Go client for the Fale com RH realtime channel. It
// keeps one websocket open for the whole session, reconnecting with
// exponential backoff, and feeds every rh:notify into a notifications.Center
// whichever conversation is currently open.
package rhclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"rh-portal-be/internal/notifications"
	"rh-portal-be/internal/realtime"
)

// ErrUnauthorized means the server refused the token at handshake. Retrying
// with the same token cannot succeed, so Run stops.
var ErrUnauthorized = errors.New("rhclient: token rejected")

type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8084.
	BaseURL string
	Token   string

	HandshakeTimeout time.Duration
	MinBackoff       time.Duration
	MaxBackoff       time.Duration

	// KeepNotifications bounds the notification center. Zero means
	// notifications.DefaultCapacity.
	KeepNotifications int
}

func (c *Config) defaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

type Client struct {
	cfg    Config
	center *notifications.Center
	log    zerolog.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	rooms map[string]struct{}

	onMessage func(realtime.MessagePayload)
	onUpdate  func(realtime.UpdatePayload)
	onConnect func()
}

func New(cfg Config, log zerolog.Logger) *Client {
	cfg.defaults()
	return &Client{
		cfg:    cfg,
		center: notifications.NewCenter(cfg.KeepNotifications),
		log:    log.With().Str("component", "rhclient").Logger(),
		rooms:  map[string]struct{}{},
	}
}

// OnMessage, OnUpdate and OnConnect must be set before Run.
func (c *Client) OnMessage(fn func(realtime.MessagePayload)) { c.onMessage = fn }
func (c *Client) OnUpdate(fn func(realtime.UpdatePayload))   { c.onUpdate = fn }
func (c *Client) OnConnect(fn func())                        { c.onConnect = fn }

// Notifications is the bell fed by every rh:notify the connection receives.
func (c *Client) Notifications() *notifications.Center { return c.center }

// Run keeps the connection alive until ctx ends or the token is rejected.
func (c *Client) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.MinBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	retry := backoff.WithContext(b, ctx)

	for {
		err := c.session(ctx, b.Reset)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrUnauthorized) {
			return err
		}

		wait := retry.NextBackOff()
		if wait == backoff.Stop {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Dur("backoff", wait).Msg("realtime connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// session dials once and reads until the connection drops.
func (c *Client) session(ctx context.Context, connected func()) error {
	target, err := c.endpoint()
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	conn, resp, err := websocket.Dial(dialCtx, target, nil)
	cancel()
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	c.mu.Lock()
	c.conn = conn
	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	connected()
	c.log.Info().Msg("realtime connected")

	// Conversation rooms do not survive a reconnect on the server side.
	for _, id := range rooms {
		if err := c.send(ctx, conn, realtime.EventJoin, id); err != nil {
			return err
		}
	}
	if c.onConnect != nil {
		c.onConnect()
	}

	for {
		var env realtime.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.dispatch(env)
	}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	u.RawQuery = url.Values{"token": {c.cfg.Token}}.Encode()
	return u.String(), nil
}

func (c *Client) dispatch(env realtime.Envelope) {
	switch env.Type {
	case realtime.EventNotify:
		var n realtime.NotifyPayload
		if c.decode(env, &n) {
			c.center.Add(n)
		}
	case realtime.EventMessage:
		var m realtime.MessagePayload
		if c.decode(env, &m) && c.onMessage != nil {
			c.onMessage(m)
		}
	case realtime.EventConversationUpdate:
		var u realtime.UpdatePayload
		if c.decode(env, &u) && c.onUpdate != nil {
			c.onUpdate(u)
		}
	case realtime.EventError:
		var e realtime.ErrorPayload
		if c.decode(env, &e) {
			c.log.Warn().Str("conversation_id", e.ConversationID).Msg(e.Message)
		}
	case realtime.EventJoined, realtime.EventLeft:
		c.log.Debug().Str("event", env.Type).RawJSON("data", env.Data).Msg("room ack")
	default:
		c.log.Debug().Str("event", env.Type).Msg("ignoring unknown event")
	}
}

func (c *Client) decode(env realtime.Envelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		c.log.Warn().Err(err).Str("event", env.Type).Msg("malformed event")
		return false
	}
	return true
}

// Join follows a conversation's live stream and dismisses its pending
// notifications. The room is remembered and rejoined after reconnects.
func (c *Client) Join(ctx context.Context, conversationID string) error {
	c.center.RemoveConversation(conversationID)

	c.mu.Lock()
	c.rooms[conversationID] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.send(ctx, conn, realtime.EventJoin, conversationID)
}

func (c *Client) Leave(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	delete(c.rooms, conversationID)
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.send(ctx, conn, realtime.EventLeave, conversationID)
}

func (c *Client) send(ctx context.Context, conn *websocket.Conn, event, conversationID string) error {
	env, err := realtime.NewEnvelope(event, realtime.RoomPayload{ConversationID: conversationID})
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, env); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}
