// Package realtime names the rooms and events of the Fale com RH push
// channel. Producers (the conversation service) and transports (the
// websocket hub, the Go client) share these definitions and nothing else.
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"rh-portal-be/internal/models"
)

// Server to client events.
const (
	EventMessage            = "rh:message"
	EventConversationUpdate = "rh:conversation:update"
	EventNotify             = "rh:notify"
	EventJoined             = "rh:joined"
	EventLeft               = "rh:left"
	EventError              = "rh:error"
)

// Client to server events.
const (
	EventJoin  = "rh:join"
	EventLeave = "rh:leave"
)

// PreviewLimit bounds the text carried by a notify event, in runes.
const PreviewLimit = 80

// Broadcaster delivers one event to every connection in a room. It is the
// only capability the conversation service has over the transport.
type Broadcaster interface {
	Broadcast(room, event string, payload any) error
}

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: event}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Envelope{Type: event, Data: raw}, nil
}

func RoleRoom(role models.Role) string {
	return "role:" + role.String()
}

func IdentityRoom(role models.Role, id uint) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(role.String()), id)
}

func ConversationRoom(conversationID string) string {
	return "rh:" + conversationID
}

type MessagePayload struct {
	ConversationID string          `json:"conversationId"`
	Message        *models.Message `json:"message"`
}

// UpdatePayload carries only the fields that changed.
type UpdatePayload struct {
	ConversationID string         `json:"conversationId"`
	Patch          map[string]any `json:"patch"`
}

type NotifyPayload struct {
	ConversationID string    `json:"conversationId"`
	Preview        string    `json:"preview"`
	CreatedAt      time.Time `json:"created_at"`
	From           string    `json:"from,omitempty"`
}

// RoomPayload is the body of join/leave requests and their acks.
type RoomPayload struct {
	ConversationID string `json:"conversationId"`
}

type ErrorPayload struct {
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
}

// Preview trims content to PreviewLimit runes, marking the cut with an
// ellipsis that counts toward the limit.
func Preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= PreviewLimit {
		return content
	}
	return string(runes[:PreviewLimit-1]) + "…"
}
