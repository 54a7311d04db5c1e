package falerh

import (
	"rh-portal-be/internal/auth"
	"rh-portal-be/internal/metrics"
	"rh-portal-be/internal/models"
	"rh-portal-be/internal/realtime"
)

// fromRH is the sender label employees see on notifications from any admin.
const fromRH = "RH"

// publish is phase two. It runs only after the write committed and must
// never fail the operation.
func (s *Service) publish(room, event string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Broadcast(room, event, payload); err != nil {
		metrics.RecordBroadcastFailure(event)
		s.log.Warn().Err(err).Str("room", room).Str("event", event).Msg("broadcast failed after commit")
	}
}

func (s *Service) announceNew(conv *models.Conversation, first *models.Message) {
	admins := realtime.RoleRoom(models.RoleAdmin)
	s.publish(admins, realtime.EventConversationUpdate, realtime.UpdatePayload{
		ConversationID: conv.ID,
		Patch: map[string]any{
			"status":          conv.Status,
			"category":        conv.Category,
			"subject":         conv.Subject,
			"created_at":      conv.CreatedAt,
			"last_message_at": conv.LastMessageAt,
			"updated_at":      conv.UpdatedAt,
		},
	})
	s.publish(admins, realtime.EventNotify, realtime.NotifyPayload{
		ConversationID: conv.ID,
		Preview:        realtime.Preview(first.Content),
		CreatedAt:      first.CreatedAt,
		From:           conv.ColaboradorNome,
	})
}

func (s *Service) announceMessage(conv *models.Conversation, msg *models.Message, sender auth.Principal) {
	s.publish(realtime.ConversationRoom(conv.ID), realtime.EventMessage, realtime.MessagePayload{
		ConversationID: conv.ID,
		Message:        msg,
	})

	patch := realtime.UpdatePayload{
		ConversationID: conv.ID,
		Patch: map[string]any{
			"last_message_at": msg.CreatedAt,
			"updated_at":      msg.CreatedAt,
		},
	}
	owner := realtime.IdentityRoom(models.RoleColab, conv.ColaboradorID)
	admins := realtime.RoleRoom(models.RoleAdmin)
	s.publish(admins, realtime.EventConversationUpdate, patch)
	s.publish(owner, realtime.EventConversationUpdate, patch)

	// The bell goes to the counterparty only.
	notify := realtime.NotifyPayload{
		ConversationID: conv.ID,
		Preview:        realtime.Preview(msg.Content),
		CreatedAt:      msg.CreatedAt,
	}
	if sender.IsAdmin() {
		notify.From = fromRH
		s.publish(owner, realtime.EventNotify, notify)
		return
	}
	notify.From = conv.ColaboradorNome
	s.publish(admins, realtime.EventNotify, notify)
}

func (s *Service) announceUpdate(conv *models.Conversation, patch map[string]any) {
	payload := realtime.UpdatePayload{ConversationID: conv.ID, Patch: patch}
	for _, room := range []string{
		realtime.ConversationRoom(conv.ID),
		realtime.RoleRoom(models.RoleAdmin),
		realtime.IdentityRoom(models.RoleColab, conv.ColaboradorID),
	} {
		s.publish(room, realtime.EventConversationUpdate, payload)
	}
}
