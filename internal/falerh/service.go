// Package falerh implements the "Fale com RH" conversation state machine.
//
// Every operation follows the same two phases. Phase one is the durable,
// conditional write in the store; if it fails or is not applied the
// operation reports that and stops. Phase two broadcasts the result to the
// realtime rooms and is advisory: a broadcast failure is logged and counted
// but never turns a committed write into an error, because clients recover
// the durable state on their next fetch.
//
// The service keeps no conversation state of its own. Each authorization
// decision re-reads the store.
package falerh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rh-portal-be/internal/auth"
	"rh-portal-be/internal/metrics"
	"rh-portal-be/internal/models"
	"rh-portal-be/internal/realtime"
	"rh-portal-be/internal/store"
)

// Store is the persistence the service depends on.
type Store interface {
	CreateConversation(ctx context.Context, conv *models.Conversation, first *models.Message) error
	ListConversations(ctx context.Context, filter store.ConversationFilter, offset, limit int) ([]models.Conversation, int64, error)
	FindConversation(ctx context.Context, id string, ownerID *uint) (*models.Conversation, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	AppendMessage(ctx context.Context, msg *models.Message, guard store.MessageGuard, at time.Time) error
	Accept(ctx context.Context, id string, adminID uint, at time.Time) (bool, error)
	Close(ctx context.Context, id string, ownerID *uint, by models.Role, at time.Time) (bool, error)
	MarkRead(ctx context.Context, id string, side models.Role, ownerID *uint, at time.Time) (bool, error)
}

type Detail struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []models.Message     `json:"messages"`
}

type Page struct {
	Items    []models.Conversation `json:"items"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"pageSize"`
}

type Service struct {
	store    Store
	bus      realtime.Broadcaster
	log      zerolog.Logger
	now      func() time.Time
	validate *validator.Validate
}

type Option func(*Service)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st Store, bus realtime.Broadcaster, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		bus:      bus,
		log:      log.With().Str("component", "falerh").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ownerScope returns the owner filter for employee callers. Admins see every
// conversation.
func ownerScope(actor auth.Principal) *uint {
	if actor.IsAdmin() {
		return nil
	}
	id := actor.ID
	return &id
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Service) reject(op string, reason Reason, detail string) Outcome {
	metrics.RecordRejection(op, string(reason))
	s.log.Debug().Str("operation", op).Str("reason", string(reason)).Msg(detail)
	return rejected(reason, detail)
}

// CreateConversation opens a PENDENTE conversation for the calling employee
// together with its first message.
func (s *Service) CreateConversation(ctx context.Context, actor auth.Principal, in CreateInput) (*Detail, Outcome, error) {
	if actor.Role != models.RoleColab {
		return nil, s.reject("create", ReasonForbidden, "only employees open conversations"), nil
	}
	in.normalize()
	if err := s.check(&in); err != nil {
		return nil, Outcome{}, err
	}

	now := s.now()
	conv := &models.Conversation{
		ID:                   uuid.NewString(),
		Status:               models.StatusPendente,
		Category:             in.Category,
		Subject:              in.Subject,
		ColaboradorID:        actor.ID,
		ColaboradorMatricula: actor.Matricula,
		ColaboradorNome:      actor.Name,
		CreatedAt:            now,
		UpdatedAt:            now,
		LastMessageAt:        &now,
	}
	first := newMessage(conv.ID, actor, in.Message, now)

	if err := s.store.CreateConversation(ctx, conv, first); err != nil {
		return nil, Outcome{}, err
	}
	s.log.Info().Str("conversation_id", conv.ID).Uint("colaborador_id", actor.ID).Msg("conversation opened")

	s.announceNew(conv, first)
	return &Detail{Conversation: conv, Messages: []models.Message{*first}}, applied(), nil
}

// ListConversations pages through conversations oldest first so long
// pending requests stay on top of both the employee list and the inbox.
func (s *Service) ListConversations(ctx context.Context, actor auth.Principal, filter ListFilter) (*Page, error) {
	filter.normalize()
	if err := s.check(&filter); err != nil {
		return nil, err
	}

	q := store.ConversationFilter{OwnerID: ownerScope(actor), Search: filter.Search}
	if filter.Status != "" {
		status := filter.Status
		q.Status = &status
	}

	page, size := *filter.Page, *filter.PageSize
	items, total, err := s.store.ListConversations(ctx, q, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total, Page: page, PageSize: size}, nil
}

// GetConversation returns nil when the conversation does not exist or, for
// an employee, belongs to someone else. The two cases look the same.
func (s *Service) GetConversation(ctx context.Context, actor auth.Principal, id string) (*Detail, error) {
	if !validID(id) {
		return nil, nil
	}
	conv, err := s.store.FindConversation(ctx, id, ownerScope(actor))
	if err != nil || conv == nil {
		return nil, err
	}

	msgs, err := s.store.RecentMessages(ctx, id, DetailMessageCap)
	if err != nil {
		return nil, err
	}
	return &Detail{Conversation: conv, Messages: msgs}, nil
}

// SendMessage appends a message. Employees may write while the conversation
// is PENDENTE or ABERTA; admins only once it is ABERTA. The precondition is
// checked against the stored row and enforced again by the guarded write, so
// a close that lands in between surfaces as STATE_CONFLICT.
func (s *Service) SendMessage(ctx context.Context, actor auth.Principal, id string, in MessageInput) (*models.Message, Outcome, error) {
	const op = "send"

	in.normalize()
	if err := s.check(&in); err != nil {
		return nil, Outcome{}, err
	}
	if !validID(id) {
		return nil, s.reject(op, ReasonNotFound, "conversation not found"), nil
	}

	owner := ownerScope(actor)
	conv, err := s.store.FindConversation(ctx, id, owner)
	if err != nil {
		return nil, Outcome{}, err
	}
	if conv == nil {
		return nil, s.reject(op, ReasonNotFound, "conversation not found"), nil
	}
	if conv.Status.IsTerminal() {
		return nil, s.reject(op, ReasonStateConflict, "conversation is closed"), nil
	}

	guard := store.MessageGuard{OwnerID: owner}
	if actor.IsAdmin() {
		if conv.Status != models.StatusAberta {
			return nil, s.reject(op, ReasonStateConflict, "conversation must be accepted before replying"), nil
		}
		guard.Status = models.StatusAberta
	}

	now := s.now()
	msg := newMessage(conv.ID, actor, in, now)
	if err := s.store.AppendMessage(ctx, msg, guard, now); err != nil {
		if errors.Is(err, store.ErrNotApplied) {
			return nil, s.reject(op, ReasonStateConflict, "conversation changed state, reload it"), nil
		}
		return nil, Outcome{}, err
	}

	s.announceMessage(conv, msg, actor)
	return msg, applied(), nil
}

// AcceptConversation assigns a PENDENTE conversation to the calling admin.
// The transition is a single conditional update, so when several admins race
// exactly one wins and the rest get STATE_CONFLICT.
func (s *Service) AcceptConversation(ctx context.Context, actor auth.Principal, id string) (Outcome, error) {
	const op = "accept"

	if !actor.IsAdmin() {
		return s.reject(op, ReasonForbidden, "only admins accept conversations"), nil
	}
	if !validID(id) {
		return s.reject(op, ReasonNotFound, "conversation not found"), nil
	}

	// The owner never changes. The status seen here only short-circuits
	// requests that cannot apply; the conditional update decides races.
	conv, err := s.store.FindConversation(ctx, id, nil)
	if err != nil {
		return Outcome{}, err
	}
	if conv == nil {
		return s.reject(op, ReasonNotFound, "conversation not found"), nil
	}
	if !conv.Status.CanTransitionTo(models.StatusAberta) {
		return s.reject(op, ReasonStateConflict, "conversation is no longer pending"), nil
	}

	now := s.now()
	ok, err := s.store.Accept(ctx, id, actor.ID, now)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return s.reject(op, ReasonStateConflict, "conversation is no longer pending"), nil
	}
	metrics.RecordTransition(models.StatusAberta.String())
	s.log.Info().Str("conversation_id", id).Uint("admin_id", actor.ID).Msg("conversation accepted")

	s.announceUpdate(conv, map[string]any{
		"status":            models.StatusAberta,
		"assigned_admin_id": actor.ID,
		"accepted_at":       now,
		"updated_at":        now,
	})
	return applied(), nil
}

// CloseConversation ends a conversation from either side. Employees may only
// close their own; any admin may close any. Closing twice is rejected and
// leaves closed_at untouched.
func (s *Service) CloseConversation(ctx context.Context, actor auth.Principal, id string) (Outcome, error) {
	const op = "close"

	if !validID(id) {
		return s.reject(op, ReasonNotFound, "conversation not found"), nil
	}

	owner := ownerScope(actor)
	conv, err := s.store.FindConversation(ctx, id, owner)
	if err != nil {
		return Outcome{}, err
	}
	if conv == nil {
		return s.reject(op, ReasonNotFound, "conversation not found"), nil
	}
	if !conv.Status.CanTransitionTo(models.StatusFechada) {
		return s.reject(op, ReasonStateConflict, "conversation is already closed"), nil
	}

	now := s.now()
	ok, err := s.store.Close(ctx, id, owner, actor.Role, now)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return s.reject(op, ReasonStateConflict, "conversation is already closed"), nil
	}
	metrics.RecordTransition(models.StatusFechada.String())
	s.log.Info().Str("conversation_id", id).Str("closed_by", actor.Role.String()).Msg("conversation closed")

	s.announceUpdate(conv, map[string]any{
		"status":     models.StatusFechada,
		"closed_at":  now,
		"closed_by":  actor.Role,
		"updated_at": now,
	})
	return applied(), nil
}

// MarkRead advances the caller's side read watermark. Admins share one
// watermark, so any admin may move it. Nothing is broadcast.
func (s *Service) MarkRead(ctx context.Context, actor auth.Principal, id string) (Outcome, error) {
	if !validID(id) {
		return s.reject("mark_read", ReasonNotFound, "conversation not found"), nil
	}
	ok, err := s.store.MarkRead(ctx, id, actor.Role, ownerScope(actor), s.now())
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return s.reject("mark_read", ReasonNotFound, "conversation not found"), nil
	}
	return applied(), nil
}

// CanJoinRoom authorizes a realtime subscription to a conversation room:
// admins may follow any conversation, employees only their own.
func (s *Service) CanJoinRoom(ctx context.Context, p auth.Principal, conversationID string) (bool, error) {
	if !validID(conversationID) {
		return false, nil
	}
	conv, err := s.store.FindConversation(ctx, conversationID, ownerScope(p))
	if err != nil {
		return false, fmt.Errorf("authorize room: %w", err)
	}
	return conv != nil, nil
}

func newMessage(conversationID string, sender auth.Principal, in MessageInput, at time.Time) *models.Message {
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderRole:     sender.Role,
		SenderID:       sender.ID,
		Kind:           in.Kind,
		Content:        in.Content,
		CreatedAt:      at,
	}
	if in.Kind == models.KindPreset {
		key := in.PresetKey
		msg.PresetKey = &key
	}
	return msg
}
