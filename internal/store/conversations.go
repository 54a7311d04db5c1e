// Package store is the only owner of durable conversation state. Every state
// transition is a single conditional UPDATE keyed on the current status, so
// competing writers resolve in the database instead of in process memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rh-portal-be/internal/models"
)

// ErrNotApplied is returned when a guarded write matched no row.
var ErrNotApplied = errors.New("store: conditional write not applied")

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

type ConversationFilter struct {
	OwnerID *uint
	Status  *models.Status
	Search  string
}

// MessageGuard narrows which conversations accept a new message.
type MessageGuard struct {
	OwnerID *uint
	Status  models.Status // exact status required, empty means any open state
}

// CreateConversation writes the conversation and its first message in one
// transaction: readers see both rows or neither.
func (s *Store) CreateConversation(ctx context.Context, conv *models.Conversation, first *models.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		first.ConversationID = conv.ID
		if err := tx.Create(first).Error; err != nil {
			return fmt.Errorf("create first message: %w", err)
		}
		return nil
	})
}

// ListConversations returns one page ordered oldest first plus the total
// number of rows matching the filter.
func (s *Store) ListConversations(ctx context.Context, filter ConversationFilter, offset, limit int) ([]models.Conversation, int64, error) {
	var total int64
	if err := s.applyFilter(s.db.WithContext(ctx).Model(&models.Conversation{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	items := []models.Conversation{}
	if total == 0 {
		return items, 0, nil
	}
	err := s.applyFilter(s.db.WithContext(ctx).Model(&models.Conversation{}), filter).
		Order("created_at ASC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	return items, total, nil
}

func (s *Store) applyFilter(q *gorm.DB, filter ConversationFilter) *gorm.DB {
	if filter.OwnerID != nil {
		q = q.Where("colaborador_id = ?", *filter.OwnerID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
		q = q.Where(
			"(LOWER(category) LIKE ? ESCAPE '!' OR LOWER(subject) LIKE ? ESCAPE '!'"+
				" OR LOWER(colaborador_matricula) LIKE ? ESCAPE '!' OR LOWER(colaborador_nome) LIKE ? ESCAPE '!')",
			like, like, like, like,
		)
	}
	return q
}

// likeEscaper makes a search term match literally under ESCAPE '!', which
// MySQL and SQLite quote the same way.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// FindConversation returns nil when no row matches. With ownerID set, rows of
// other employees are indistinguishable from missing ones.
func (s *Store) FindConversation(ctx context.Context, id string, ownerID *uint) (*models.Conversation, error) {
	var conv models.Conversation
	q := s.db.WithContext(ctx).Where("id = ?", id)
	if ownerID != nil {
		q = q.Where("colaborador_id = ?", *ownerID)
	}
	err := q.Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return &conv, nil
}

// RecentMessages returns up to limit of the newest messages, oldest first.
func (s *Store) RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	msgs := []models.Message{}
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("seq DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// AppendMessage touches the parent conversation under the guard and inserts
// the message in the same transaction. The touch runs first so the row stays
// locked until commit, and the message takes the conversation's advanced
// last_message_at as its own timestamp, which keeps per-conversation order
// monotonic even if the wall clock steps back.
func (s *Store) AppendMessage(ctx context.Context, msg *models.Message, guard MessageGuard, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Where("status <> ?", models.StatusFechada)
		if guard.OwnerID != nil {
			q = q.Where("colaborador_id = ?", *guard.OwnerID)
		}
		if guard.Status != "" {
			q = q.Where("status = ?", guard.Status)
		}

		res := q.Updates(map[string]any{
			"updated_at":      at,
			"last_message_at": forwardOnly("last_message_at", at),
		})
		if res.Error != nil {
			return fmt.Errorf("touch conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotApplied
		}

		var conv models.Conversation
		if err := tx.Select("last_message_at").Where("id = ?", msg.ConversationID).Take(&conv).Error; err != nil {
			return fmt.Errorf("read last_message_at: %w", err)
		}
		msg.CreatedAt = at
		if conv.LastMessageAt != nil {
			msg.CreatedAt = *conv.LastMessageAt
		}

		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		return nil
	})
}

// Accept moves a PENDENTE conversation to ABERTA and stamps the assignee.
// It is one statement: of several concurrent callers at most one sees true.
func (s *Store) Accept(ctx context.Context, id string, adminID uint, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND status = ?", id, models.StatusPendente).
		Updates(map[string]any{
			"status":            models.StatusAberta,
			"assigned_admin_id": adminID,
			"accepted_at":       at,
			"updated_at":        at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("accept conversation: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Close moves any non-terminal conversation to FECHADA. ownerID restricts
// the update to one employee's conversation.
func (s *Store) Close(ctx context.Context, id string, ownerID *uint, by models.Role, at time.Time) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND status <> ?", id, models.StatusFechada)
	if ownerID != nil {
		q = q.Where("colaborador_id = ?", *ownerID)
	}
	res := q.Updates(map[string]any{
		"status":     models.StatusFechada,
		"closed_at":  at,
		"closed_by":  by,
		"updated_at": at,
	})
	if res.Error != nil {
		return false, fmt.Errorf("close conversation: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkRead advances one side's read watermark.
func (s *Store) MarkRead(ctx context.Context, id string, side models.Role, ownerID *uint, at time.Time) (bool, error) {
	column := "admin_last_read_at"
	if side == models.RoleColab {
		column = "colab_last_read_at"
	}

	q := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id)
	if ownerID != nil {
		q = q.Where("colaborador_id = ?", *ownerID)
	}
	res := q.UpdateColumn(column, forwardOnly(column, at))
	if res.Error != nil {
		return false, fmt.Errorf("mark read: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// forwardOnly keeps a timestamp column from moving backwards. Plain CASE so
// it runs unchanged on MySQL and SQLite.
func forwardOnly(column string, at time.Time) clause.Expr {
	return gorm.Expr(
		"CASE WHEN "+column+" IS NULL OR "+column+" < ? THEN ? ELSE "+column+" END",
		at, at,
	)
}
