package models

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Matricula    string    `gorm:"size:32;uniqueIndex;not null" json:"matricula"`
	Name         string    `gorm:"size:120;not null" json:"name"`
	Email        string    `gorm:"size:190;uniqueIndex;not null" json:"email"`
	Role         string    `gorm:"size:40;not null" json:"role"` // raw, normalized when a token is issued
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Conversation is one employee's HR inquiry thread. Rows are never deleted.
type Conversation struct {
	ID       string `gorm:"type:varchar(36);primaryKey" json:"id"`
	Status   Status `gorm:"type:varchar(16);index;not null" json:"status"`
	Category string `gorm:"size:60;not null" json:"category"`
	Subject  string `gorm:"size:160" json:"subject,omitempty"`

	// Snapshot of the employee at creation time.
	ColaboradorID        uint   `gorm:"index;not null" json:"colaborador_id"`
	ColaboradorMatricula string `gorm:"size:32;not null" json:"colaborador_matricula"`
	ColaboradorNome      string `gorm:"size:120;not null" json:"colaborador_nome"`

	AssignedAdminID *uint `gorm:"index" json:"assigned_admin_id,omitempty"`

	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	ColabLastReadAt *time.Time `json:"colab_last_read_at,omitempty"`
	AdminLastReadAt *time.Time `json:"admin_last_read_at,omitempty"`
	ClosedBy        *Role      `gorm:"type:varchar(8)" json:"closed_by,omitempty"`
}

// Message is immutable once written. Seq only breaks ties between equal
// timestamps and never leaves the server.
type Message struct {
	Seq            uint        `gorm:"primaryKey;autoIncrement" json:"-"`
	ID             string      `gorm:"type:varchar(36);uniqueIndex;not null" json:"id"`
	ConversationID string      `gorm:"type:varchar(36);index:idx_message_conversation_created;not null" json:"conversation_id"`
	SenderRole     Role        `gorm:"type:varchar(8);not null" json:"sender_role"`
	SenderID       uint        `gorm:"not null" json:"sender_id"`
	Kind           MessageKind `gorm:"type:varchar(8);not null" json:"kind"`
	PresetKey      *string     `gorm:"size:60" json:"preset_key,omitempty"`
	Content        string      `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time   `gorm:"index:idx_message_conversation_created" json:"created_at"`
}

func (Message) TableName() string { return "conversation_messages" }
