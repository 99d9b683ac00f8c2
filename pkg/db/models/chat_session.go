package models

import (
	"time"

	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/google/uuid"
)

type ChatMessage struct {
	Role      enums.ChatRole `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type ChatSession struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID     `gorm:"column:user_id;type:uuid;not null"`
	SessionID string        `gorm:"column:session_id;type:text;not null"`
	Messages  []ChatMessage `gorm:"column:messages;type:jsonb;serializer:json;not null"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
