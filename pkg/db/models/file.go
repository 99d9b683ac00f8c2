package models

import (
	"time"

	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/google/uuid"
)

// FileMetadata is filled in once parsing completes.
type FileMetadata struct {
	Rows    int      `json:"rows"`
	Columns []string `json:"columns,omitempty"`
	Pages   int      `json:"pages,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type File struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID        `gorm:"column:user_id;type:uuid;not null"`
	FileName     string           `gorm:"column:file_name;type:text;not null"`
	FileType     enums.FileType   `gorm:"column:file_type;type:text;not null"`
	MimeType     string           `gorm:"column:mime_type;type:text;not null"`
	FileSize     int64            `gorm:"column:file_size;not null"`
	Status       enums.FileStatus `gorm:"column:status;type:text;not null"`
	ErrorMessage string           `gorm:"column:error_message;type:text;not null"`
	Metadata     FileMetadata     `gorm:"column:metadata;type:jsonb;serializer:json;not null"`
	UploadedAt   time.Time        `gorm:"column:uploaded_at;autoCreateTime"`
	ProcessedAt  *time.Time       `gorm:"column:processed_at"`
}
