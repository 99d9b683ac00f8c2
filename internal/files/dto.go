package files

import (
	"time"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/google/uuid"
)

// UploadInput is one multipart upload read into memory.
type UploadInput struct {
	FileName string
	MimeType string
	Content  []byte
}

type FileDTO struct {
	ID           uuid.UUID           `json:"id"`
	FileName     string              `json:"fileName"`
	FileType     enums.FileType      `json:"fileType"`
	MimeType     string              `json:"mimeType"`
	FileSize     int64               `json:"fileSize"`
	Status       enums.FileStatus    `json:"status"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	Metadata     models.FileMetadata `json:"metadata"`
	UploadedAt   time.Time           `json:"uploadedAt"`
	ProcessedAt  *time.Time          `json:"processedAt,omitempty"`
}

func FromModel(f models.File) FileDTO {
	return FileDTO{
		ID:           f.ID,
		FileName:     f.FileName,
		FileType:     f.FileType,
		MimeType:     f.MimeType,
		FileSize:     f.FileSize,
		Status:       f.Status,
		ErrorMessage: f.ErrorMessage,
		Metadata:     f.Metadata,
		UploadedAt:   f.UploadedAt,
		ProcessedAt:  f.ProcessedAt,
	}
}
