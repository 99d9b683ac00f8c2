// Package files accepts inventory uploads and parses them in the background.
package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finxan/finxan-backend/internal/ingest"
	"github.com/finxan/finxan-backend/internal/normalize"
	"github.com/finxan/finxan-backend/internal/sources"
	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/finxan/finxan-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultMaxBytes     = 10 << 20
	defaultParseTimeout = 2 * time.Minute
	sniffBytes          = 512

	msgNoRows = "No inventory rows found in file"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes upload lifecycle operations.
type Service interface {
	Upload(ctx context.Context, userID uuid.UUID, input UploadInput) (*FileDTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]FileDTO, error)
	Get(ctx context.Context, userID, fileID uuid.UUID) (*FileDTO, error)
	Delete(ctx context.Context, userID, fileID uuid.UUID) error
}

type ServiceParams struct {
	DB           txRunner
	Files        *Repository
	Sources      *sources.Repository
	MaxBytes     int64
	ParseTimeout time.Duration
	Metrics      *metrics.IngestMetrics
	Logger       *logger.Logger
}

type service struct {
	db           txRunner
	files        *Repository
	sources      *sources.Repository
	maxBytes     int64
	parseTimeout time.Duration
	metrics      *metrics.IngestMetrics
	logg         *logger.Logger
	now          func() time.Time
	spawn        func(func())
}

func NewService(p ServiceParams) (Service, error) {
	return newService(p)
}

func newService(p ServiceParams) (*service, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if p.Files == nil {
		return nil, fmt.Errorf("files repository required")
	}
	if p.Sources == nil {
		return nil, fmt.Errorf("sources repository required")
	}
	maxBytes := p.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	parseTimeout := p.ParseTimeout
	if parseTimeout <= 0 {
		parseTimeout = defaultParseTimeout
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		db:           p.DB,
		files:        p.Files,
		sources:      p.Sources,
		maxBytes:     maxBytes,
		parseTimeout: parseTimeout,
		metrics:      p.Metrics,
		logg:         logg,
		now:          time.Now,
		spawn:        func(fn func()) { go fn() },
	}, nil
}

// Upload records the file and starts parsing it. The returned record is in the uploading
// state; callers poll Get for completed or failed.
func (s *service) Upload(ctx context.Context, userID uuid.UUID, input UploadInput) (*FileDTO, error) {
	name := strings.TrimSpace(input.FileName)
	if name == "" || len(input.Content) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "No file uploaded")
	}
	if int64(len(input.Content)) > s.maxBytes {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "File exceeds the %d MB limit", s.maxBytes>>20)
	}

	head := input.Content
	if len(head) > sniffBytes {
		head = head[:sniffBytes]
	}
	fileType, err := ingest.DetectFileType(name, input.MimeType, head)
	if err != nil {
		return nil, err
	}

	file := &models.File{
		UserID:   userID,
		FileName: name,
		FileType: fileType,
		MimeType: input.MimeType,
		FileSize: int64(len(input.Content)),
		Status:   enums.FileStatusUploading,
	}
	if err := s.files.Create(ctx, file); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create file record")
	}

	content := input.Content
	snapshot := *file
	bgCtx := context.WithoutCancel(ctx)
	s.spawn(func() {
		parseCtx, cancel := context.WithTimeout(bgCtx, s.parseTimeout)
		defer cancel()
		s.process(parseCtx, snapshot, content)
	})

	dto := FromModel(*file)
	return &dto, nil
}

// process parses content, replaces the file's inventory source and records the outcome.
func (s *service) process(ctx context.Context, file models.File, content []byte) {
	ctx = s.logg.WithSource(s.logg.WithUserID(ctx, file.UserID.String()), file.FileType.String(), file.ID.String())

	if err := s.files.MarkProcessing(ctx, file.ID); err != nil {
		s.logg.Error(ctx, "mark file processing", err)
		return
	}

	result, err := ingest.Parse(bytes.NewReader(content), file.FileType)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		s.fail(ctx, file, err)
		return
	}

	if file.FileType == enums.FileTypePDF {
		s.completeDocument(ctx, file, result)
		return
	}

	items := normalize.Rows(result.Rows)
	if len(items) == 0 {
		s.metrics.Observe(file.FileType.String(), metrics.OutcomeEmpty, 0)
		s.fail(ctx, file, pkgerrors.New(pkgerrors.CodeEmptySource, msgNoRows))
		return
	}

	now := s.now().UTC()
	fileID := file.ID
	meta := models.FileMetadata{Rows: len(items), Columns: result.Columns, Pages: result.Pages}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.sources.WithTx(tx).Upsert(ctx, &models.InventorySource{
			UserID:     file.UserID,
			SourceType: file.FileType.SourceType(),
			SourceID:   file.ID.String(),
			FileID:     &fileID,
			Data:       items,
			LastSynced: &now,
		}); err != nil {
			return err
		}
		return s.files.WithTx(tx).MarkCompleted(ctx, file.ID, meta, now)
	})
	if err != nil {
		s.fail(ctx, file, err)
		return
	}

	s.metrics.Observe(file.FileType.String(), metrics.OutcomeSuccess, len(items))
	s.logg.Info(s.logg.WithField(ctx, "parse", result.Summary()), "file processed")
}

// completeDocument records a PDF as text and page metadata only. No inventory source is written.
func (s *service) completeDocument(ctx context.Context, file models.File, result *ingest.Result) {
	meta := models.FileMetadata{Columns: result.Columns, Pages: result.Pages, Text: result.Text}
	if err := s.files.MarkCompleted(ctx, file.ID, meta, s.now().UTC()); err != nil {
		s.fail(ctx, file, err)
		return
	}
	s.metrics.Observe(file.FileType.String(), metrics.OutcomeSuccess, 0)
	s.logg.Info(s.logg.WithField(ctx, "parse", result.Summary()), "document stored without inventory rows")
}

func (s *service) fail(ctx context.Context, file models.File, cause error) {
	if !pkgerrors.IsCode(cause, pkgerrors.CodeEmptySource) {
		s.metrics.Observe(file.FileType.String(), metrics.OutcomeFailed, 0)
	}
	message := cause.Error()
	if typed := pkgerrors.As(cause); typed != nil {
		message = typed.Message()
	}
	s.logg.WarnErr(ctx, "file processing failed", cause)
	if err := s.files.MarkFailed(ctx, file.ID, message, s.now().UTC()); err != nil {
		s.logg.Error(ctx, "mark file failed", err)
	}
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]FileDTO, error) {
	rows, err := s.files.List(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list files")
	}
	out := make([]FileDTO, len(rows))
	for i, row := range rows {
		out[i] = FromModel(row)
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, fileID uuid.UUID) (*FileDTO, error) {
	file, err := s.load(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*file)
	return &dto, nil
}

// Delete removes the file record together with the inventory source it produced.
func (s *service) Delete(ctx context.Context, userID, fileID uuid.UUID) error {
	if _, err := s.load(ctx, userID, fileID); err != nil {
		return err
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.sources.WithTx(tx).DeleteByFileID(ctx, userID, fileID); err != nil {
			return err
		}
		_, err := s.files.WithTx(tx).Delete(ctx, userID, fileID)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete file")
	}
	return nil
}

func (s *service) load(ctx context.Context, userID, fileID uuid.UUID) (*models.File, error) {
	file, err := s.files.FindByID(ctx, userID, fileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "File not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load file")
	}
	return file, nil
}
