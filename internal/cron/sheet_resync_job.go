package cron

import (
	"context"
	"fmt"

	"github.com/finxan/finxan-backend/internal/sources"
	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const defaultResyncBatch = 100

type connectedSheetLister interface {
	ListAllConnected(ctx context.Context, after uuid.UUID, limit int) ([]models.ConnectedSheet, error)
}

type sheetSyncer interface {
	SyncConnected(ctx context.Context, sheet models.ConnectedSheet) (*sources.SyncResult, error)
}

type SheetResyncJobParams struct {
	Logger    *logger.Logger
	Sheets    connectedSheetLister
	Syncer    sheetSyncer
	BatchSize int
}

// NewSheetResyncJob refreshes every connected sheet tab. One tab failing does not stop the
// rest; empty or unreachable tabs keep their previous data.
func NewSheetResyncJob(params SheetResyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sheets == nil {
		return nil, fmt.Errorf("sheet repository required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("sheet syncer required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultResyncBatch
	}
	return &sheetResyncJob{logg: params.Logger, sheets: params.Sheets, syncer: params.Syncer, batch: batch}, nil
}

type sheetResyncJob struct {
	logg   *logger.Logger
	sheets connectedSheetLister
	syncer sheetSyncer
	batch  int
}

func (j *sheetResyncJob) Name() string { return "sheet-resync" }

func (j *sheetResyncJob) Run(ctx context.Context) error {
	var errs error
	synced, skipped := 0, 0
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		page, err := j.sheets.ListAllConnected(ctx, after, j.batch)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list connected sheets: %w", err))
		}
		for _, sheet := range page {
			logCtx := j.logg.WithSource(j.logg.WithUserID(ctx, sheet.UserID.String()), enums.SourceTypeGoogleSheet.String(), sheet.SourceID())
			if _, err := j.syncer.SyncConnected(logCtx, sheet); err != nil {
				if pkgerrors.IsCode(err, pkgerrors.CodeEmptySource) || pkgerrors.IsCode(err, pkgerrors.CodeSourceUnavailable) {
					j.logg.WarnErr(logCtx, "sheet resync skipped", err)
					skipped++
					continue
				}
				errs = multierr.Append(errs, fmt.Errorf("sync %s: %w", sheet.SourceID(), err))
				continue
			}
			synced++
		}
		if len(page) < j.batch {
			break
		}
		after = page[len(page)-1].ID
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{"synced": synced, "skipped": skipped}), "sheet resync complete")
	return errs
}
