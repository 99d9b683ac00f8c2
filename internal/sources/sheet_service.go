package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/finxan/finxan-backend/internal/normalize"
	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/finxan/finxan-backend/pkg/metrics"
	"github.com/finxan/finxan-backend/pkg/sheets"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const defaultSpreadsheetTitle = "Untitled"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SheetServiceParams wires the sheet ingestion service.
type SheetServiceParams struct {
	DB      txRunner
	Sources *Repository
	Sheets  *SheetRepository
	Fetcher sheets.Fetcher
	Metrics *metrics.IngestMetrics
	Logger  *logger.Logger
}

// SheetService connects, syncs and toggles Google Sheet sources.
type SheetService struct {
	db      txRunner
	sources *Repository
	sheets  *SheetRepository
	fetcher sheets.Fetcher
	metrics *metrics.IngestMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewSheetService(p SheetServiceParams) (*SheetService, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if p.Sources == nil || p.Sheets == nil {
		return nil, fmt.Errorf("source repositories required")
	}
	if p.Fetcher == nil {
		return nil, fmt.Errorf("sheet fetcher required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &SheetService{
		db:      p.DB,
		sources: p.Sources,
		sheets:  p.Sheets,
		fetcher: p.Fetcher,
		metrics: p.Metrics,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Preview lists the tabs of a spreadsheet with their first rows.
func (s *SheetService) Preview(ctx context.Context, spreadsheetID string) (*sheets.SpreadsheetPreview, error) {
	id := SpreadsheetIDFrom(spreadsheetID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Spreadsheet ID is required")
	}
	return s.fetcher.Preview(ctx, id)
}

// Connect links a sheet tab. The first connect creates the source and the connected row;
// connecting an already linked tab refreshes its data instead.
func (s *SheetService) Connect(ctx context.Context, userID uuid.UUID, input ConnectInput) (*ConnectResult, error) {
	ref, err := validateRef(userID, input.SpreadsheetID, input.SheetName)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.SpreadsheetTitle)
	if title == "" {
		title = defaultSpreadsheetTitle
	}

	items, err := s.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sourceID := models.SheetSourceID(ref.SpreadsheetID, ref.SheetName)
	result := &ConnectResult{Rows: len(items), SheetName: ref.SheetName}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		sheetRepo := s.sheets.WithTx(tx)
		existing, err := sheetRepo.FindConnected(ctx, userID, ref.SpreadsheetID, ref.SheetName)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		spreadsheetID := ref.SpreadsheetID
		if err := s.sources.WithTx(tx).Upsert(ctx, &models.InventorySource{
			UserID:        userID,
			SourceType:    enums.SourceTypeGoogleSheet,
			SourceID:      sourceID,
			SpreadsheetID: &spreadsheetID,
			Data:          items,
			LastSynced:    &now,
		}); err != nil {
			return err
		}

		if existing != nil {
			result.Refreshed = true
			return sheetRepo.MarkSynced(ctx, existing.ID, len(items), now)
		}
		return sheetRepo.CreateConnected(ctx, &models.ConnectedSheet{
			UserID:           userID,
			SpreadsheetID:    ref.SpreadsheetID,
			SheetName:        ref.SheetName,
			SpreadsheetTitle: title,
			RowCount:         len(items),
			LastSynced:       &now,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "connect sheet")
	}

	if result.Refreshed {
		result.Message = "Sheet already connected. Data refreshed."
	} else {
		result.Message = "Sheet connected successfully"
	}
	return result, nil
}

// Sync refetches a connected tab and replaces its data.
func (s *SheetService) Sync(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) (*SyncResult, error) {
	ref, err := validateRef(userID, spreadsheetID, sheetName)
	if err != nil {
		return nil, err
	}
	sheet, err := s.sheets.FindConnected(ctx, userID, ref.SpreadsheetID, ref.SheetName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Sheet not found in connected sheets")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load connected sheet")
	}
	return s.SyncConnected(ctx, *sheet)
}

// SyncConnected refreshes one connected tab. On EmptySource or SourceUnavailable the stored
// data is left as it was.
func (s *SheetService) SyncConnected(ctx context.Context, sheet models.ConnectedSheet) (*SyncResult, error) {
	ref := SheetRef{SpreadsheetID: sheet.SpreadsheetID, SheetName: sheet.SheetName}
	items, err := s.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	spreadsheetID := sheet.SpreadsheetID
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		sourceRepo := s.sources.WithTx(tx)
		replaced, err := sourceRepo.ReplaceData(ctx, sheet.UserID, sheet.SourceID(), items, now)
		if err != nil {
			return err
		}
		if !replaced {
			s.logg.Warn(ctx, "sheet source missing, recreating")
			if err := sourceRepo.Upsert(ctx, &models.InventorySource{
				UserID:        sheet.UserID,
				SourceType:    enums.SourceTypeGoogleSheet,
				SourceID:      sheet.SourceID(),
				SpreadsheetID: &spreadsheetID,
				Data:          items,
				LastSynced:    &now,
			}); err != nil {
				return err
			}
		}
		return s.sheets.WithTx(tx).MarkSynced(ctx, sheet.ID, len(items), now)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sync sheet")
	}

	logCtx := s.logg.WithSource(ctx, enums.SourceTypeGoogleSheet.String(), sheet.SourceID())
	s.logg.Info(s.logg.WithField(logCtx, "rows", len(items)), "sheet synced")
	return &SyncResult{Rows: len(items), SheetName: sheet.SheetName, LastSynced: now}, nil
}

// Disconnect removes the connected row, the active row and the source data together.
func (s *SheetService) Disconnect(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) error {
	ref, err := validateRef(userID, spreadsheetID, sheetName)
	if err != nil {
		return err
	}
	sourceID := models.SheetSourceID(ref.SpreadsheetID, ref.SheetName)

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		sheetRepo := s.sheets.WithTx(tx)
		removed, err := sheetRepo.DeleteConnected(ctx, userID, ref.SpreadsheetID, ref.SheetName)
		if err != nil {
			return err
		}
		if removed == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Sheet not found in connected sheets")
		}
		if _, err := sheetRepo.RemoveActive(ctx, userID, sourceID); err != nil {
			return err
		}
		_, err = s.sources.WithTx(tx).Delete(ctx, userID, sourceID)
		return err
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "disconnect sheet")
	}

	s.logg.Info(s.logg.WithSource(ctx, enums.SourceTypeGoogleSheet.String(), sourceID), "sheet disconnected")
	return nil
}

// Activate adds a connected tab to the in-scope set. Activating twice is a no-op.
func (s *SheetService) Activate(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) (*ActivationResult, error) {
	ref, err := validateRef(userID, spreadsheetID, sheetName)
	if err != nil {
		return nil, err
	}
	if _, err := s.sheets.FindConnected(ctx, userID, ref.SpreadsheetID, ref.SheetName); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Sheet not found in connected sheets")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load connected sheet")
	}

	added, err := s.sheets.AddActive(ctx, &models.ActiveSheet{
		UserID:        userID,
		SpreadsheetID: ref.SpreadsheetID,
		SheetName:     ref.SheetName,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate sheet")
	}
	if !added {
		return &ActivationResult{Message: "Sheet already active"}, nil
	}
	return &ActivationResult{Changed: true, Message: fmt.Sprintf("%q activated", ref.SheetName)}, nil
}

// Deactivate drops a tab from the in-scope set; its data stays stored.
func (s *SheetService) Deactivate(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) (*ActivationResult, error) {
	ref, err := validateRef(userID, spreadsheetID, sheetName)
	if err != nil {
		return nil, err
	}
	removed, err := s.sheets.RemoveActive(ctx, userID, models.SheetSourceID(ref.SpreadsheetID, ref.SheetName))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate sheet")
	}
	return &ActivationResult{Changed: removed > 0, Message: fmt.Sprintf("%q deactivated", ref.SheetName)}, nil
}

func (s *SheetService) ListConnected(ctx context.Context, userID uuid.UUID) ([]ConnectedSheetDTO, error) {
	connected, err := s.sheets.ListConnected(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list connected sheets")
	}
	active, err := s.sheets.ListActive(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list active sheets")
	}
	scope := NewScope(userID, lo.Map(active, func(a models.ActiveSheet, _ int) string { return a.SourceID }))

	return lo.Map(connected, func(c models.ConnectedSheet, _ int) ConnectedSheetDTO {
		return connectedFromModel(c, scope.Includes(enums.SourceTypeGoogleSheet, c.SourceID()))
	}), nil
}

func (s *SheetService) ListActive(ctx context.Context, userID uuid.UUID) ([]ActiveSheetDTO, error) {
	active, err := s.sheets.ListActive(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list active sheets")
	}
	return lo.Map(active, func(a models.ActiveSheet, _ int) ActiveSheetDTO { return activeFromModel(a) }), nil
}

func (s *SheetService) fetch(ctx context.Context, ref SheetRef) ([]models.InventoryItem, error) {
	sourceType := enums.SourceTypeGoogleSheet.String()
	raw, err := s.fetcher.FetchRows(ctx, ref.SpreadsheetID, ref.SheetName)
	if err != nil {
		outcome := metrics.OutcomeFailed
		if pkgerrors.IsCode(err, pkgerrors.CodeEmptySource) {
			outcome = metrics.OutcomeEmpty
		}
		s.metrics.Observe(sourceType, outcome, 0)
		s.logg.WarnErr(s.logg.WithSource(ctx, sourceType, models.SheetSourceID(ref.SpreadsheetID, ref.SheetName)), "sheet fetch failed", err)
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeSourceUnavailable, err, "fetch sheet rows")
		}
		return nil, err
	}

	rows := make([]normalize.RawRow, len(raw))
	for i, r := range raw {
		rows[i] = normalize.RawRow(r)
	}
	items := normalize.Rows(rows)
	s.metrics.Observe(sourceType, metrics.OutcomeSuccess, len(items))
	return items, nil
}

func validateRef(userID uuid.UUID, spreadsheetID, sheetName string) (SheetRef, error) {
	if userID == uuid.Nil {
		return SheetRef{}, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	ref := SheetRef{SpreadsheetID: SpreadsheetIDFrom(spreadsheetID), SheetName: strings.TrimSpace(sheetName)}
	if ref.SpreadsheetID == "" || ref.SheetName == "" {
		return SheetRef{}, pkgerrors.New(pkgerrors.CodeValidation, "Spreadsheet ID and sheet name are required")
	}
	return ref, nil
}

// SpreadsheetIDFrom accepts either a bare id or a docs.google.com spreadsheet URL.
func SpreadsheetIDFrom(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "/") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "d" {
			return parts[i+1]
		}
	}
	return raw
}
