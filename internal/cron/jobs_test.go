package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/finxan/finxan-backend/internal/alerts"
	"github.com/finxan/finxan-backend/internal/sources"
	"github.com/finxan/finxan-backend/pkg/db/models"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

type pagedSheets struct {
	all   []models.ConnectedSheet
	calls int
}

func (p *pagedSheets) ListAllConnected(_ context.Context, after uuid.UUID, limit int) ([]models.ConnectedSheet, error) {
	p.calls++
	start := 0
	if after != uuid.Nil {
		for i, s := range p.all {
			if s.ID == after {
				start = i + 1
			}
		}
	}
	end := start + limit
	if end > len(p.all) {
		end = len(p.all)
	}
	return p.all[start:end], nil
}

type scriptedSyncer struct {
	errs   map[string]error
	synced []string
}

func (s *scriptedSyncer) SyncConnected(_ context.Context, sheet models.ConnectedSheet) (*sources.SyncResult, error) {
	if err := s.errs[sheet.SheetName]; err != nil {
		return nil, err
	}
	s.synced = append(s.synced, sheet.SheetName)
	return &sources.SyncResult{SheetName: sheet.SheetName}, nil
}

func connectedSheets(names ...string) []models.ConnectedSheet {
	out := make([]models.ConnectedSheet, len(names))
	for i, name := range names {
		out[i] = models.ConnectedSheet{ID: uuid.New(), UserID: uuid.New(), SpreadsheetID: "sheet-1", SheetName: name}
	}
	return out
}

func TestSheetResyncJobIsolatesFailures(t *testing.T) {
	lister := &pagedSheets{all: connectedSheets("a", "b", "c", "d", "e")}
	syncer := &scriptedSyncer{errs: map[string]error{
		"b": pkgerrors.New(pkgerrors.CodeEmptySource, "Sheet is empty or has no data"),
		"c": pkgerrors.New(pkgerrors.CodeSourceUnavailable, "timeout"),
		"d": errors.New("db down"),
	}}
	job, err := NewSheetResyncJob(SheetResyncJobParams{Logger: logger.Nop(), Sheets: lister, Syncer: syncer, BatchSize: 2})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "sheet-resync" {
		t.Fatalf("unexpected job name %s", job.Name())
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected the hard failure to be reported")
	}
	if n := len(multierr.Errors(err)); n != 1 {
		t.Fatalf("expected 1 error, got %d: %v", n, err)
	}
	if len(syncer.synced) != 2 || syncer.synced[0] != "a" || syncer.synced[1] != "e" {
		t.Fatalf("unexpected synced sheets %v", syncer.synced)
	}
	if lister.calls != 3 {
		t.Fatalf("expected 3 pages, got %d", lister.calls)
	}
}

type fakeTenants struct {
	ids []uuid.UUID
	err error
}

func (f fakeTenants) UserIDsWithSources(context.Context) ([]uuid.UUID, error) {
	return f.ids, f.err
}

type fakeEngine struct {
	results map[uuid.UUID]*alerts.GenerateResult
	errs    map[uuid.UUID]error
	scanned []uuid.UUID
}

func (f *fakeEngine) GenerateAlerts(_ context.Context, userID uuid.UUID) (*alerts.GenerateResult, error) {
	f.scanned = append(f.scanned, userID)
	if err := f.errs[userID]; err != nil {
		return nil, err
	}
	if res, ok := f.results[userID]; ok {
		return res, nil
	}
	return &alerts.GenerateResult{}, nil
}

func TestAlertScanJobScansEveryTenant(t *testing.T) {
	ok, busy, broken := uuid.New(), uuid.New(), uuid.New()
	engine := &fakeEngine{
		results: map[uuid.UUID]*alerts.GenerateResult{
			ok:   {Created: []models.Alert{{}, {}}},
			busy: {Skipped: true},
		},
		errs: map[uuid.UUID]error{broken: errors.New("store unavailable")},
	}
	job, err := NewAlertScanJob(AlertScanJobParams{
		Logger:  logger.Nop(),
		Tenants: fakeTenants{ids: []uuid.UUID{broken, ok, busy}},
		Engine:  engine,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error from failing tenant")
	}
	if len(engine.scanned) != 3 {
		t.Fatalf("every tenant should be scanned, got %d", len(engine.scanned))
	}
}

func TestAlertScanJobListFailure(t *testing.T) {
	job, _ := NewAlertScanJob(AlertScanJobParams{
		Logger:  logger.Nop(),
		Tenants: fakeTenants{err: errors.New("boom")},
		Engine:  &fakeEngine{},
	})
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected list error")
	}
}
