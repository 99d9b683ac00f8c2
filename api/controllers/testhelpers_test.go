package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finxan/finxan-backend/api/middleware"
	"github.com/finxan/finxan-backend/internal/aggregate"
	"github.com/finxan/finxan-backend/internal/alerts"
	"github.com/finxan/finxan-backend/internal/chat"
	"github.com/finxan/finxan-backend/internal/files"
	"github.com/finxan/finxan-backend/internal/sources"
	"github.com/finxan/finxan-backend/internal/users"
	pkgAuth "github.com/finxan/finxan-backend/pkg/auth"
	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/finxan/finxan-backend/pkg/sheets"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func withParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error: %v (%s)", err, rec.Body.String())
	}
	return envelope.Error.Code
}

type stubInventory struct {
	listParams aggregate.ListParams
	topN       int
	err        error
}

func (s *stubInventory) Aggregate(ctx context.Context, userID uuid.UUID) (*aggregate.View, error) {
	return &aggregate.View{}, s.err
}

func (s *stubInventory) Dashboard(ctx context.Context, userID uuid.UUID) (*aggregate.DashboardDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &aggregate.DashboardDTO{Stats: aggregate.DashboardStats{TotalProducts: 3, FilesCount: 1}}, nil
}

func (s *stubInventory) Stats(ctx context.Context, userID uuid.UUID) (*aggregate.InventoryStatsDTO, error) {
	return &aggregate.InventoryStatsDTO{TotalItems: 3, TotalValue: "12.50"}, s.err
}

func (s *stubInventory) Analytics(ctx context.Context, userID uuid.UUID, topN int) (*aggregate.AnalyticsDTO, error) {
	s.topN = topN
	return &aggregate.AnalyticsDTO{}, s.err
}

func (s *stubInventory) ListItems(ctx context.Context, userID uuid.UUID, params aggregate.ListParams) (*aggregate.ItemPageDTO, error) {
	s.listParams = params
	if s.err != nil {
		return nil, s.err
	}
	return &aggregate.ItemPageDTO{Items: []aggregate.FlatItem{}, CurrentPage: params.Page.Page}, nil
}

func (s *stubInventory) LowStock(ctx context.Context, userID uuid.UUID) (*aggregate.LowStockDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	item := aggregate.FlatItem{InventoryItem: models.InventoryItem{ProductName: "Bolt", Quantity: 2}}
	return &aggregate.LowStockDTO{Items: []aggregate.FlatItem{item}, Count: 1, Available: true}, nil
}

type failingSourceLoader struct{}

func (failingSourceLoader) InScopeSources(ctx context.Context, userID uuid.UUID) ([]models.InventorySource, sources.Scope, error) {
	return nil, sources.Scope{}, errors.New("connection refused")
}

type zeroFileCounter struct{}

func (zeroFileCounter) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

func (s *stubInventory) AIContext(ctx context.Context, userID uuid.UUID) aggregate.AIContext {
	return aggregate.AIContext{}
}

type stubAlerts struct {
	listParams alerts.ListParams
	updated    enums.AlertStatus
	updateErr  error
}

func (s *stubAlerts) Generate(ctx context.Context, userID uuid.UUID) (*alerts.GenerateDTO, error) {
	return &alerts.GenerateDTO{AlertsCreated: 2, Alerts: []alerts.AlertDTO{}}, nil
}

func (s *stubAlerts) List(ctx context.Context, params alerts.ListParams) (*alerts.ListResult, error) {
	s.listParams = params
	return &alerts.ListResult{Alerts: []alerts.AlertDTO{}}, nil
}

func (s *stubAlerts) UpdateStatus(ctx context.Context, userID, alertID uuid.UUID, status enums.AlertStatus) (*alerts.AlertDTO, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.updated = status
	return &alerts.AlertDTO{ID: alertID, Status: status}, nil
}

func (s *stubAlerts) DismissAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 4, nil
}

type stubSheets struct {
	refreshed bool
	lastRef   sources.SheetRef
	err       error
}

func (s *stubSheets) Preview(ctx context.Context, spreadsheetID string) (*sheets.SpreadsheetPreview, error) {
	return &sheets.SpreadsheetPreview{SpreadsheetID: spreadsheetID}, s.err
}

func (s *stubSheets) Connect(ctx context.Context, userID uuid.UUID, input sources.ConnectInput) (*sources.ConnectResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastRef = sources.SheetRef{SpreadsheetID: input.SpreadsheetID, SheetName: input.SheetName}
	return &sources.ConnectResult{Rows: 3, SheetName: input.SheetName, Refreshed: s.refreshed}, nil
}

func (s *stubSheets) Sync(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) (*sources.SyncResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.lastRef = sources.SheetRef{SpreadsheetID: spreadsheetID, SheetName: sheetName}
	return &sources.SyncResult{Rows: 3, SheetName: sheetName}, nil
}

func (s *stubSheets) Disconnect(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) error {
	s.lastRef = sources.SheetRef{SpreadsheetID: spreadsheetID, SheetName: sheetName}
	return s.err
}

func (s *stubSheets) Activate(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) (*sources.ActivationResult, error) {
	s.lastRef = sources.SheetRef{SpreadsheetID: spreadsheetID, SheetName: sheetName}
	return &sources.ActivationResult{Changed: true}, s.err
}

func (s *stubSheets) Deactivate(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) (*sources.ActivationResult, error) {
	return &sources.ActivationResult{}, s.err
}

func (s *stubSheets) ListConnected(ctx context.Context, userID uuid.UUID) ([]sources.ConnectedSheetDTO, error) {
	return []sources.ConnectedSheetDTO{{SpreadsheetID: "abc", SheetName: "Stock", Active: true}}, s.err
}

func (s *stubSheets) ListActive(ctx context.Context, userID uuid.UUID) ([]sources.ActiveSheetDTO, error) {
	return []sources.ActiveSheetDTO{}, s.err
}

type stubFiles struct {
	uploaded *files.UploadInput
	err      error
}

func (s *stubFiles) Upload(ctx context.Context, userID uuid.UUID, input files.UploadInput) (*files.FileDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.uploaded = &input
	return &files.FileDTO{ID: uuid.New(), FileName: input.FileName, Status: enums.FileStatusProcessing}, nil
}

func (s *stubFiles) List(ctx context.Context, userID uuid.UUID) ([]files.FileDTO, error) {
	return []files.FileDTO{{FileName: "a.csv"}}, s.err
}

func (s *stubFiles) Get(ctx context.Context, userID, fileID uuid.UUID) (*files.FileDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &files.FileDTO{ID: fileID}, nil
}

func (s *stubFiles) Delete(ctx context.Context, userID, fileID uuid.UUID) error {
	return s.err
}

type stubChat struct {
	input   chat.SendInput
	deleted string
}

func (s *stubChat) SendMessage(ctx context.Context, userID uuid.UUID, input chat.SendInput) (*chat.SendResult, error) {
	s.input = input
	return &chat.SendResult{Response: "hi", SessionID: "session_1"}, nil
}

func (s *stubChat) NewSession(ctx context.Context, userID uuid.UUID) (string, error) {
	return "session_2", nil
}

func (s *stubChat) History(ctx context.Context, userID uuid.UUID, sessionID string) ([]models.ChatMessage, error) {
	return []models.ChatMessage{{Role: enums.ChatRoleUser, Content: "hello"}}, nil
}

func (s *stubChat) DeleteSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	s.deleted = sessionID
	return nil
}

type stubUsers struct {
	patch users.PreferencesPatch
	name  string
}

func (s *stubUsers) Resolve(ctx context.Context, identity pkgAuth.Identity) (*models.User, error) {
	return &models.User{ID: uuid.New()}, nil
}

func (s *stubUsers) Profile(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	return &users.UserDTO{ID: userID, Name: "Owner"}, nil
}

func (s *stubUsers) UpdateProfile(ctx context.Context, userID uuid.UUID, name string) (*users.UserDTO, error) {
	s.name = name
	return &users.UserDTO{ID: userID, Name: name}, nil
}

func (s *stubUsers) Preferences(ctx context.Context, userID uuid.UUID) (users.Preferences, error) {
	return users.DefaultPreferences(), nil
}

func (s *stubUsers) UpdatePreferences(ctx context.Context, userID uuid.UUID, patch users.PreferencesPatch) (users.Preferences, error) {
	s.patch = patch
	return patch.Resolve(), nil
}
