package controllers

import (
	"context"
	"net/http"

	"github.com/finxan/finxan-backend/api/responses"
	"github.com/finxan/finxan-backend/api/validators"
	"github.com/finxan/finxan-backend/internal/sources"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/finxan/finxan-backend/pkg/sheets"
	"github.com/google/uuid"
)

// SheetsService is implemented by sources.SheetService.
type SheetsService interface {
	Preview(ctx context.Context, spreadsheetID string) (*sheets.SpreadsheetPreview, error)
	Connect(ctx context.Context, userID uuid.UUID, input sources.ConnectInput) (*sources.ConnectResult, error)
	Sync(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) (*sources.SyncResult, error)
	Disconnect(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) error
	Activate(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) (*sources.ActivationResult, error)
	Deactivate(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) (*sources.ActivationResult, error)
	ListConnected(ctx context.Context, userID uuid.UUID) ([]sources.ConnectedSheetDTO, error)
	ListActive(ctx context.Context, userID uuid.UUID) ([]sources.ActiveSheetDTO, error)
}

type previewSheetRequest struct {
	SpreadsheetID string `json:"spreadsheetId" validate:"required,max=512"`
}

type connectSheetRequest struct {
	SpreadsheetID    string `json:"spreadsheetId" validate:"required,max=512"`
	SheetName        string `json:"sheetName" validate:"required,max=200"`
	SpreadsheetTitle string `json:"spreadsheetTitle" validate:"max=300"`
}

type sheetRefRequest struct {
	SpreadsheetID string `json:"spreadsheetId" validate:"required,max=512"`
	SheetName     string `json:"sheetName" validate:"required,max=200"`
}

// PreviewSheet lists the tabs of a spreadsheet. spreadsheetId may be a full sheet URL.
func PreviewSheet(svc SheetsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sheets"))
			return
		}
		if _, err := requireUser(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req previewSheetRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		preview, err := svc.Preview(r.Context(), req.SpreadsheetID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

func ConnectSheet(svc SheetsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sheets"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req connectSheetRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Connect(r.Context(), userID, sources.ConnectInput{
			SpreadsheetID:    req.SpreadsheetID,
			SheetName:        req.SheetName,
			SpreadsheetTitle: validators.SanitizeString(req.SpreadsheetTitle, 300),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.Refreshed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

func ListSheets(svc SheetsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sheets"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListConnected(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"sheets": list})
	}
}

func ListActiveSheets(svc SheetsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sheets"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListActive(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"activeSheets": list})
	}
}

func SyncSheet(svc SheetsService, logg *logger.Logger) http.HandlerFunc {
	return sheetRefHandler(svc, logg, func(ctx context.Context, userID uuid.UUID, req sheetRefRequest) (any, error) {
		return svc.Sync(ctx, userID, req.SpreadsheetID, req.SheetName)
	})
}

func DisconnectSheet(svc SheetsService, logg *logger.Logger) http.HandlerFunc {
	return sheetRefHandler(svc, logg, func(ctx context.Context, userID uuid.UUID, req sheetRefRequest) (any, error) {
		if err := svc.Disconnect(ctx, userID, req.SpreadsheetID, req.SheetName); err != nil {
			return nil, err
		}
		return map[string]string{"message": "Sheet disconnected"}, nil
	})
}

// ActivateSheet adds the tab to the active set. Activating twice is a no-op.
func ActivateSheet(svc SheetsService, logg *logger.Logger) http.HandlerFunc {
	return sheetRefHandler(svc, logg, func(ctx context.Context, userID uuid.UUID, req sheetRefRequest) (any, error) {
		return svc.Activate(ctx, userID, req.SpreadsheetID, req.SheetName)
	})
}

func DeactivateSheet(svc SheetsService, logg *logger.Logger) http.HandlerFunc {
	return sheetRefHandler(svc, logg, func(ctx context.Context, userID uuid.UUID, req sheetRefRequest) (any, error) {
		return svc.Deactivate(ctx, userID, req.SpreadsheetID, req.SheetName)
	})
}

func sheetRefHandler(svc SheetsService, logg *logger.Logger, run func(context.Context, uuid.UUID, sheetRefRequest) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sheets"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req sheetRefRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out, err := run(r.Context(), userID, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
