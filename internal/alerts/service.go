package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/finxan/finxan-backend/pkg/enums"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/finxan/finxan-backend/pkg/pagination"
	"github.com/google/uuid"
)

const statusAll = "all"

type generator interface {
	GenerateAlerts(ctx context.Context, userID uuid.UUID) (*GenerateResult, error)
}

// Service is the alert surface used by controllers.
type Service interface {
	Generate(ctx context.Context, userID uuid.UUID) (*GenerateDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	UpdateStatus(ctx context.Context, userID, alertID uuid.UUID, status enums.AlertStatus) (*AlertDTO, error)
	DismissAll(ctx context.Context, userID uuid.UUID) (int64, error)
}

type service struct {
	repo   *Repository
	engine generator
	now    func() time.Time
}

func NewService(repo *Repository, engine generator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("alerts repository required")
	}
	if engine == nil {
		return nil, fmt.Errorf("alert engine required")
	}
	return &service{repo: repo, engine: engine, now: time.Now}, nil
}

func (s *service) Generate(ctx context.Context, userID uuid.UUID) (*GenerateDTO, error) {
	result, err := s.engine.GenerateAlerts(ctx, userID)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate alerts")
	}
	if result.Skipped {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "An alert scan is already running")
	}
	return &GenerateDTO{
		AlertsCreated: result.Count(),
		Message:       fmt.Sprintf("Generated %d new alerts", result.Count()),
		Alerts:        fromModels(result.Created),
	}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	status, err := parseStatusFilter(params.Status)
	if err != nil {
		return nil, err
	}

	query := listParams{UserID: params.UserID, Status: status, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list alerts")
	}
	total, err := s.repo.Count(ctx, params.UserID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count alerts")
	}
	byType, err := s.repo.ActiveCountsByType(ctx, params.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active alerts")
	}

	result := &ListResult{
		Alerts: fromModels(rows),
		Stats: Stats{
			Total:      total,
			Critical:   byType[enums.AlertTypeCritical],
			LowStock:   byType[enums.AlertTypeLowStock],
			OutOfStock: byType[enums.AlertTypeOutOfStock],
		},
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func parseStatusFilter(raw string) (*enums.AlertStatus, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case statusAll:
		return nil, nil
	case "":
		active := enums.AlertStatusActive
		return &active, nil
	}
	status, err := enums.ParseAlertStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
	}
	return &status, nil
}

// UpdateStatus resolves or dismisses one active alert. Unknown, foreign and already closed
// alerts are all reported as not found.
func (s *service) UpdateStatus(ctx context.Context, userID, alertID uuid.UUID, status enums.AlertStatus) (*AlertDTO, error) {
	if alertID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "alert id required")
	}
	var resolvedAt *time.Time
	switch status {
	case enums.AlertStatusResolved:
		now := s.now().UTC()
		resolvedAt = &now
	case enums.AlertStatusDismissed:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be resolved or dismissed")
	}

	updated, err := s.repo.Transition(ctx, userID, alertID, status, resolvedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update alert")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Alert not found")
	}
	alert, err := s.repo.FindByID(ctx, userID, alertID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load alert")
	}
	dto := FromModel(*alert)
	return &dto, nil
}

func (s *service) DismissAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.repo.DismissAll(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dismiss alerts")
	}
	return count, nil
}
