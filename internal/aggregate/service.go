package aggregate

import (
	"context"
	"fmt"

	"github.com/finxan/finxan-backend/internal/sources"
	"github.com/finxan/finxan-backend/pkg/db/models"
	pkgerrors "github.com/finxan/finxan-backend/pkg/errors"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/finxan/finxan-backend/pkg/pagination"
	"github.com/google/uuid"
)

const (
	dashboardLowStockItems = 5
	defaultDisplayLimit    = 20
	defaultABCTopN         = 50

	MessageEmptyListing = "No inventory data found. Upload a file or activate a Google Sheet."
	MessageUnavailable  = "No data available. Inventory could not be loaded, try again shortly."
)

// View is the flattened inventory of one user. Available is false when the store could not
// be read, which callers must keep distinct from an empty inventory.
type View struct {
	UserID      uuid.UUID
	Available   bool
	SourceCount int
	Scope       sources.Scope
	Items       []FlatItem
}

type sourceLoader interface {
	InScopeSources(ctx context.Context, userID uuid.UUID) ([]models.InventorySource, sources.Scope, error)
}

type fileCounter interface {
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Service exposes the read-side inventory views.
type Service interface {
	Aggregate(ctx context.Context, userID uuid.UUID) (*View, error)
	Dashboard(ctx context.Context, userID uuid.UUID) (*DashboardDTO, error)
	Stats(ctx context.Context, userID uuid.UUID) (*InventoryStatsDTO, error)
	Analytics(ctx context.Context, userID uuid.UUID, topN int) (*AnalyticsDTO, error)
	ListItems(ctx context.Context, userID uuid.UUID, params ListParams) (*ItemPageDTO, error)
	LowStock(ctx context.Context, userID uuid.UUID) (*LowStockDTO, error)
	AIContext(ctx context.Context, userID uuid.UUID) AIContext
}

type ServiceParams struct {
	Sources          sourceLoader
	Files            fileCounter
	DisplayThreshold int
	ContextLimits    ContextLimits
	Logger           *logger.Logger
}

type service struct {
	sources          sourceLoader
	files            fileCounter
	displayThreshold int
	limits           ContextLimits
	logg             *logger.Logger
}

func NewService(p ServiceParams) (Service, error) {
	if p.Sources == nil {
		return nil, fmt.Errorf("source loader required")
	}
	if p.Files == nil {
		return nil, fmt.Errorf("file counter required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	threshold := p.DisplayThreshold
	if threshold <= 0 {
		threshold = defaultDisplayLimit
	}
	return &service{
		sources:          p.Sources,
		files:            p.Files,
		displayThreshold: threshold,
		limits:           p.ContextLimits.normalize(),
		logg:             logg,
	}, nil
}

// Aggregate flattens every in-scope source of the user. On a store failure it returns a
// non-nil view with Available=false together with the error.
func (s *service) Aggregate(ctx context.Context, userID uuid.UUID) (*View, error) {
	srcs, scope, err := s.sources.InScopeSources(ctx, userID)
	if err != nil {
		return &View{UserID: userID}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory sources")
	}
	return &View{
		UserID:      userID,
		Available:   true,
		SourceCount: len(srcs),
		Scope:       scope,
		Items:       Flatten(srcs),
	}, nil
}

// load is Aggregate for the read views: a store failure is logged and the degraded view is
// returned so every DTO can render an explicit "no data available" state.
func (s *service) load(ctx context.Context, userID uuid.UUID) *View {
	view, err := s.Aggregate(ctx, userID)
	if err != nil {
		s.logg.WarnErr(ctx, "inventory view degraded", err)
	}
	return view
}

func unavailableMessage(view *View) string {
	if view.Available {
		return ""
	}
	return MessageUnavailable
}

func (s *service) Dashboard(ctx context.Context, userID uuid.UUID) (*DashboardDTO, error) {
	view := s.load(ctx, userID)
	files, err := s.files.CountByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count files")
	}
	stats := ComputeStats(view.Items)
	low := LowStockItems(view.Items)
	if len(low) > dashboardLowStockItems {
		low = low[:dashboardLowStockItems]
	}
	return &DashboardDTO{
		Available: view.Available,
		Message:   unavailableMessage(view),
		Stats: DashboardStats{
			TotalProducts:   stats.TotalProducts,
			TotalQuantity:   stats.TotalQuantity,
			TotalValue:      Money(stats.TotalValue),
			LowStockCount:   stats.Status.LowStock,
			OutOfStockCount: stats.Status.OutOfStock,
			CategoriesCount: stats.CategoriesCount,
			FilesCount:      int(files),
			ActiveSheets:    len(view.Scope.ActiveSourceIDs()),
		},
		LowStockItems: nonNil(low),
	}, nil
}

func (s *service) Stats(ctx context.Context, userID uuid.UUID) (*InventoryStatsDTO, error) {
	view := s.load(ctx, userID)
	stats := ComputeStats(view.Items)
	return &InventoryStatsDTO{
		Available:       view.Available,
		Message:         unavailableMessage(view),
		TotalItems:      stats.TotalQuantity,
		TotalValue:      MoneyString(stats.TotalValue),
		LowStockCount:   stats.Status.LowStock,
		OutOfStockCount: stats.Status.OutOfStock,
		TotalProducts:   stats.TotalProducts,
	}, nil
}

func (s *service) Analytics(ctx context.Context, userID uuid.UUID, topN int) (*AnalyticsDTO, error) {
	view := s.load(ctx, userID)
	if topN <= 0 {
		topN = defaultABCTopN
	}
	dto := NewAnalyticsDTO(view.Items, topN, s.displayThreshold)
	dto.Available = view.Available
	dto.Message = unavailableMessage(view)
	return dto, nil
}

// ListParams filters and pages the inventory listing.
type ListParams struct {
	Filter Filter
	Page   pagination.Page
}

func (s *service) ListItems(ctx context.Context, userID uuid.UUID, params ListParams) (*ItemPageDTO, error) {
	view := s.load(ctx, userID)
	page := params.Page.Normalize()
	if !view.Available {
		return &ItemPageDTO{Items: []FlatItem{}, CurrentPage: page.Page, Message: MessageUnavailable}, nil
	}
	if view.SourceCount == 0 {
		return &ItemPageDTO{Items: []FlatItem{}, CurrentPage: page.Page, Available: true, Message: MessageEmptyListing}, nil
	}
	items := params.Filter.Apply(view.Items)
	start, end := page.Bounds(len(items))
	return &ItemPageDTO{
		Available:   true,
		Items:       nonNil(items[start:end]),
		Count:       len(items),
		TotalPages:  page.TotalPages(len(items)),
		CurrentPage: page.Page,
	}, nil
}

func (s *service) LowStock(ctx context.Context, userID uuid.UUID) (*LowStockDTO, error) {
	view := s.load(ctx, userID)
	items := nonNil(LowStockItems(view.Items))
	return &LowStockDTO{
		Items:     items,
		Count:     len(items),
		Available: view.Available,
		Message:   unavailableMessage(view),
	}, nil
}

// AIContext never fails; a store error degrades to a HasData=false digest.
func (s *service) AIContext(ctx context.Context, userID uuid.UUID) AIContext {
	view, err := s.Aggregate(ctx, userID)
	if err != nil {
		s.logg.WarnErr(ctx, "inventory context unavailable", err)
	}
	return BuildAIContext(view, s.limits)
}

func nonNil(items []FlatItem) []FlatItem {
	if items == nil {
		return []FlatItem{}
	}
	return items
}
