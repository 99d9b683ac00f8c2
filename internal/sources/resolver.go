// Package sources owns inventory source persistence, sheet ingestion and the rule that
// decides which sources count toward a user's inventory.
package sources

import (
	"context"
	"fmt"
	"sort"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Scope is the set of sources a user's inventory view is built from. Uploaded and manual
// sources are always in scope; a Google Sheet source only when its tab is active.
type Scope struct {
	UserID uuid.UUID
	active map[string]struct{}
}

// NewScope builds a scope from the user's active sheet source ids.
func NewScope(userID uuid.UUID, activeSourceIDs []string) Scope {
	active := make(map[string]struct{}, len(activeSourceIDs))
	for _, id := range activeSourceIDs {
		active[id] = struct{}{}
	}
	return Scope{UserID: userID, active: active}
}

// Includes is the only in-scope predicate.
func (s Scope) Includes(sourceType enums.SourceType, sourceID string) bool {
	if sourceType != enums.SourceTypeGoogleSheet {
		return true
	}
	_, ok := s.active[sourceID]
	return ok
}

// ActiveSourceIDs returns the active sheet keys in a stable order.
func (s Scope) ActiveSourceIDs() []string {
	ids := lo.Keys(s.active)
	sort.Strings(ids)
	return ids
}

type activeSheetLister interface {
	ListActive(ctx context.Context, userID uuid.UUID) ([]models.ActiveSheet, error)
}

type scopedSourceLister interface {
	ListInScope(ctx context.Context, scope Scope) ([]models.InventorySource, error)
}

// Resolver computes scopes and loads in-scope sources.
type Resolver struct {
	sheets  activeSheetLister
	sources scopedSourceLister
}

func NewResolver(sheets activeSheetLister, sources scopedSourceLister) (*Resolver, error) {
	if sheets == nil {
		return nil, fmt.Errorf("active sheet lister required")
	}
	if sources == nil {
		return nil, fmt.Errorf("source lister required")
	}
	return &Resolver{sheets: sheets, sources: sources}, nil
}

// ResolveInScope loads the user's active sheets and returns the resulting scope.
func (r *Resolver) ResolveInScope(ctx context.Context, userID uuid.UUID) (Scope, error) {
	active, err := r.sheets.ListActive(ctx, userID)
	if err != nil {
		return Scope{}, fmt.Errorf("list active sheets: %w", err)
	}
	ids := lo.Map(active, func(a models.ActiveSheet, _ int) string {
		return models.SheetSourceID(a.SpreadsheetID, a.SheetName)
	})
	return NewScope(userID, ids), nil
}

// InScopeSources resolves the scope and returns the sources it admits.
func (r *Resolver) InScopeSources(ctx context.Context, userID uuid.UUID) ([]models.InventorySource, Scope, error) {
	scope, err := r.ResolveInScope(ctx, userID)
	if err != nil {
		return nil, Scope{}, err
	}
	list, err := r.sources.ListInScope(ctx, scope)
	if err != nil {
		return nil, Scope{}, fmt.Errorf("list in-scope sources: %w", err)
	}
	list = lo.Filter(list, func(src models.InventorySource, _ int) bool {
		return src.UserID == userID && scope.Includes(src.SourceType, src.SourceID)
	})
	return list, scope, nil
}
