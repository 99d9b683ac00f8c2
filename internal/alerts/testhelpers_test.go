package alerts

import (
	"context"
	"testing"

	"github.com/finxan/finxan-backend/internal/aggregate"
	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/finxan/finxan-backend/pkg/logger"
	"github.com/finxan/finxan-backend/pkg/migrate/migratetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return migratetest.NewSQLite(t)
}

func seedUser(t *testing.T, conn *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		ID:             uuid.New(),
		FirebaseUID:    "fb-" + uuid.NewString(),
		Email:          "owner@example.com",
		DisplayName:    "Owner",
		NotifyLowStock: true,
	}
	require.NoError(t, conn.Create(user).Error)
	return user
}

type stubView struct {
	items []aggregate.FlatItem
	err   error
	calls int
}

func (s *stubView) Aggregate(_ context.Context, userID uuid.UUID) (*aggregate.View, error) {
	s.calls++
	if s.err != nil {
		return &aggregate.View{UserID: userID}, s.err
	}
	return &aggregate.View{UserID: userID, Available: true, SourceCount: 1, Items: s.items}, nil
}

func flat(name, sku string, qty, threshold int) aggregate.FlatItem {
	return aggregate.FlatItem{
		InventoryItem: models.InventoryItem{
			ProductName:       name,
			SKU:               sku,
			Category:          "General",
			Quantity:          qty,
			Price:             1,
			LowStockThreshold: threshold,
		},
		SourceType: enums.SourceTypeCSV,
		SourceID:   "file-1",
	}
}

func nopLogger() *logger.Logger {
	return logger.Nop()
}
