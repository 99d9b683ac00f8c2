package sources

import (
	"context"
	"testing"
	"time"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
	"github.com/finxan/finxan-backend/pkg/migrate/migratetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return migratetest.NewSQLite(t)
}

func seedUser(t *testing.T, conn *gorm.DB) uuid.UUID {
	t.Helper()
	user := &models.User{ID: uuid.New(), FirebaseUID: "fb-" + uuid.NewString()}
	require.NoError(t, conn.Create(user).Error)
	return user.ID
}

func items(n int, prefix string) []models.InventoryItem {
	out := make([]models.InventoryItem, n)
	for i := range out {
		out[i] = models.InventoryItem{
			ProductName: prefix,
			SKU:         prefix + "-" + uuid.NewString()[:8],
			Category:    "General",
			Quantity:    20,
			Price:       1,
			Status:      enums.StockStatusInStock,
		}
	}
	return out
}

func seedSource(t *testing.T, repo *Repository, userID uuid.UUID, st enums.SourceType, sourceID string, data []models.InventoryItem) {
	t.Helper()
	require.NoError(t, repo.Upsert(context.Background(), &models.InventorySource{
		UserID:     userID,
		SourceType: st,
		SourceID:   sourceID,
		Data:       data,
	}))
}

func findSource(conn *gorm.DB, userID uuid.UUID, sourceID string) (*models.InventorySource, error) {
	var src models.InventorySource
	if err := conn.Where("user_id = ? AND source_id = ?", userID, sourceID).First(&src).Error; err != nil {
		return nil, err
	}
	return &src, nil
}

func timeNow() time.Time {
	return time.Now().UTC()
}
