package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"parami-backend/internal/database"
	"parami-backend/internal/models"
)

const testBranch = "b-dawei"

var fixedNow = time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := database.NewTestDB(t)
	require.NoError(t, db.Create(&models.Branch{ID: testBranch, Name: "Dawei", Code: "parami-1"}).Error)
	return db
}

func strptr(s string) *string { return &s }

func createProduct(t *testing.T, db *gorm.DB, id string, stock int, batches ...models.ProductBatch) models.Product {
	t.Helper()
	p := models.Product{
		ID:         id,
		BranchID:   testBranch,
		SKU:        "SKU-" + id,
		GTIN:       strptr("0885000000" + id),
		NameEn:     "Product " + id,
		NameMm:     "Product " + id,
		Category:   "Analgesics",
		Unit:       "STRIP",
		Location:   "A-1",
		Price:      500,
		StockLevel: stock,
	}
	require.NoError(t, db.Create(&p).Error)
	for i := range batches {
		batches[i].ProductID = id
		if batches[i].ExpiryDate.IsZero() {
			batches[i].ExpiryDate = time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
		}
		require.NoError(t, db.Create(&batches[i]).Error)
	}
	return p
}

func reloadProduct(t *testing.T, db *gorm.DB, id string) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p
}

func batchesOf(t *testing.T, db *gorm.DB, productID string) map[string]models.ProductBatch {
	t.Helper()
	var list []models.ProductBatch
	require.NoError(t, db.Where("product_id = ?", productID).Find(&list).Error)
	out := make(map[string]models.ProductBatch, len(list))
	for _, b := range list {
		out[b.BatchNumber] = b
	}
	return out
}
