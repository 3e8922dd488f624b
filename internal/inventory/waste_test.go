package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parami-backend/internal/audit"
	"parami-backend/internal/models"
)

func TestWriteOffRemovesBatchUnits(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, "p1", 150,
		models.ProductBatch{BatchNumber: "B001", Quantity: 100},
		models.ProductBatch{BatchNumber: "B002", Quantity: 50},
	)
	svc := NewStockService(db).WithClock(func() time.Time { return fixedNow })

	res, err := svc.WriteOff(context.Background(), "p1", "B002", 20, " expired ", pharmacist)
	require.NoError(t, err)
	assert.Equal(t, 130, res.After.StockLevel)
	require.NotNil(t, res.Batch)
	assert.Equal(t, 30, res.Batch.Quantity)

	var l models.AuditLog
	require.NoError(t, db.First(&l).Error)
	assert.Equal(t, models.AuditEntityStockAdjustment, l.EntityType)
	assert.Contains(t, l.Description, "batch B002")
	assert.Contains(t, l.Description, ": expired")
	assert.Contains(t, l.AfterData, `"source":"write_off"`)
}

func TestWriteOffRejectsBadRequests(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, "p1", 10, models.ProductBatch{BatchNumber: "B1", Quantity: 10})
	svc := NewStockService(db)
	ctx := context.Background()

	_, err := svc.WriteOff(ctx, "p1", "B1", 0, "broken", pharmacist)
	assert.ErrorIs(t, err, ErrInvalidWriteOff)

	_, err = svc.WriteOff(ctx, "p1", "B9", 1, "broken", pharmacist)
	assert.ErrorIs(t, err, ErrBatchNotFound)

	_, err = svc.WriteOff(ctx, "p1", "B1", 11, "broken", pharmacist)
	assert.ErrorIs(t, err, ErrInsufficientBatch)

	assert.Equal(t, 10, reloadProduct(t, db, "p1").StockLevel)
	assert.Equal(t, 10, batchesOf(t, db, "p1")["B1"].Quantity)

	var n int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestWriteOffCanBeUndone(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, "p1", 40, models.ProductBatch{BatchNumber: "B1", Quantity: 40})
	svc := NewStockService(db)
	auditSvc := audit.NewService(db)
	auditSvc.Register(models.AuditEntityStockAdjustment, svc.RevertAdjustment)

	_, err := svc.WriteOff(context.Background(), "p1", "B1", 15, "dropped box", pharmacist)
	require.NoError(t, err)

	var l models.AuditLog
	require.NoError(t, db.First(&l).Error)
	require.NoError(t, auditSvc.Undo(l.ID, "u1", "Kaung Kaung"))

	assert.Equal(t, 40, reloadProduct(t, db, "p1").StockLevel)
	assert.Equal(t, 40, batchesOf(t, db, "p1")["B1"].Quantity)
}

func TestExpiringListsSoonestFirst(t *testing.T) {
	db := newTestDB(t)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	createProduct(t, db, "p1", 0,
		models.ProductBatch{BatchNumber: "OLD", Quantity: 5, ExpiryDate: day(2024, time.March, 1)},
		models.ProductBatch{BatchNumber: "SOON", Quantity: 7, ExpiryDate: day(2024, time.April, 20)},
		models.ProductBatch{BatchNumber: "LATER", Quantity: 9, ExpiryDate: day(2025, time.January, 1)},
		models.ProductBatch{BatchNumber: "EMPTY", Quantity: 0, ExpiryDate: day(2024, time.March, 20)},
	)
	svc := NewStockService(db).WithClock(func() time.Time { return fixedNow })

	got, err := svc.Expiring(context.Background(), testBranch, 90*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "OLD", got[0].BatchNumber)
	assert.True(t, got[0].Expired)
	assert.Equal(t, 5, got[0].Quantity)
	assert.Equal(t, "SKU-p1", got[0].SKU)

	assert.Equal(t, "SOON", got[1].BatchNumber)
	assert.False(t, got[1].Expired)
	assert.Equal(t, 40, got[1].DaysLeft)

	other, err := svc.Expiring(context.Background(), "b-other", 90*24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestLowStockUsesMinimumOrDefault(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, "p1", 40)
	createProduct(t, db, "p2", 8)
	createProduct(t, db, "p3", 12)
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", "p1").Update("min_stock_level", 50).Error)

	got, err := NewStockService(db).LowStock(context.Background(), testBranch)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[0].ID)
	assert.Equal(t, "p1", got[1].ID)
}
