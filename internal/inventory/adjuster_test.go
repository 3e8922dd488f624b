package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parami-backend/internal/models"
)

func TestAdjustWithoutBatchOnlyMovesStock(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, "p1", 150, models.ProductBatch{BatchNumber: "B001", Quantity: 100})
	adj := NewAdjuster(NewGormStore(db))

	for _, d := range []int{7, -20, 0} {
		before := reloadProduct(t, db, "p1")
		res, err := adj.Adjust(context.Background(), AdjustRequest{ProductID: "p1", Delta: d})
		require.NoError(t, err)

		assert.Equal(t, before.StockLevel+d, res.After.StockLevel)
		assert.Equal(t, before.StockLevel, res.Before.StockLevel)
		assert.Nil(t, res.Batch)
	}

	batches := batchesOf(t, db, "p1")
	require.Len(t, batches, 1)
	assert.Equal(t, 100, batches["B001"].Quantity)
	assert.Equal(t, 137, reloadProduct(t, db, "p1").StockLevel)
}

func TestAdjustIncrementsInsteadOfOverwriting(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, "p1", 0)
	adj := NewAdjuster(NewGormStore(db)).WithClock(func() time.Time { return fixedNow })
	ctx := context.Background()

	res, err := adj.Adjust(ctx, AdjustRequest{ProductID: "p1", Delta: 12, BatchNumber: "L9"})
	require.NoError(t, err)
	require.NotNil(t, res.Batch)
	assert.Equal(t, 12, res.Batch.Quantity)

	res, err = adj.Adjust(ctx, AdjustRequest{ProductID: "p1", Delta: 5, BatchNumber: "L9"})
	require.NoError(t, err)
	assert.Equal(t, 17, res.Batch.Quantity)

	batches := batchesOf(t, db, "p1")
	require.Len(t, batches, 1)
	assert.Equal(t, 17, batches["L9"].Quantity)
	assert.Equal(t, 17, reloadProduct(t, db, "p1").StockLevel)
}

func TestAdjustDefaultExpiryIsOneYearOut(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, "p1", 0)
	adj := NewAdjuster(NewGormStore(db)).WithClock(func() time.Time { return fixedNow })

	res, err := adj.Adjust(context.Background(), AdjustRequest{ProductID: "p1", Delta: 3, BatchNumber: "NEW"})
	require.NoError(t, err)

	exp := res.Batch.ExpiryDate.UTC()
	assert.Equal(t, 2025, exp.Year())
	assert.Equal(t, time.March, exp.Month())
	assert.Equal(t, 10, exp.Day())
	assert.EqualValues(t, 0, res.Batch.CostPrice)
}

func TestAdjustKeepsExpiryAndCostUnlessSupplied(t *testing.T) {
	db := newTestDB(t)
	orig := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	createProduct(t, db, "p1", 10, models.ProductBatch{BatchNumber: "B1", Quantity: 10, ExpiryDate: orig, CostPrice: 300})
	adj := NewAdjuster(NewGormStore(db))
	ctx := context.Background()

	res, err := adj.Adjust(ctx, AdjustRequest{ProductID: "p1", Delta: 1, BatchNumber: "B1"})
	require.NoError(t, err)
	assert.True(t, orig.Equal(res.Batch.ExpiryDate), "expiry changed to %s", res.Batch.ExpiryDate)
	assert.EqualValues(t, 300, res.Batch.CostPrice)

	newExp := time.Date(2027, time.May, 1, 0, 0, 0, 0, time.UTC)
	cost := int64(320)
	res, err = adj.Adjust(ctx, AdjustRequest{ProductID: "p1", Delta: 1, BatchNumber: "B1", ExpiryDate: &newExp, CostPrice: &cost})
	require.NoError(t, err)
	assert.True(t, newExp.Equal(res.Batch.ExpiryDate))
	assert.EqualValues(t, 320, res.Batch.CostPrice)
	assert.Equal(t, 12, res.Batch.Quantity)
}

func TestAdjustPartialUnitUpdate(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, "p1", 5)
	adj := NewAdjuster(NewGormStore(db))
	ctx := context.Background()

	_, err := adj.Adjust(ctx, AdjustRequest{ProductID: "p1", Delta: 0, BatchNumber: "B"})
	require.NoError(t, err)
	p := reloadProduct(t, db, "p1")
	assert.Equal(t, "STRIP", p.Unit)
	assert.Equal(t, "A-1", p.Location)

	_, err = adj.Adjust(ctx, AdjustRequest{ProductID: "p1", Delta: 0, BatchNumber: "B", Unit: strptr("BOX")})
	require.NoError(t, err)
	p = reloadProduct(t, db, "p1")
	assert.Equal(t, "BOX", p.Unit)
	assert.Equal(t, "A-1", p.Location)
	assert.Equal(t, 5, p.StockLevel)
}

func TestAdjustParacetamolScenario(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, "para", 150, models.ProductBatch{BatchNumber: "B001", Quantity: 100})
	adj := NewAdjuster(NewGormStore(db)).WithClock(func() time.Time { return fixedNow })
	ctx := context.Background()

	res, err := adj.Adjust(ctx, AdjustRequest{ProductID: "para", Delta: 50, BatchNumber: "B001"})
	require.NoError(t, err)
	assert.Equal(t, 200, res.After.StockLevel)
	assert.Equal(t, 150, res.Batch.Quantity)

	res, err = adj.Adjust(ctx, AdjustRequest{ProductID: "para", Delta: -30, BatchNumber: "B002"})
	require.NoError(t, err)
	assert.Equal(t, 170, res.After.StockLevel)
	assert.Equal(t, -30, res.Batch.Quantity)

	batches := batchesOf(t, db, "para")
	assert.Len(t, batches, 2)
	assert.Equal(t, 150, batches["B001"].Quantity)
	assert.Equal(t, -30, batches["B002"].Quantity)
}

func TestAdjustUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	adj := NewAdjuster(NewGormStore(db))

	_, err := adj.Adjust(context.Background(), AdjustRequest{ProductID: "nope", Delta: 5, BatchNumber: "B1"})
	assert.ErrorIs(t, err, ErrProductNotFound)

	var n int64
	require.NoError(t, db.Model(&models.ProductBatch{}).Count(&n).Error)
	assert.Zero(t, n)
}

// failingBatches fails every batch upsert after the product update went through.
type failingBatches struct {
	BatchRepository
}

func (failingBatches) CreateOrIncrement(context.Context, BatchDelta) (*models.ProductBatch, error) {
	return nil, errors.New("disk full")
}

type failingStore struct {
	*GormStore
}

func (s failingStore) Batches() BatchRepository {
	return failingBatches{s.GormStore.Batches()}
}

func (s failingStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.GormStore.WithinTx(ctx, func(tx Store) error {
		return fn(failingStore{tx.(*GormStore)})
	})
}

func TestAdjustRollsBackProductWhenBatchFails(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, "p1", 40, models.ProductBatch{BatchNumber: "B1", Quantity: 40})
	adj := NewAdjuster(failingStore{NewGormStore(db)})

	_, err := adj.Adjust(context.Background(), AdjustRequest{ProductID: "p1", Delta: 10, BatchNumber: "B1", Unit: strptr("BOX")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	p := reloadProduct(t, db, "p1")
	assert.Equal(t, 40, p.StockLevel)
	assert.Equal(t, "STRIP", p.Unit)
	assert.Equal(t, 40, batchesOf(t, db, "p1")["B1"].Quantity)
}
