package inventory

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"parami-backend/internal/models"
)

// AdjustRequest is a signed stock change for one product, optionally tied to a batch.
// Nil pointers and an empty BatchNumber mean "not supplied".
type AdjustRequest struct {
	ProductID   string
	Delta       int
	BatchNumber string
	Unit        *string
	Location    *string
	ExpiryDate  *time.Time
	CostPrice   *int64
}

type AdjustResult struct {
	Before models.Product
	After  models.Product
	// Batch is nil when the request carried no batch number.
	Batch *models.ProductBatch
}

// Adjuster applies stock changes to a product and its batch as one unit of work.
type Adjuster struct {
	store Store
	now   func() time.Time
}

func NewAdjuster(store Store) *Adjuster {
	return &Adjuster{store: store, now: time.Now}
}

// WithClock replaces the clock used for default batch expiry.
func (a *Adjuster) WithClock(now func() time.Time) *Adjuster {
	a.now = now
	return a
}

// Adjust adds req.Delta to the product's stock level and, when a batch number
// is given, to that batch (creating it if needed). Both writes commit together.
// Negative results are stored as is.
func (a *Adjuster) Adjust(ctx context.Context, req AdjustRequest) (*AdjustResult, error) {
	var res AdjustResult

	err := a.store.WithinTx(ctx, func(tx Store) error {
		before, err := tx.Products().FindByID(ctx, req.ProductID)
		if err != nil {
			return err
		}
		res.Before = *before

		after, err := tx.Products().ApplyDelta(ctx, req.ProductID, req.Delta, req.Unit, req.Location)
		if err != nil {
			return err
		}
		res.After = *after

		if req.BatchNumber == "" {
			return nil
		}

		batch, err := tx.Batches().CreateOrIncrement(ctx, BatchDelta{
			ProductID:     req.ProductID,
			BatchNumber:   req.BatchNumber,
			Delta:         req.Delta,
			ExpiryDate:    req.ExpiryDate,
			CostPrice:     req.CostPrice,
			DefaultExpiry: a.now().AddDate(1, 0, 0),
		})
		if err != nil {
			return err
		}
		res.Batch = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"product_id": req.ProductID,
		"delta":      req.Delta,
		"batch":      req.BatchNumber,
		"stock":      res.After.StockLevel,
	}).Debug("stock adjusted")

	return &res, nil
}
