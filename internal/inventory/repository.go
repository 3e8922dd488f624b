package inventory

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"parami-backend/internal/models"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrBatchNotFound   = errors.New("batch not found")
)

// ProductRepository reads products and applies stock deltas.
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (*models.Product, error)
	// FindAll lists the products of a branch; an empty branchID lists every branch.
	FindAll(ctx context.Context, branchID string) ([]models.Product, error)
	// ApplyDelta adds delta to the stock level and overwrites unit/location
	// when they are non-nil. It returns the product as stored afterwards.
	ApplyDelta(ctx context.Context, id string, delta int, unit, location *string) (*models.Product, error)
}

// BatchDelta describes an upsert-increment of one batch.
type BatchDelta struct {
	ProductID   string
	BatchNumber string
	Delta       int
	// ExpiryDate and CostPrice replace stored values only when non-nil.
	ExpiryDate *time.Time
	CostPrice  *int64
	// DefaultExpiry is used when the batch is created without ExpiryDate.
	DefaultExpiry time.Time
}

// BatchRepository reads and upserts product batches.
type BatchRepository interface {
	FindByKey(ctx context.Context, productID, batchNumber string) (*models.ProductBatch, error)
	ListByProduct(ctx context.Context, productID string) ([]models.ProductBatch, error)
	CreateOrIncrement(ctx context.Context, d BatchDelta) (*models.ProductBatch, error)
	// Replace writes quantity, expiry and cost of the batch as given, creating it if needed.
	Replace(ctx context.Context, b models.ProductBatch) (*models.ProductBatch, error)
}

// Store groups the repositories that must change together.
type Store interface {
	Products() ProductRepository
	Batches() BatchRepository
	// WithinTx runs fn against a transactional Store. The transaction commits
	// when fn returns nil and rolls back otherwise, including on panic.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
