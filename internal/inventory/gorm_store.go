package inventory

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parami-backend/internal/models"
)

// GormStore is the Store backed by gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Products() ProductRepository { return &gormProducts{db: s.db} }
func (s *GormStore) Batches() BatchRepository    { return &gormBatches{db: s.db} }

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

type gormProducts struct {
	db *gorm.DB
}

func (r *gormProducts) FindByID(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding product %s", id)
	}
	return &p, nil
}

func (r *gormProducts) FindAll(ctx context.Context, branchID string) ([]models.Product, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if branchID != "" {
		q = q.Where("branch_id = ?", branchID)
	}

	var products []models.Product
	if err := q.Order("name_en asc").Find(&products).Error; err != nil {
		return nil, errors.Wrap(err, "listing products")
	}
	return products, nil
}

func (r *gormProducts) ApplyDelta(ctx context.Context, id string, delta int, unit, location *string) (*models.Product, error) {
	updates := map[string]interface{}{
		"stock_level": gorm.Expr("stock_level + ?", delta),
	}
	if unit != nil {
		updates["unit"] = *unit
	}
	if location != nil {
		updates["location"] = *location
	}

	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "updating stock of product %s", id)
	}
	if res.RowsAffected == 0 {
		return nil, ErrProductNotFound
	}
	return r.FindByID(ctx, id)
}

type gormBatches struct {
	db *gorm.DB
}

func (r *gormBatches) FindByKey(ctx context.Context, productID, batchNumber string) (*models.ProductBatch, error) {
	var b models.ProductBatch
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND batch_number = ?", productID, batchNumber).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding batch %s of product %s", batchNumber, productID)
	}
	return &b, nil
}

func (r *gormBatches) ListByProduct(ctx context.Context, productID string) ([]models.ProductBatch, error) {
	var batches []models.ProductBatch
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("expiry_date asc, batch_number asc").
		Find(&batches).Error
	if err != nil {
		return nil, errors.Wrapf(err, "listing batches of product %s", productID)
	}
	return batches, nil
}

// CreateOrIncrement is a single INSERT ... ON CONFLICT statement, so concurrent
// callers increment rather than overwrite each other.
func (r *gormBatches) CreateOrIncrement(ctx context.Context, d BatchDelta) (*models.ProductBatch, error) {
	row := models.ProductBatch{
		ProductID:   d.ProductID,
		BatchNumber: d.BatchNumber,
		Quantity:    d.Delta,
		ExpiryDate:  d.DefaultExpiry,
	}
	if d.ExpiryDate != nil {
		row.ExpiryDate = *d.ExpiryDate
	}
	if d.CostPrice != nil {
		row.CostPrice = *d.CostPrice
	}

	set := map[string]interface{}{
		"quantity":   gorm.Expr("product_batches.quantity + excluded.quantity"),
		"updated_at": gorm.Expr("excluded.updated_at"),
	}
	if d.ExpiryDate != nil {
		set["expiry_date"] = gorm.Expr("excluded.expiry_date")
	}
	if d.CostPrice != nil {
		set["cost_price"] = gorm.Expr("excluded.cost_price")
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "batch_number"}},
		DoUpdates: clause.Assignments(set),
	}).Create(&row).Error
	if err != nil {
		return nil, errors.Wrapf(err, "upserting batch %s of product %s", d.BatchNumber, d.ProductID)
	}

	// The row id is only known for inserts; read the stored row back either way.
	return r.FindByKey(ctx, d.ProductID, d.BatchNumber)
}

func (r *gormBatches) Replace(ctx context.Context, b models.ProductBatch) (*models.ProductBatch, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "batch_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "expiry_date", "cost_price", "updated_at"}),
	}).Create(&b).Error
	if err != nil {
		return nil, errors.Wrapf(err, "writing batch %s of product %s", b.BatchNumber, b.ProductID)
	}
	return r.FindByKey(ctx, b.ProductID, b.BatchNumber)
}
