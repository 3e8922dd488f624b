package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"parami-backend/internal/auth"
	"parami-backend/internal/models"
)

// DefaultLowStockThreshold applies to products without a minimum stock level.
const DefaultLowStockThreshold = 10

var (
	ErrInvalidWriteOff   = errors.New("write-off quantity must be positive")
	ErrInsufficientBatch = errors.New("batch does not hold that many units")
)

// WriteOff removes qty units of a damaged or expired batch and records it in
// the audit trail with the given note.
func (s *StockService) WriteOff(ctx context.Context, productID, batchNumber string, qty int, note string, who auth.Identity) (*AdjustResult, error) {
	if qty <= 0 {
		return nil, ErrInvalidWriteOff
	}

	req := AdjustRequest{
		ProductID:   productID,
		Delta:       -qty,
		BatchNumber: batchNumber,
	}

	var res *AdjustResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := NewGormStore(tx).Batches().FindByKey(ctx, productID, batchNumber)
		if err != nil {
			return err
		}
		if b.Quantity < qty {
			return ErrInsufficientBatch
		}

		res, err = s.Adjuster(tx).Adjust(ctx, req)
		if err != nil {
			return err
		}
		return writeAdjustmentLog(tx, res, req, who, SourceWriteOff, strings.TrimSpace(note))
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ExpiringBatch is a batch with stock left that expires inside the report window.
type ExpiringBatch struct {
	ProductID   string    `json:"product_id"`
	BranchID    string    `json:"branch_id"`
	SKU         string    `json:"sku"`
	NameEn      string    `json:"name_en"`
	BatchNumber string    `json:"batch_number"`
	ExpiryDate  time.Time `json:"expiry_date"`
	Quantity    int       `json:"quantity"`
	DaysLeft    int       `json:"days_left"`
	Expired     bool      `json:"expired"`
}

// Expiring lists batches with positive quantity expiring within the window,
// soonest first. Already expired batches are included.
func (s *StockService) Expiring(ctx context.Context, branchID string, within time.Duration) ([]ExpiringBatch, error) {
	now := s.now()
	q := s.db.WithContext(ctx).
		Table("product_batches AS b").
		Select("b.product_id, p.branch_id, p.sku, p.name_en, b.batch_number, b.expiry_date, b.quantity").
		Joins("JOIN products p ON p.id = b.product_id").
		Where("b.quantity > 0 AND b.expiry_date <= ?", now.Add(within)).
		Order("b.expiry_date asc, p.name_en asc")
	if branchID != "" {
		q = q.Where("p.branch_id = ?", branchID)
	}

	out := make([]ExpiringBatch, 0)
	if err := q.Scan(&out).Error; err != nil {
		return nil, errors.Wrap(err, "listing expiring batches")
	}
	for i := range out {
		left := out[i].ExpiryDate.Sub(now)
		out[i].Expired = left < 0
		out[i].DaysLeft = int(left.Hours() / 24)
	}
	return out, nil
}

// LowStock lists products at or below their minimum stock level, lowest first.
func (s *StockService) LowStock(ctx context.Context, branchID string) ([]models.Product, error) {
	q := s.db.WithContext(ctx).
		Where("stock_level <= CASE WHEN min_stock_level > 0 THEN min_stock_level ELSE ? END", DefaultLowStockThreshold).
		Order("stock_level asc, name_en asc")
	if branchID != "" {
		q = q.Where("branch_id = ?", branchID)
	}

	products := make([]models.Product, 0)
	if err := q.Find(&products).Error; err != nil {
		return nil, errors.Wrap(err, "listing low stock products")
	}
	return products, nil
}
