package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"parami-backend/internal/audit"
	"parami-backend/internal/auth"
	"parami-backend/internal/models"
)

// Adjustment sources recorded in the audit trail.
const (
	SourceManual   = "manual"
	SourceImport   = "import"
	SourceWriteOff = "write_off"
)

// adjustmentRecord is the audit snapshot of one adjustment.
type adjustmentRecord struct {
	ProductID     string `json:"product_id"`
	Delta         int    `json:"delta"`
	BatchNumber   string `json:"batch_number,omitempty"`
	StockLevel    int    `json:"stock_level"`
	BatchQuantity *int   `json:"batch_quantity,omitempty"`
	Source        string `json:"source,omitempty"`
}

// StockService runs adjustments together with their audit entry.
type StockService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStockService(db *gorm.DB) *StockService {
	return &StockService{db: db, now: time.Now}
}

func (s *StockService) WithClock(now func() time.Time) *StockService {
	s.now = now
	return s
}

// Adjuster returns an Adjuster writing through tx.
func (s *StockService) Adjuster(tx *gorm.DB) *Adjuster {
	return NewAdjuster(NewGormStore(tx)).WithClock(s.now)
}

// AdjustAudited applies req and writes a stock_adjustment audit entry in the same transaction.
func (s *StockService) AdjustAudited(ctx context.Context, req AdjustRequest, who auth.Identity, source string) (*AdjustResult, error) {
	var res *AdjustResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = s.Adjuster(tx).Adjust(ctx, req)
		if err != nil {
			return err
		}
		return writeAdjustmentLog(tx, res, req, who, source, "")
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func writeAdjustmentLog(tx *gorm.DB, res *AdjustResult, req AdjustRequest, who auth.Identity, source, note string) error {
	after := adjustmentRecord{
		ProductID:   req.ProductID,
		Delta:       req.Delta,
		BatchNumber: req.BatchNumber,
		StockLevel:  res.After.StockLevel,
		Source:      source,
	}
	before := adjustmentRecord{
		ProductID:   req.ProductID,
		BatchNumber: req.BatchNumber,
		StockLevel:  res.Before.StockLevel,
	}
	if res.Batch != nil {
		q := res.Batch.Quantity
		after.BatchQuantity = &q
		prev := q - req.Delta
		before.BatchQuantity = &prev
	}

	desc := fmt.Sprintf("%s stock %+d", res.After.NameEn, req.Delta)
	if req.BatchNumber != "" {
		desc += " (batch " + req.BatchNumber + ")"
	}
	if note != "" {
		desc += ": " + note
	}

	branchID := res.After.BranchID
	return audit.WriteLog(tx, audit.LogOptions{
		BranchID:    &branchID,
		UserID:      who.UserID,
		UserName:    who.Name,
		EntityType:  models.AuditEntityStockAdjustment,
		EntityID:    res.After.ID,
		Action:      models.AuditActionUpdate,
		Description: desc,
		Before:      before,
		After:       after,
	})
}

// RevertAdjustment is the audit.Reverter for stock adjustments: it applies the
// inverse delta to the same product and batch. Expiry, cost, unit and location
// are left as they are.
func (s *StockService) RevertAdjustment(tx *gorm.DB, entry models.AuditLog) error {
	var rec adjustmentRecord
	if err := json.Unmarshal([]byte(entry.AfterData), &rec); err != nil {
		return errors.Wrap(err, "decoding adjustment snapshot")
	}
	if rec.ProductID == "" {
		return audit.ErrNotUndoable
	}

	_, err := s.Adjuster(tx).Adjust(tx.Statement.Context, AdjustRequest{
		ProductID:   rec.ProductID,
		Delta:       -rec.Delta,
		BatchNumber: rec.BatchNumber,
	})
	return err
}
