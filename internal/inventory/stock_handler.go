package inventory

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"parami-backend/internal/audit"
	"parami-backend/internal/auth"
	"parami-backend/internal/models"
)

type StockAdjustRequest struct {
	Quantity    *int    `json:"quantity"`
	BatchNumber *string `json:"batch_number"`
	ExpiryDate  *string `json:"expiry_date"`
	CostPrice   *int64  `json:"cost_price"`
	Location    *string `json:"location"`
	Unit        *string `json:"unit"`
}

type BatchRequest struct {
	BatchNumber string `json:"batch_number"`
	ExpiryDate  string `json:"expiry_date"`
	Quantity    *int   `json:"quantity"`
	CostPrice   int64  `json:"cost_price"`
}

// ParseDate accepts YYYY-MM-DD or RFC 3339.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q", s)
	}
	return t, nil
}

// adjustHTTPError maps Adjuster errors to HTTP errors.
func adjustHTTPError(err error, productID string) error {
	if errors.Is(err, ErrProductNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Product not found")
	}
	log.WithError(err).WithField("product_id", productID).Error("stock adjustment failed")
	return fiber.NewError(fiber.StatusInternalServerError, "Could not update stock")
}

// BuildAdjustRequest validates a stock-adjust body for productID.
func (r StockAdjustRequest) BuildAdjustRequest(productID string) (AdjustRequest, error) {
	if r.Quantity == nil {
		return AdjustRequest{}, fiber.NewError(fiber.StatusBadRequest, "quantity is required")
	}
	if r.CostPrice != nil && *r.CostPrice < 0 {
		return AdjustRequest{}, fiber.NewError(fiber.StatusBadRequest, "cost_price cannot be negative")
	}

	req := AdjustRequest{
		ProductID: productID,
		Delta:     *r.Quantity,
		Unit:      trimmedOrNil(r.Unit),
		Location:  trimmedOrNil(r.Location),
		CostPrice: r.CostPrice,
	}
	if r.BatchNumber != nil {
		req.BatchNumber = strings.TrimSpace(*r.BatchNumber)
	}
	if r.ExpiryDate != nil && strings.TrimSpace(*r.ExpiryDate) != "" {
		t, err := ParseDate(*r.ExpiryDate)
		if err != nil {
			return AdjustRequest{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.ExpiryDate = &t
	}
	return req, nil
}

// POST /api/products/:id/stock-adjust
func StockAdjustHandler(db *gorm.DB, svc *StockService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		p, err := loadProduct(c, db)
		if err != nil {
			return err
		}

		var body StockAdjustRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		req, err := body.BuildAdjustRequest(p.ID)
		if err != nil {
			return err
		}

		res, err := svc.AdjustAudited(c.UserContext(), req, who, SourceManual)
		if err != nil {
			return adjustHTTPError(err, p.ID)
		}

		return c.JSON(fiber.Map{
			"message": "Stock updated",
			"product": res.After,
			"batch":   res.Batch,
		})
	}
}

// GET /api/products/:id/batches
func ListBatchesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := loadProduct(c, db)
		if err != nil {
			return err
		}

		batches, err := NewGormStore(db).Batches().ListByProduct(c.UserContext(), p.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list batches")
		}
		return c.JSON(fiber.Map{"batches": batches})
	}
}

// POST /api/products/:id/batches
// Writes the batch exactly as given; the product stock level is not touched.
func UpsertBatchHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		p, err := loadProduct(c, db)
		if err != nil {
			return err
		}

		var body BatchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		body.BatchNumber = strings.TrimSpace(body.BatchNumber)
		if body.BatchNumber == "" || body.Quantity == nil {
			return fiber.NewError(fiber.StatusBadRequest, "batch_number and quantity are required")
		}
		if body.CostPrice < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "cost_price cannot be negative")
		}
		expiry, err := ParseDate(body.ExpiryDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "expiry_date is required (YYYY-MM-DD)")
		}

		var saved *models.ProductBatch
		err = db.Transaction(func(tx *gorm.DB) error {
			batches := NewGormStore(tx).Batches()
			prev, err := batches.FindByKey(c.UserContext(), p.ID, body.BatchNumber)
			if err != nil && !errors.Is(err, ErrBatchNotFound) {
				return err
			}

			saved, err = batches.Replace(c.UserContext(), models.ProductBatch{
				ProductID:   p.ID,
				BatchNumber: body.BatchNumber,
				Quantity:    *body.Quantity,
				ExpiryDate:  expiry,
				CostPrice:   body.CostPrice,
			})
			if err != nil {
				return err
			}

			action := models.AuditActionUpdate
			if prev == nil {
				action = models.AuditActionCreate
			}
			branchID := p.BranchID
			return audit.WriteLog(tx, audit.LogOptions{
				BranchID:    &branchID,
				UserID:      who.UserID,
				UserName:    who.Name,
				EntityType:  models.AuditEntityBatch,
				EntityID:    saved.ID,
				Action:      action,
				Description: p.NameEn + " batch " + saved.BatchNumber + " saved",
				Before:      prev,
				After:       saved,
			})
		})
		if err != nil {
			log.WithError(err).WithField("product_id", p.ID).Error("batch upsert failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Could not save batch")
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"batch": saved})
	}
}

// GET /api/inventory/reconciliation?branch_id=...
func ReconciliationHandler(r *Reconciler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := auth.BranchFromQueryOrRole(c)
		if err != nil {
			return err
		}

		drifts, err := r.Check(c.UserContext(), branchID)
		if err != nil {
			log.WithError(err).Error("reconciliation check failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Could not run reconciliation")
		}
		return c.JSON(fiber.Map{
			"drifting": len(drifts),
			"products": drifts,
		})
	}
}
