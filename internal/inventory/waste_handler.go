package inventory

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"parami-backend/internal/auth"
)

const defaultExpiringDays = 90

type WriteOffRequest struct {
	BatchNumber string `json:"batch_number"`
	Quantity    int    `json:"quantity"`
	Note        string `json:"note"` // reason: expired, broken, recalled ...
}

// POST /api/products/:id/write-off
func WriteOffHandler(db *gorm.DB, svc *StockService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		p, err := loadProduct(c, db)
		if err != nil {
			return err
		}

		var body WriteOffRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		body.BatchNumber = strings.TrimSpace(body.BatchNumber)
		if body.BatchNumber == "" {
			return fiber.NewError(fiber.StatusBadRequest, "batch_number is required")
		}
		if len(strings.TrimSpace(body.Note)) < 3 {
			return fiber.NewError(fiber.StatusBadRequest, "note is required (at least 3 characters)")
		}

		res, err := svc.WriteOff(c.UserContext(), p.ID, body.BatchNumber, body.Quantity, body.Note, who)
		switch {
		case err == nil:
		case errors.Is(err, ErrInvalidWriteOff):
			return fiber.NewError(fiber.StatusBadRequest, "quantity must be greater than 0")
		case errors.Is(err, ErrBatchNotFound):
			return fiber.NewError(fiber.StatusNotFound, "Batch not found")
		case errors.Is(err, ErrInsufficientBatch):
			return fiber.NewError(fiber.StatusConflict, "Batch does not hold that many units")
		default:
			return adjustHTTPError(err, p.ID)
		}

		return c.JSON(fiber.Map{
			"message": "Stock written off",
			"product": res.After,
			"batch":   res.Batch,
		})
	}
}

// GET /api/inventory/expiring?days=90&branch_id=...
func ExpiringBatchesHandler(svc *StockService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := auth.BranchFromQueryOrRole(c)
		if err != nil {
			return err
		}
		days := c.QueryInt("days", defaultExpiringDays)
		if days < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "days cannot be negative")
		}

		batches, err := svc.Expiring(c.UserContext(), branchID, time.Duration(days)*24*time.Hour)
		if err != nil {
			log.WithError(err).Error("expiring batch report failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list expiring batches")
		}
		return c.JSON(fiber.Map{
			"days":    days,
			"batches": batches,
		})
	}
}

// GET /api/inventory/low-stock?branch_id=...
func LowStockHandler(svc *StockService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := auth.BranchFromQueryOrRole(c)
		if err != nil {
			return err
		}

		products, err := svc.LowStock(c.UserContext(), branchID)
		if err != nil {
			log.WithError(err).Error("low stock report failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list low stock products")
		}
		return c.JSON(fiber.Map{"products": products})
	}
}
