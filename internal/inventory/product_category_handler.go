package inventory

import (
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"parami-backend/internal/auth"
	"parami-backend/internal/models"
)

// CategorySummary is one product category of a branch with its totals.
type CategorySummary struct {
	Name     string `json:"name"`
	Products int    `json:"products"`
	Units    int    `json:"units"`
}

// GET /api/products/categories?branch_id=...
// Categories are free text on the product, so the list is derived from the catalog.
func ListCategoriesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := auth.BranchFromQueryOrRole(c)
		if err != nil {
			return err
		}

		q := db.WithContext(c.UserContext()).Model(&models.Product{}).
			Select("category AS name, COUNT(*) AS products, COALESCE(SUM(stock_level), 0) AS units").
			Group("category").
			Order("category asc")
		if branchID != "" {
			q = q.Where("branch_id = ?", branchID)
		}

		categories := make([]CategorySummary, 0)
		if err := q.Scan(&categories).Error; err != nil {
			log.WithError(err).Error("listing categories failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list categories")
		}
		return c.JSON(fiber.Map{"categories": categories})
	}
}
