package inventory

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"parami-backend/internal/auth"
	"parami-backend/internal/gs1"
	"parami-backend/internal/models"
)

type CreateProductRequest struct {
	BranchID             *string `json:"branch_id"`
	SKU                  string  `json:"sku"`
	GTIN                 *string `json:"gtin"`
	NameEn               string  `json:"name_en"`
	NameMm               string  `json:"name_mm"`
	GenericName          string  `json:"generic_name"`
	Category             string  `json:"category"`
	Description          string  `json:"description"`
	Price                int64   `json:"price"`
	Unit                 string  `json:"unit"`
	Location             string  `json:"location"`
	MinStockLevel        int     `json:"min_stock_level"`
	RequiresPrescription bool    `json:"requires_prescription"`
	ImageURL             string  `json:"image_url"`
}

// UpdateProductRequest changes catalog fields only; stock moves through stock-adjust.
type UpdateProductRequest struct {
	SKU                  *string `json:"sku"`
	GTIN                 *string `json:"gtin"`
	NameEn               *string `json:"name_en"`
	NameMm               *string `json:"name_mm"`
	GenericName          *string `json:"generic_name"`
	Category             *string `json:"category"`
	Description          *string `json:"description"`
	Price                *int64  `json:"price"`
	Unit                 *string `json:"unit"`
	Location             *string `json:"location"`
	MinStockLevel        *int    `json:"min_stock_level"`
	RequiresPrescription *bool   `json:"requires_prescription"`
	ImageURL             *string `json:"image_url"`
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// gtinOrNil stores short numeric GTINs in their 14 digit form so scans match them.
func gtinOrNil(s *string) *string {
	v := trimmedOrNil(s)
	if v == nil {
		return nil
	}
	n := gs1.NormalizeGTIN(*v)
	return &n
}

func validateProduct(sku, nameEn, nameMm, category, unit string, gtin *string, price int64, minStock int) error {
	switch {
	case len(sku) < 4:
		return fiber.NewError(fiber.StatusBadRequest, "sku must be at least 4 characters")
	case gtin != nil && len(*gtin) < 4:
		return fiber.NewError(fiber.StatusBadRequest, "gtin must be at least 4 characters")
	case len(nameEn) < 2 || len(nameMm) < 2:
		return fiber.NewError(fiber.StatusBadRequest, "name_en and name_mm are required")
	case len(category) < 2:
		return fiber.NewError(fiber.StatusBadRequest, "category is required")
	case unit == "":
		return fiber.NewError(fiber.StatusBadRequest, "unit is required")
	case price < 0 || minStock < 0:
		return fiber.NewError(fiber.StatusBadRequest, "price and min_stock_level cannot be negative")
	}
	return nil
}

// loadProduct finds the product of :id and checks the caller may see its branch.
func loadProduct(c *fiber.Ctx, db *gorm.DB) (*models.Product, error) {
	var p models.Product
	err := db.First(&p, "id = ?", c.Params("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "Product not found")
	}
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Could not read product")
	}
	if !auth.CanAccessBranch(c, p.BranchID) {
		return nil, fiber.NewError(fiber.StatusForbidden, "Product belongs to another branch")
	}
	return &p, nil
}

// GET /api/products?branch_id=...
func ListProductsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := auth.BranchFromQueryOrRole(c)
		if err != nil {
			return err
		}

		dbq := db.Model(&models.Product{}).Preload("Batches", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("expiry_date asc")
		})
		if branchID != "" {
			dbq = dbq.Where("branch_id = ?", branchID)
		}
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			dbq = dbq.Where("LOWER(name_en) LIKE ? OR LOWER(generic_name) LIKE ? OR sku = ? OR gtin = ?", like, like, q, q)
		}

		var products []models.Product
		if err := dbq.Order("name_en asc").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list products")
		}
		return c.JSON(fiber.Map{"products": products})
	}
}

// POST /api/products (super_admin, branch_admin)
func CreateProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		branchID, err := auth.BranchFromBodyOrRole(c, body.BranchID)
		if err != nil {
			return err
		}

		body.SKU = strings.TrimSpace(body.SKU)
		body.NameEn = strings.TrimSpace(body.NameEn)
		body.NameMm = strings.TrimSpace(body.NameMm)
		body.Category = strings.TrimSpace(body.Category)
		body.Unit = strings.TrimSpace(body.Unit)
		body.GTIN = gtinOrNil(body.GTIN)

		if err := validateProduct(body.SKU, body.NameEn, body.NameMm, body.Category, body.Unit, body.GTIN, body.Price, body.MinStockLevel); err != nil {
			return err
		}

		var branchCount int64
		if err := db.Model(&models.Branch{}).Where("id = ?", branchID).Count(&branchCount).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not check branch")
		}
		if branchCount == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Branch not found")
		}

		p := models.Product{
			BranchID:             branchID,
			SKU:                  body.SKU,
			GTIN:                 body.GTIN,
			NameEn:               body.NameEn,
			NameMm:               body.NameMm,
			GenericName:          strings.TrimSpace(body.GenericName),
			Category:             body.Category,
			Description:          strings.TrimSpace(body.Description),
			Price:                body.Price,
			Unit:                 body.Unit,
			Location:             strings.TrimSpace(body.Location),
			MinStockLevel:        body.MinStockLevel,
			RequiresPrescription: body.RequiresPrescription,
			ImageURL:             strings.TrimSpace(body.ImageURL),
		}
		if err := db.Create(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create product")
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"product": p})
	}
}

// PUT /api/products/:id (super_admin, branch_admin)
func UpdateProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := loadProduct(c, db)
		if err != nil {
			return err
		}

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		updates := map[string]interface{}{}
		if body.SKU != nil {
			p.SKU = strings.TrimSpace(*body.SKU)
			updates["sku"] = p.SKU
		}
		if body.GTIN != nil {
			p.GTIN = gtinOrNil(body.GTIN)
			updates["gtin"] = p.GTIN
		}
		if body.NameEn != nil {
			p.NameEn = strings.TrimSpace(*body.NameEn)
			updates["name_en"] = p.NameEn
		}
		if body.NameMm != nil {
			p.NameMm = strings.TrimSpace(*body.NameMm)
			updates["name_mm"] = p.NameMm
		}
		if body.GenericName != nil {
			updates["generic_name"] = strings.TrimSpace(*body.GenericName)
		}
		if body.Category != nil {
			p.Category = strings.TrimSpace(*body.Category)
			updates["category"] = p.Category
		}
		if body.Description != nil {
			updates["description"] = strings.TrimSpace(*body.Description)
		}
		if body.Price != nil {
			p.Price = *body.Price
			updates["price"] = p.Price
		}
		if body.Unit != nil {
			p.Unit = strings.TrimSpace(*body.Unit)
			updates["unit"] = p.Unit
		}
		if body.Location != nil {
			updates["location"] = strings.TrimSpace(*body.Location)
		}
		if body.MinStockLevel != nil {
			p.MinStockLevel = *body.MinStockLevel
			updates["min_stock_level"] = p.MinStockLevel
		}
		if body.RequiresPrescription != nil {
			updates["requires_prescription"] = *body.RequiresPrescription
		}
		if body.ImageURL != nil {
			updates["image_url"] = strings.TrimSpace(*body.ImageURL)
		}

		if len(updates) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Nothing to update")
		}
		if err := validateProduct(p.SKU, p.NameEn, p.NameMm, p.Category, p.Unit, p.GTIN, p.Price, p.MinStockLevel); err != nil {
			return err
		}

		if err := db.Model(&models.Product{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update product")
		}

		var updated models.Product
		if err := db.First(&updated, "id = ?", p.ID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not read product")
		}
		return c.JSON(fiber.Map{"product": updated})
	}
}

// DELETE /api/products/:id (super_admin, branch_admin)
func DeleteProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := loadProduct(c, db)
		if err != nil {
			return err
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("product_id = ?", p.ID).Delete(&models.ProductBatch{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Product{}, "id = ?", p.ID).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete product")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
