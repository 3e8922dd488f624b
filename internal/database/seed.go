package database

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parami-backend/internal/models"
)

const (
	SeedBranchDawei  = "550e8400-e29b-41d4-a716-446655440001"
	SeedBranchYangon = "550e8400-e29b-41d4-a716-446655440002"
)

func strPtr(s string) *string { return &s }

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

// Seed inserts demo branches, users and products. Existing rows are left alone,
// so running it twice is harmless.
func Seed(db *gorm.DB) error {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hashing seed password")
	}

	branches := []models.Branch{
		{ID: SeedBranchDawei, Name: "Parami (1) Dawei", Code: "parami-1", Address: "No. 45, Arzarni Road, Dawei", Phone: "09-420012345", ManagerName: "U Mg Mg"},
		{ID: SeedBranchYangon, Name: "Parami (2) Yangon", Code: "parami-2", Address: "No. 12, Pyay Road, Yangon", Phone: "09-420098765", ManagerName: "Daw Hla"},
	}

	users := []models.User{
		{ID: "u1", Name: "Kaung Kaung", Email: "admin@parami.com", PasswordHash: string(hash), Role: models.RoleSuperAdmin},
		{ID: "u2", Name: "Kyaw Kyaw", Email: "pos@parami.com", PasswordHash: string(hash), Role: models.RolePharmacist, BranchID: strPtr(SeedBranchDawei)},
	}

	products := []models.Product{
		{
			ID: "p1", BranchID: SeedBranchDawei, SKU: "8850123456789", GTIN: strPtr("08850123456789"),
			NameEn: "Paracetamol 500mg", NameMm: "ပါရာစီတမော ၅၀၀ မီလီဂရမ်", GenericName: "Paracetamol",
			Category: "Analgesics", Description: "Relieves pain and fever", Price: 500, Unit: "STRIP",
			MinStockLevel: 50, StockLevel: 150,
			Batches: []models.ProductBatch{
				{ID: "batch1", BatchNumber: "B001", ExpiryDate: date("2025-12-31"), Quantity: 100, CostPrice: 300},
				{ID: "batch2", BatchNumber: "B002", ExpiryDate: date("2024-06-30"), Quantity: 50, CostPrice: 320},
			},
		},
		{
			ID: "p2", BranchID: SeedBranchDawei, SKU: "8859876543210", GTIN: strPtr("08859876543210"),
			NameEn: "Amoxicillin 250mg", NameMm: "အမောက်စီဆလင် ၂၅၀ မီလီဂရမ်", GenericName: "Amoxicillin",
			Category: "Antibiotics", Description: "Antibiotic for bacterial infections", Price: 1500, Unit: "STRIP",
			MinStockLevel: 30, RequiresPrescription: true, StockLevel: 20,
			Batches: []models.ProductBatch{
				{ID: "batch3", BatchNumber: "B003", ExpiryDate: date("2024-03-15"), Quantity: 20, CostPrice: 1000},
			},
		},
		{
			ID: "p3", BranchID: SeedBranchYangon, SKU: "8851111111111", GTIN: strPtr("08851111111111"),
			NameEn: "Vitamin C 1000mg", NameMm: "ဗီတာမင် စီ ၁၀၀၀ မီလီဂရမ်",
			Category: "Vitamins", Description: "Immune system support", Price: 3500, Unit: "BOTTLE",
			MinStockLevel: 20, StockLevel: 200,
			Batches: []models.ProductBatch{
				{ID: "batch4", BatchNumber: "B004", ExpiryDate: date("2026-01-01"), Quantity: 200, CostPrice: 2000},
			},
		},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		ignore := clause.OnConflict{DoNothing: true}
		if err := tx.Clauses(ignore).Create(&branches).Error; err != nil {
			return errors.Wrap(err, "seeding branches")
		}
		if err := tx.Clauses(ignore).Create(&users).Error; err != nil {
			return errors.Wrap(err, "seeding users")
		}
		for i := range products {
			p := products[i]
			batches := p.Batches
			p.Batches = nil
			if err := tx.Clauses(ignore).Create(&p).Error; err != nil {
				return errors.Wrapf(err, "seeding product %s", p.ID)
			}
			for j := range batches {
				batches[j].ProductID = p.ID
			}
			if err := tx.Clauses(ignore).Create(&batches).Error; err != nil {
				return errors.Wrapf(err, "seeding batches of %s", p.ID)
			}
		}
		log.WithFields(log.Fields{
			"branches": len(branches),
			"users":    len(users),
			"products": len(products),
		}).Info("seed data applied")
		return nil
	})
}
