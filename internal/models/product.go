package models

import "time"

// Product is a catalog entry owned by one branch. StockLevel is the aggregate
// on-hand quantity; it is adjusted alongside batch quantities, not derived from them.
type Product struct {
	ID                   string    `gorm:"size:36;primaryKey" json:"id"`
	BranchID             string    `gorm:"size:36;index;not null" json:"branch_id"`
	Branch               *Branch   `json:"-"`
	SKU                  string    `gorm:"size:50;index;not null" json:"sku"`
	GTIN                 *string   `gorm:"size:14;index" json:"gtin,omitempty"`
	NameEn               string    `gorm:"size:150;not null" json:"name_en"`
	NameMm               string    `gorm:"size:150;not null" json:"name_mm"`
	GenericName          string    `gorm:"size:150" json:"generic_name,omitempty"`
	Category             string    `gorm:"size:100;not null" json:"category"`
	Description          string    `gorm:"size:500" json:"description,omitempty"`
	Unit                 string    `gorm:"size:20;not null" json:"unit"` // STRIP, BOX, BOTTLE ...
	Location             string    `gorm:"size:100" json:"location,omitempty"`
	Price                int64     `gorm:"not null" json:"price"`
	StockLevel           int       `gorm:"not null;default:0" json:"stock_level"`
	MinStockLevel        int       `gorm:"not null;default:0" json:"min_stock_level"`
	RequiresPrescription bool      `gorm:"not null;default:false" json:"requires_prescription"`
	ImageURL             string    `gorm:"size:255" json:"image_url,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`

	Batches []ProductBatch `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"batches,omitempty"`
}

// GTINValue returns the GTIN or "" when the product has none.
func (p *Product) GTINValue() string {
	if p.GTIN == nil {
		return ""
	}
	return *p.GTIN
}
