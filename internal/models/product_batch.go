package models

import "time"

// ProductBatch is a receipt lot of a product, unique per (product, batch number).
// Quantity is not floored at zero.
type ProductBatch struct {
	ID          string    `gorm:"size:36;primaryKey" json:"id"`
	ProductID   string    `gorm:"size:36;not null;uniqueIndex:idx_product_batch_number" json:"product_id"`
	BatchNumber string    `gorm:"size:50;not null;uniqueIndex:idx_product_batch_number" json:"batch_number"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	ExpiryDate  time.Time `gorm:"index;not null" json:"expiry_date"`
	CostPrice   int64     `gorm:"not null;default:0" json:"cost_price"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
