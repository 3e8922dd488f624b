package models

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionUndo   AuditAction = "undo"
)

// Entity types written to the audit log.
const (
	AuditEntityStockAdjustment = "stock_adjustment"
	AuditEntityProduct         = "product"
	AuditEntityBatch           = "product_batch"
)

type AuditLog struct {
	ID        string    `gorm:"size:36;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	BranchID *string `gorm:"size:36;index" json:"branch_id"`

	UserID   string `gorm:"size:36" json:"user_id"`
	UserName string `gorm:"size:100" json:"user_name"` // denormalized

	// e.g. "stock_adjustment", "product"
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   string `gorm:"size:36;index" json:"entity_id"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	// JSON snapshots
	BeforeData string `gorm:"type:jsonb" json:"before_data"`
	AfterData  string `gorm:"type:jsonb" json:"after_data"`

	// This entry was written by an undo.
	Undone bool `json:"undone"`

	// This entry has been undone.
	IsUndone bool       `gorm:"default:false" json:"is_undone"`
	UndoneBy *string    `gorm:"size:36" json:"undone_by"`
	UndoneAt *time.Time `json:"undone_at"`
}
