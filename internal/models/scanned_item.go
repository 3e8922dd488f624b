package models

import "time"

type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncError   SyncStatus = "ERROR"
)

type ScanType string

const (
	ScanTypeGS1     ScanType = "GS1"
	ScanTypeBarcode ScanType = "BARCODE"
	ScanTypeManual  ScanType = "MANUAL"
)

// DefaultScanUnit is the unit a fresh draft starts with.
const DefaultScanUnit = "STRIP"

// ScannedItem is a scan awaiting operator verification (the draft) and, once
// confirmed or rejected, an entry of the scan history. It is never persisted.
type ScannedItem struct {
	ID           string     `json:"id"`
	BranchID     string     `json:"branch_id"`
	GTIN         string     `json:"gtin,omitempty"`
	ProductID    string     `json:"product_id,omitempty"`
	ProductName  string     `json:"product_name"`
	BatchNumber  string     `json:"batch_number,omitempty"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Quantity     int        `json:"quantity"`
	Unit         string     `json:"unit"`
	Location     string     `json:"location,omitempty"`
	CostPrice    *int64     `json:"cost_price,omitempty"`
	RawData      string     `json:"raw_data"`
	Type         ScanType   `json:"type"`
	SyncStatus   SyncStatus `json:"sync_status"`
	SyncMessage  string     `json:"sync_message,omitempty"`
	Verified     bool       `json:"verified"`
	Timestamp    time.Time  `json:"timestamp"`
	ScannedBy    string     `json:"scanned_by"`
}

type SyncAction string

const SyncActionUpdate SyncAction = "UPDATE"

// SyncLog records one successful stock sync triggered by a scan.
type SyncLog struct {
	ID          string     `json:"id"`
	ScanID      string     `json:"scan_id"`
	Action      SyncAction `json:"action"`
	ProductName string     `json:"product_name"`
	OldQuantity int        `json:"old_quantity"`
	NewQuantity int        `json:"new_quantity"`
	Timestamp   time.Time  `json:"timestamp"`
	Status      string     `json:"status"`
}
