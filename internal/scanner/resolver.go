package scanner

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"parami-backend/internal/gs1"
	"parami-backend/internal/inventory"
	"parami-backend/internal/models"
)

const (
	msgSynced   = "Verified & Added"
	msgNotFound = "Product not found. Please add to master list first."
)

var (
	ErrNoActiveDraft     = errors.New("no scan is waiting for confirmation")
	ErrDraftMismatch     = errors.New("confirmed item is not the active draft")
	ErrSyncInProgress    = errors.New("a sync is already in progress")
	ErrRetryNotSupported = errors.New("retrying a failed sync is not supported")
)

// StockAdjuster is the part of inventory.Adjuster the resolver needs.
type StockAdjuster interface {
	Adjust(ctx context.Context, req inventory.AdjustRequest) (*inventory.AdjustResult, error)
}

// Resolver turns scans into drafts and confirmed drafts into stock adjustments.
type Resolver struct {
	products inventory.ProductRepository
	adjuster StockAdjuster
	now      func() time.Time
	newID    func() string
}

func NewResolver(products inventory.ProductRepository, adjuster StockAdjuster) *Resolver {
	return &Resolver{
		products: products,
		adjuster: adjuster,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// StartScan opens a draft for rec, replacing any draft not yet confirmed.
// Name and unit are pre-filled when the GTIN matches a product of the branch;
// the quantity always starts at zero.
func (r *Resolver) StartScan(ctx context.Context, sess *Session, rec gs1.Record) (*models.ScannedItem, error) {
	if sess.State() == StateSyncing {
		return nil, ErrSyncInProgress
	}

	draft := models.ScannedItem{
		ID:           r.newID(),
		BranchID:     sess.BranchID,
		GTIN:         rec.GTIN,
		BatchNumber:  rec.BatchNumber,
		ExpiryDate:   rec.ExpiryDate,
		SerialNumber: rec.SerialNumber,
		Quantity:     0,
		Unit:         models.DefaultScanUnit,
		RawData:      rec.RawData,
		Type:         rec.Type,
		SyncStatus:   models.SyncPending,
		Verified:     false,
		Timestamp:    r.now(),
		ScannedBy:    sess.Operator,
	}

	if draft.GTIN != "" {
		products, err := r.products.FindAll(ctx, sess.BranchID)
		if err != nil {
			// Pre-fill is best effort; the draft is still usable.
			log.WithError(err).WithField("branch_id", sess.BranchID).Warn("scan pre-fill skipped")
		} else if p := matchGTIN(products, draft.GTIN); p != nil {
			draft.ProductID = p.ID
			draft.ProductName = p.NameEn
			draft.Unit = p.Unit
		}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state == StateSyncing {
		return nil, ErrSyncInProgress
	}
	sess.draft = &draft
	sess.state = StateDrafting

	out := draft
	return &out, nil
}

func matchGTIN(products []models.Product, gtin string) *models.Product {
	gtin = gs1.NormalizeGTIN(gtin)
	if gtin == "" {
		return nil
	}
	for i := range products {
		if gs1.NormalizeGTIN(products[i].GTINValue()) == gtin {
			return &products[i]
		}
	}
	return nil
}

// resolve finds the product by GTIN, or by raw payload against SKU and id when
// the item carries no GTIN of its own. A plain barcode's GTIN is read from the
// raw digits, so barcodes fall back as well.
func resolve(products []models.Product, item *models.ScannedItem) *models.Product {
	if p := matchGTIN(products, item.GTIN); p != nil {
		return p
	}
	raw := strings.TrimSpace(item.RawData)
	if raw == "" || (item.GTIN != "" && item.Type != models.ScanTypeBarcode) {
		return nil
	}
	for i := range products {
		if products[i].SKU == raw || products[i].ID == raw {
			return &products[i]
		}
	}
	return nil
}

// ConfirmAndSync applies the operator-verified draft to stock.
//
// An unresolved product ends the draft with an ERROR history entry and
// inventory.ErrProductNotFound. A storage failure puts the session back to
// DRAFTING with the edited draft kept, so the operator can confirm again.
func (r *Resolver) ConfirmAndSync(ctx context.Context, sess *Session, edited models.ScannedItem) (*models.ScannedItem, error) {
	sess.mu.Lock()
	if sess.state == StateSyncing {
		sess.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	if sess.state != StateDrafting || sess.draft == nil {
		sess.mu.Unlock()
		return nil, ErrNoActiveDraft
	}
	if edited.ID != sess.draft.ID {
		sess.mu.Unlock()
		return nil, ErrDraftMismatch
	}

	item := mergeEdits(*sess.draft, edited)
	sess.draft = &item
	sess.state = StateSyncing
	sess.mu.Unlock()

	products, err := r.products.FindAll(ctx, sess.BranchID)
	if err != nil {
		r.backToDrafting(sess)
		return nil, err
	}

	product := resolve(products, &item)
	if product == nil {
		return r.fail(sess, item), inventory.ErrProductNotFound
	}

	req := inventory.AdjustRequest{
		ProductID:   product.ID,
		Delta:       item.Quantity,
		BatchNumber: item.BatchNumber,
		ExpiryDate:  item.ExpiryDate,
		CostPrice:   item.CostPrice,
	}
	if item.Unit != "" {
		req.Unit = &item.Unit
	}
	if item.Location != "" {
		req.Location = &item.Location
	}

	if _, err := r.adjuster.Adjust(ctx, req); err != nil {
		if errors.Is(err, inventory.ErrProductNotFound) {
			return r.fail(sess, item), err
		}
		r.backToDrafting(sess)
		return nil, err
	}

	item.ProductID = product.ID
	item.ProductName = product.NameEn
	item.SyncStatus = models.SyncSynced
	item.SyncMessage = msgSynced
	item.Verified = true

	entry := models.SyncLog{
		ID:          r.newID(),
		ScanID:      item.ID,
		Action:      models.SyncActionUpdate,
		ProductName: product.NameEn,
		OldQuantity: product.StockLevel,
		NewQuantity: product.StockLevel + item.Quantity,
		Timestamp:   r.now(),
		Status:      "SUCCESS",
	}

	sess.mu.Lock()
	sess.history.push(item)
	sess.logs.push(entry)
	sess.draft = nil
	sess.state = StateIdle
	sess.mu.Unlock()

	log.WithFields(log.Fields{
		"scan_id":    item.ID,
		"product_id": product.ID,
		"quantity":   item.Quantity,
		"operator":   sess.Operator,
	}).Info("scan synced")

	out := item
	return &out, nil
}

// mergeEdits takes the operator editable fields from edited; identity and
// capture fields stay as scanned.
func mergeEdits(draft, edited models.ScannedItem) models.ScannedItem {
	out := draft
	out.GTIN = edited.GTIN
	out.ProductName = edited.ProductName
	out.BatchNumber = edited.BatchNumber
	out.ExpiryDate = edited.ExpiryDate
	out.SerialNumber = edited.SerialNumber
	out.Quantity = edited.Quantity
	out.Unit = edited.Unit
	out.Location = edited.Location
	out.CostPrice = edited.CostPrice
	return out
}

func (r *Resolver) fail(sess *Session, item models.ScannedItem) *models.ScannedItem {
	item.SyncStatus = models.SyncError
	item.SyncMessage = msgNotFound
	item.Verified = true

	sess.mu.Lock()
	sess.history.push(item)
	sess.draft = nil
	sess.state = StateIdle
	sess.mu.Unlock()

	log.WithFields(log.Fields{
		"scan_id":  item.ID,
		"gtin":     item.GTIN,
		"raw":      item.RawData,
		"operator": sess.Operator,
	}).Warn("scan did not resolve to a product")

	return &item
}

func (r *Resolver) backToDrafting(sess *Session) {
	sess.mu.Lock()
	sess.state = StateDrafting
	sess.mu.Unlock()
}

// ClearActiveDraft drops the draft without recording anything.
func (r *Resolver) ClearActiveDraft(sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state == StateSyncing {
		return ErrSyncInProgress
	}
	sess.draft = nil
	sess.state = StateIdle
	return nil
}

// ClearHistory empties history and sync logs. The active draft is kept.
func (r *Resolver) ClearHistory(sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.history.clear()
	sess.logs.clear()
}

// RetrySync always fails; a failed scan is scanned and confirmed again instead.
func (r *Resolver) RetrySync(sess *Session, scanID string) error {
	return ErrRetryNotSupported
}
