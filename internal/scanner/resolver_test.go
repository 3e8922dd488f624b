package scanner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parami-backend/internal/gs1"
	"parami-backend/internal/inventory"
	"parami-backend/internal/models"
)

const branch = "b-dawei"

func strptr(s string) *string { return &s }

// fakeProducts is an in-memory ProductRepository.
type fakeProducts struct {
	products map[string]*models.Product
	listErr  error
}

func newFakeProducts(ps ...models.Product) *fakeProducts {
	f := &fakeProducts{products: map[string]*models.Product{}}
	for i := range ps {
		p := ps[i]
		f.products[p.ID] = &p
	}
	return f
}

func (f *fakeProducts) FindByID(_ context.Context, id string) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) FindAll(_ context.Context, branchID string) ([]models.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Product
	for _, p := range f.products {
		if branchID == "" || p.BranchID == branchID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProducts) ApplyDelta(_ context.Context, id string, delta int, unit, location *string) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	p.StockLevel += delta
	if unit != nil {
		p.Unit = *unit
	}
	if location != nil {
		p.Location = *location
	}
	cp := *p
	return &cp, nil
}

// fakeAdjuster records requests and applies them to the fake products.
type fakeAdjuster struct {
	products *fakeProducts
	calls    []inventory.AdjustRequest
	err      error
}

func (a *fakeAdjuster) Adjust(ctx context.Context, req inventory.AdjustRequest) (*inventory.AdjustResult, error) {
	a.calls = append(a.calls, req)
	if a.err != nil {
		return nil, a.err
	}
	before, err := a.products.FindByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	after, err := a.products.ApplyDelta(ctx, req.ProductID, req.Delta, req.Unit, req.Location)
	if err != nil {
		return nil, err
	}
	return &inventory.AdjustResult{Before: *before, After: *after}, nil
}

func paracetamol() models.Product {
	return models.Product{
		ID: "p1", BranchID: branch, SKU: "8850123456789", GTIN: strptr("08850123456789"),
		NameEn: "Paracetamol 500mg", Unit: "BOX", StockLevel: 150,
	}
}

func noGTIN() models.Product {
	return models.Product{ID: "p9", BranchID: branch, SKU: "LOCAL-42", NameEn: "Cotton Wool", Unit: "PACK", StockLevel: 3}
}

func newTestResolver(ps ...models.Product) (*Resolver, *fakeProducts, *fakeAdjuster) {
	products := newFakeProducts(ps...)
	adj := &fakeAdjuster{products: products}
	n := 0
	r := NewResolver(products, adj).WithClock(func() time.Time {
		return time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	})
	r.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return r, products, adj
}

func newTestSession() *Session {
	return NewSession(branch, "Kyaw Kyaw", DefaultHistoryLimit, DefaultLogLimit)
}

func TestStartScanPrefillsFromGTIN(t *testing.T) {
	r, _, _ := newTestResolver(paracetamol(), noGTIN())
	sess := newTestSession()

	rec, err := gs1.Parse("(01)08850123456789(17)251231(10)B001")
	require.NoError(t, err)

	draft, err := r.StartScan(context.Background(), sess, rec)
	require.NoError(t, err)

	assert.Equal(t, StateDrafting, sess.State())
	assert.Equal(t, "Paracetamol 500mg", draft.ProductName)
	assert.Equal(t, "BOX", draft.Unit)
	assert.Equal(t, "p1", draft.ProductID)
	assert.Equal(t, 0, draft.Quantity)
	assert.Equal(t, "B001", draft.BatchNumber)
	assert.Equal(t, models.SyncPending, draft.SyncStatus)
	assert.False(t, draft.Verified)
	assert.Equal(t, "Kyaw Kyaw", draft.ScannedBy)
}

func TestStartScanWithoutMatchIsNotAnError(t *testing.T) {
	r, _, _ := newTestResolver(paracetamol(), noGTIN())
	sess := newTestSession()

	draft, err := r.StartScan(context.Background(), sess, gs1.Record{RawData: "LOCAL-42", Type: models.ScanTypeBarcode})
	require.NoError(t, err)
	// an empty GTIN never matches a product that has none
	assert.Empty(t, draft.ProductName)
	assert.Equal(t, models.DefaultScanUnit, draft.Unit)
}

func TestStartScanReplacesDraft(t *testing.T) {
	r, _, _ := newTestResolver(paracetamol())
	sess := newTestSession()
	ctx := context.Background()

	first, err := r.StartScan(ctx, sess, gs1.Record{GTIN: "08850123456789", RawData: "a", Type: models.ScanTypeGS1})
	require.NoError(t, err)
	second, err := r.StartScan(ctx, sess, gs1.Record{GTIN: "1", RawData: "b", Type: models.ScanTypeGS1})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, second.ID, sess.ActiveDraft().ID)
	assert.Empty(t, sess.History())
}

func TestStartScanSurvivesListFailure(t *testing.T) {
	r, products, _ := newTestResolver(paracetamol())
	products.listErr = errors.New("connection reset")
	sess := newTestSession()

	draft, err := r.StartScan(context.Background(), sess, gs1.Record{GTIN: "08850123456789", RawData: "x", Type: models.ScanTypeGS1})
	require.NoError(t, err)
	assert.Empty(t, draft.ProductName)
	assert.Equal(t, StateDrafting, sess.State())
}

func TestConfirmAndSyncByGTIN(t *testing.T) {
	r, products, adj := newTestResolver(paracetamol())
	sess := newTestSession()
	ctx := context.Background()

	draft, err := r.StartScan(ctx, sess, gs1.Record{GTIN: "08850123456789", BatchNumber: "B001", RawData: "raw", Type: models.ScanTypeGS1})
	require.NoError(t, err)

	edited := *draft
	edited.Quantity = 12
	edited.Unit = "STRIP"
	edited.Location = "Shelf 3"

	item, err := r.ConfirmAndSync(ctx, sess, edited)
	require.NoError(t, err)

	assert.Equal(t, models.SyncSynced, item.SyncStatus)
	assert.True(t, item.Verified)
	assert.Equal(t, "Paracetamol 500mg", item.ProductName)
	assert.Equal(t, StateIdle, sess.State())
	assert.Nil(t, sess.ActiveDraft())

	require.Len(t, adj.calls, 1)
	call := adj.calls[0]
	assert.Equal(t, "p1", call.ProductID)
	assert.Equal(t, 12, call.Delta)
	assert.Equal(t, "B001", call.BatchNumber)
	require.NotNil(t, call.Unit)
	assert.Equal(t, "STRIP", *call.Unit)
	require.NotNil(t, call.Location)
	assert.Equal(t, "Shelf 3", *call.Location)
	assert.Equal(t, 162, products.products["p1"].StockLevel)

	history := sess.History()
	require.Len(t, history, 1)
	assert.Equal(t, item.ID, history[0].ID)

	logs := sess.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, item.ID, logs[0].ScanID)
	assert.Equal(t, models.SyncActionUpdate, logs[0].Action)
	assert.Equal(t, 150, logs[0].OldQuantity)
	assert.Equal(t, 162, logs[0].NewQuantity)
	assert.Equal(t, "SUCCESS", logs[0].Status)
}

func TestConfirmAndSyncFallsBackToSKU(t *testing.T) {
	r, products, adj := newTestResolver(paracetamol(), noGTIN())
	sess := newTestSession()
	ctx := context.Background()

	draft, err := r.StartScan(ctx, sess, gs1.Record{RawData: "LOCAL-42", Type: models.ScanTypeBarcode})
	require.NoError(t, err)

	edited := *draft
	edited.Quantity = 2
	item, err := r.ConfirmAndSync(ctx, sess, edited)
	require.NoError(t, err)

	assert.Equal(t, "Cotton Wool", item.ProductName)
	require.Len(t, adj.calls, 1)
	assert.Equal(t, "p9", adj.calls[0].ProductID)
	assert.Equal(t, 5, products.products["p9"].StockLevel)
}

func TestConfirmAndSyncPlainBarcodeFallsBackToSKU(t *testing.T) {
	ean := models.Product{ID: "p8", BranchID: branch, SKU: "8851234567890", NameEn: "Zinc Tablets", Unit: "STRIP", StockLevel: 5}
	r, products, adj := newTestResolver(paracetamol(), ean)
	sess := newTestSession()
	ctx := context.Background()

	rec, err := gs1.Parse("8851234567890")
	require.NoError(t, err)
	draft, err := r.StartScan(ctx, sess, rec)
	require.NoError(t, err)
	assert.Equal(t, "08851234567890", draft.GTIN)

	edited := *draft
	edited.Quantity = 2
	item, err := r.ConfirmAndSync(ctx, sess, edited)
	require.NoError(t, err)

	assert.Equal(t, "Zinc Tablets", item.ProductName)
	require.Len(t, adj.calls, 1)
	assert.Equal(t, "p8", adj.calls[0].ProductID)
	assert.Equal(t, 7, products.products["p8"].StockLevel)
}

func TestGTINMatchIgnoresPadding(t *testing.T) {
	short := models.Product{ID: "p7", BranchID: branch, SKU: "ZINC-10", GTIN: strptr("8850000000017"), NameEn: "Zinc Syrup", Unit: "BOTTLE", StockLevel: 1}
	r, _, adj := newTestResolver(short)
	sess := newTestSession()
	ctx := context.Background()

	draft, err := r.StartScan(ctx, sess, gs1.Record{GTIN: "08850000000017", RawData: "(01)08850000000017", Type: models.ScanTypeGS1})
	require.NoError(t, err)
	assert.Equal(t, "Zinc Syrup", draft.ProductName)

	_, err = r.ConfirmAndSync(ctx, sess, *draft)
	require.NoError(t, err)
	require.Len(t, adj.calls, 1)
	assert.Equal(t, "p7", adj.calls[0].ProductID)
}

func TestConfirmAndSyncFallsBackToID(t *testing.T) {
	r, _, adj := newTestResolver(paracetamol())
	sess := newTestSession()
	ctx := context.Background()

	draft, err := r.StartScan(ctx, sess, gs1.Record{RawData: "p1", Type: models.ScanTypeManual})
	require.NoError(t, err)

	_, err = r.ConfirmAndSync(ctx, sess, *draft)
	require.NoError(t, err)
	require.Len(t, adj.calls, 1)
	assert.Equal(t, "p1", adj.calls[0].ProductID)
}

func TestConfirmAndSyncUnresolved(t *testing.T) {
	r, products, adj := newTestResolver(paracetamol(), noGTIN())
	sess := newTestSession()
	ctx := context.Background()

	// A GTIN that misses does not fall back to the raw payload.
	draft, err := r.StartScan(ctx, sess, gs1.Record{GTIN: "09999999999999", RawData: "LOCAL-42", Type: models.ScanTypeGS1})
	require.NoError(t, err)
	edited := *draft
	edited.Quantity = 4

	item, err := r.ConfirmAndSync(ctx, sess, edited)
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
	require.NotNil(t, item)
	assert.Equal(t, models.SyncError, item.SyncStatus)
	assert.Equal(t, "Product not found. Please add to master list first.", item.SyncMessage)

	assert.Empty(t, adj.calls)
	assert.Equal(t, 3, products.products["p9"].StockLevel)
	assert.Equal(t, StateIdle, sess.State())
	assert.Nil(t, sess.ActiveDraft())

	history := sess.History()
	require.Len(t, history, 1)
	assert.Equal(t, models.SyncError, history[0].SyncStatus)
	assert.Equal(t, 4, history[0].Quantity)
	assert.Empty(t, sess.Logs())
}

func TestConfirmAndSyncKeepsDraftOnStorageFailure(t *testing.T) {
	r, _, adj := newTestResolver(paracetamol())
	adj.err = errors.New("database is locked")
	sess := newTestSession()
	ctx := context.Background()

	draft, err := r.StartScan(ctx, sess, gs1.Record{GTIN: "08850123456789", RawData: "raw", Type: models.ScanTypeGS1})
	require.NoError(t, err)
	edited := *draft
	edited.Quantity = 9

	item, err := r.ConfirmAndSync(ctx, sess, edited)
	require.Error(t, err)
	assert.Nil(t, item)
	assert.Equal(t, StateDrafting, sess.State())
	active := sess.ActiveDraft()
	require.NotNil(t, active)
	assert.Equal(t, 9, active.Quantity)
	assert.Empty(t, sess.History())

	// once storage recovers the same draft can be confirmed again
	adj.err = nil
	item, err = r.ConfirmAndSync(ctx, sess, *active)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSynced, item.SyncStatus)
}

func TestConfirmAndSyncRequiresActiveDraft(t *testing.T) {
	r, _, _ := newTestResolver(paracetamol())
	sess := newTestSession()
	ctx := context.Background()

	_, err := r.ConfirmAndSync(ctx, sess, models.ScannedItem{ID: "x"})
	assert.ErrorIs(t, err, ErrNoActiveDraft)

	_, err = r.StartScan(ctx, sess, gs1.Record{GTIN: "08850123456789", RawData: "raw", Type: models.ScanTypeGS1})
	require.NoError(t, err)
	_, err = r.ConfirmAndSync(ctx, sess, models.ScannedItem{ID: "someone-else"})
	assert.ErrorIs(t, err, ErrDraftMismatch)
	assert.Equal(t, StateDrafting, sess.State())
}

func TestClearActiveDraftRecordsNothing(t *testing.T) {
	r, _, adj := newTestResolver(paracetamol())
	sess := newTestSession()

	_, err := r.StartScan(context.Background(), sess, gs1.Record{GTIN: "08850123456789", RawData: "raw", Type: models.ScanTypeGS1})
	require.NoError(t, err)
	require.NoError(t, r.ClearActiveDraft(sess))

	assert.Equal(t, StateIdle, sess.State())
	assert.Nil(t, sess.ActiveDraft())
	assert.Empty(t, sess.History())
	assert.Empty(t, adj.calls)
}

func TestClearHistoryAndRetry(t *testing.T) {
	r, _, _ := newTestResolver(paracetamol())
	sess := newTestSession()
	ctx := context.Background()

	draft, err := r.StartScan(ctx, sess, gs1.Record{GTIN: "08850123456789", RawData: "raw", Type: models.ScanTypeGS1})
	require.NoError(t, err)
	item, err := r.ConfirmAndSync(ctx, sess, *draft)
	require.NoError(t, err)

	assert.ErrorIs(t, r.RetrySync(sess, item.ID), ErrRetryNotSupported)

	r.ClearHistory(sess)
	assert.Empty(t, sess.History())
	assert.Empty(t, sess.Logs())
}
