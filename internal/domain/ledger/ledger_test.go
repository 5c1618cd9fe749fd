package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	corenumerator "merchledger/internal/core/numerator"
	"merchledger/internal/core/types"
	"merchledger/internal/domain/costing"
	"merchledger/internal/domain/documents"
	"merchledger/internal/domain/ledger"
	"merchledger/internal/domain/reservation"
	"merchledger/internal/domain/stock"
	"merchledger/internal/infrastructure/numerator"
	"merchledger/internal/infrastructure/storage/memory"
)

type fixture struct {
	store   *memory.Store
	stock   *stock.Service
	mutator *ledger.Mutator
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	docs    func(documents.Repository) documents.Repository
	numbers corenumerator.Generator
}

func withDocs(wrap func(documents.Repository) documents.Repository) fixtureOption {
	return func(c *fixtureConfig) { c.docs = wrap }
}

func withNumbers(g corenumerator.Generator) fixtureOption {
	return func(c *fixtureConfig) { c.numbers = g }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	store := memory.NewStore()

	cfg := fixtureConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	var docs documents.Repository = store.Documents()
	if cfg.docs != nil {
		docs = cfg.docs(docs)
	}
	numbers := cfg.numbers
	if numbers == nil {
		numbers = numerator.New(store.Counters()).WithClock(func() time.Time {
			return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
		})
	}

	stockSvc := stock.NewService(store.Stock())
	costSvc := costing.NewService(stockSvc, store.Documents(), store.TxManager())
	return &fixture{
		store: store,
		stock: stockSvc,
		mutator: ledger.NewMutator(
			store.TxManager(),
			numbers,
			stockSvc,
			costSvc,
			reservation.NewManager(stockSvc),
			docs,
		),
	}
}

func (f *fixture) product(t *testing.T, name string, unitType stock.UnitType) id.ID {
	t.Helper()
	rec, err := f.stock.Register(context.Background(), stock.RegisterInput{
		Name:         name,
		Unit:         "pc",
		UnitType:     unitType,
		SellingPrice: types.MustMoney("99"),
	})
	require.NoError(t, err)
	return rec.ProductID
}

func (f *fixture) record(t *testing.T, productID id.ID) *stock.Record {
	t.Helper()
	rec, err := f.stock.Get(context.Background(), productID)
	require.NoError(t, err)
	return rec
}

func (f *fixture) apply(t *testing.T, kind documents.Kind, payload ledger.Payload) *ledger.Result {
	t.Helper()
	res, err := f.mutator.Apply(context.Background(), kind, payload)
	require.NoError(t, err)
	return res
}

func (f *fixture) receive(t *testing.T, productID, warehouseID id.ID, qty int64, cost string) *ledger.Result {
	t.Helper()
	return f.apply(t, documents.KindReceipt, ledger.Payload{
		WarehouseID: &warehouseID,
		Items:       []ledger.ItemInput{line(productID, qty, cost)},
	})
}

func line(productID id.ID, qty int64, price string) ledger.ItemInput {
	item := ledger.ItemInput{ProductID: productID, Quantity: types.Qty(qty)}
	if price != "" {
		item.UnitPrice = types.MustMoney(price)
	}
	return item
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func ptr(v id.ID) *id.ID { return &v }

// --- Scenario: oversell, then a receipt corrects the pending cost ---

func TestOversellThenReceiptCorrectsCost(t *testing.T) {
	f := newFixture(t)
	lamp := f.product(t, "Lamp", stock.UnitDiscrete)
	wh := id.New()

	rc := f.receive(t, lamp, wh, 20, "100")
	assert.Equal(t, "RC-2026-001", rc.Document.Number)
	assertDecimal(t, "100", f.record(t, lamp).CostPrice)

	inv := f.apply(t, documents.KindCustomerInvoice, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{line(lamp, 25, "150")},
	})
	assert.Equal(t, "CF-2026-001", inv.Document.Number)
	assert.Equal(t, []string{"line 1 (Lamp): available 20, requested 25"}, inv.Warnings)
	require.Len(t, inv.Document.Items, 1)
	assert.True(t, inv.Document.Items[0].CostPricePending)
	assertDecimal(t, "100", inv.Document.Items[0].CostPriceAtTime)
	assertDecimal(t, "3750", inv.Document.TotalAmount)

	rec := f.record(t, lamp)
	assertDecimal(t, "-5", rec.GlobalQuantity)
	assertDecimal(t, "-5", rec.QuantityAt(&wh))

	f.receive(t, lamp, wh, 30, "120")

	rec = f.record(t, lamp)
	assertDecimal(t, "124", rec.CostPrice)
	assertDecimal(t, "25", rec.GlobalQuantity)
	require.NoError(t, rec.CheckBalanced())

	corrected, err := f.mutator.Get(context.Background(), inv.Document.ID)
	require.NoError(t, err)
	assert.True(t, corrected.IsMinusCorrection)
	assert.False(t, corrected.Items[0].CostPricePending)
	assertDecimal(t, "124", corrected.Items[0].CostPriceAtTime)
	assertDecimal(t, "3100", corrected.TotalCost)
}

func TestOversellAgainstWarehouseStock(t *testing.T) {
	f := newFixture(t)
	cable := f.product(t, "Cable", stock.UnitDiscrete)
	wh, other := id.New(), id.New()
	f.receive(t, cable, wh, 2, "10")
	f.receive(t, cable, other, 8, "10")

	inv := f.apply(t, documents.KindCustomerInvoice, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{line(cable, 5, "")},
	})

	assert.Equal(t, []string{"line 1 (Cable): available 2, requested 5"}, inv.Warnings)
	assert.True(t, inv.Document.Items[0].CostPricePending)
	assertDecimal(t, "99", inv.Document.Items[0].UnitPrice)

	rec := f.record(t, cable)
	assertDecimal(t, "-3", rec.QuantityAt(&wh))
	assertDecimal(t, "5", rec.GlobalQuantity)
	require.NoError(t, rec.CheckBalanced())
}

func TestInvoiceWithoutWarehouseKeepsSplitBalanced(t *testing.T) {
	f := newFixture(t)
	mug := f.product(t, "Mug", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, mug, wh, 20, "10")

	first := f.apply(t, documents.KindCustomerInvoice, ledger.Payload{
		Items: []ledger.ItemInput{line(mug, 5, "")},
	})
	assert.Empty(t, first.Warnings)

	rec := f.record(t, mug)
	assertDecimal(t, "15", rec.GlobalQuantity)
	assertDecimal(t, "15", rec.QuantityAt(&wh))
	require.NoError(t, rec.CheckBalanced())

	second := f.apply(t, documents.KindCustomerInvoice, ledger.Payload{
		Items: []ledger.ItemInput{line(mug, 30, "")},
	})
	assert.Equal(t, []string{"line 1 (Mug): available 15, requested 30"}, second.Warnings)
	assert.True(t, second.Document.Items[0].CostPricePending)

	rec = f.record(t, mug)
	assertDecimal(t, "-15", rec.GlobalQuantity)
	assertDecimal(t, "-15", rec.QuantityAt(&wh))
	require.NoError(t, rec.CheckBalanced())

	invoiceID := first.Document.ID
	f.apply(t, documents.KindCustomerReturn, ledger.Payload{
		SourceDocumentID: &invoiceID,
		Items:            []ledger.ItemInput{line(mug, 3, "")},
	})

	rec = f.record(t, mug)
	assertDecimal(t, "-12", rec.GlobalQuantity)
	assertDecimal(t, "-12", rec.QuantityAt(&wh))
	require.NoError(t, rec.CheckBalanced())
}

func TestInvoiceWithinStockIsNotPending(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Desk", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, p, wh, 5, "40")

	inv := f.apply(t, documents.KindCustomerInvoice, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{line(p, 5, "60")},
	})

	assert.Empty(t, inv.Warnings)
	assert.False(t, inv.Document.Items[0].CostPricePending)
	assertDecimal(t, "0", f.record(t, p).GlobalQuantity)
}

// --- Atomicity ---

type failingDocs struct {
	documents.Repository
	fail bool
}

func (d *failingDocs) Create(ctx context.Context, doc *documents.Document) error {
	if d.fail {
		return errors.New("disk full")
	}
	return d.Repository.Create(ctx, doc)
}

func TestApplyAbortLeavesNoTrace(t *testing.T) {
	docs := &failingDocs{fail: true}
	f := newFixture(t, withDocs(func(inner documents.Repository) documents.Repository {
		docs.Repository = inner
		return docs
	}))
	p := f.product(t, "Chair", stock.UnitDiscrete)
	wh := id.New()

	_, err := f.mutator.Apply(context.Background(), documents.KindReceipt, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{line(p, 10, "30")},
	})
	require.Error(t, err)

	rec := f.record(t, p)
	assertDecimal(t, "0", rec.GlobalQuantity)
	assertDecimal(t, "0", rec.CostPrice)
	assert.Empty(t, rec.StockByWarehouse)
	assert.Equal(t, int64(1), f.store.Counters().Value("RC-2026"))

	docs.fail = false
	res := f.receive(t, p, wh, 10, "30")
	assert.Equal(t, "RC-2026-002", res.Document.Number, "aborted number is not reused")
}

func TestApplyAbortsWhenNumberingFails(t *testing.T) {
	f := newFixture(t, withNumbers(&corenumerator.MockGenerator{
		NextFunc: func(context.Context, string, corenumerator.Options) (string, error) {
			return "", errors.New("counter unavailable")
		},
	}))
	p := f.product(t, "Chair", stock.UnitDiscrete)
	wh := id.New()

	_, err := f.mutator.Apply(context.Background(), documents.KindReceipt, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{line(p, 10, "30")},
	})
	require.Error(t, err)
	assertDecimal(t, "0", f.record(t, p).GlobalQuantity)

	list, err := f.mutator.List(context.Background(), documents.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
}

func TestMultiLineFailureRollsBackEarlierLines(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", stock.UnitDiscrete)
	b := f.product(t, "B", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, a, wh, 5, "1")
	f.receive(t, b, wh, 1, "1")

	_, err := f.mutator.Apply(context.Background(), documents.KindShipment, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{line(a, 5, "2"), line(b, 2, "2")},
	})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, 2, appErr.Details["line"])
	assertDecimal(t, "5", f.record(t, a).GlobalQuantity)
	assertDecimal(t, "1", f.record(t, b).GlobalQuantity)
}

// --- Outbound with hard stock check ---

func TestShipmentStockCheck(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Shelf", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, p, wh, 10, "5")

	_, err := f.mutator.Apply(context.Background(), documents.KindShipment, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{line(p, 11, "")},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsPreconditionFailure(err))
	assert.Contains(t, err.Error(), "available 10, requested 11")
	assertDecimal(t, "10", f.record(t, p).GlobalQuantity)

	// The rejected attempt consumed SH-2026-001.
	res := f.apply(t, documents.KindShipment, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{line(p, 10, "")},
	})
	assert.Equal(t, "SH-2026-002", res.Document.Number)
	rec := f.record(t, p)
	assertDecimal(t, "0", rec.GlobalQuantity)
	assertDecimal(t, "0", rec.QuantityAt(&wh))
}

func TestShipmentFulfilsReservedOrder(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Sofa", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, p, wh, 10, "200")

	order := f.apply(t, documents.KindCustomerOrder, ledger.Payload{
		WarehouseID: &wh,
		Reserve:     true,
		Items:       []ledger.ItemInput{line(p, 4, "300")},
	})
	assert.Equal(t, documents.StatusConfirmed, order.Document.Status)
	assert.True(t, order.Document.Reserved)
	assertDecimal(t, "4", f.record(t, p).GlobalReserved)

	f.apply(t, documents.KindShipment, ledger.Payload{
		WarehouseID:      &wh,
		SourceDocumentID: &order.Document.ID,
		Items:            []ledger.ItemInput{line(p, 4, "300")},
	})

	got, err := f.mutator.Get(context.Background(), order.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusFulfilled, got.Status)
	assert.False(t, got.Reserved)

	rec := f.record(t, p)
	assertDecimal(t, "6", rec.GlobalQuantity)
	assertDecimal(t, "0", rec.GlobalReserved)
	require.NoError(t, rec.CheckBalanced())
}

func TestShipmentRejectsUnconfirmedOrder(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Sofa", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, p, wh, 10, "200")

	order := f.apply(t, documents.KindCustomerOrder, ledger.Payload{Items: []ledger.ItemInput{line(p, 4, "")}})

	_, err := f.mutator.Apply(context.Background(), documents.KindShipment, ledger.Payload{
		WarehouseID:      &wh,
		SourceDocumentID: &order.Document.ID,
		Items:            []ledger.ItemInput{line(p, 4, "")},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsPreconditionFailure(err))
	assertDecimal(t, "10", f.record(t, p).GlobalQuantity)
}

func TestSupplierReturnDrainsWarehousesInOrder(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Bolt", stock.UnitDiscrete)
	w1, w2 := id.New(), id.New()
	f.receive(t, p, w1, 3, "2")
	f.receive(t, p, w2, 5, "2")

	res := f.apply(t, documents.KindSupplierReturn, ledger.Payload{
		Items: []ledger.ItemInput{line(p, 4, "")},
	})
	assertDecimal(t, "2", res.Document.Items[0].UnitPrice)

	rec := f.record(t, p)
	assertDecimal(t, "4", rec.GlobalQuantity)
	assertDecimal(t, "0", rec.QuantityAt(&w1))
	assertDecimal(t, "4", rec.QuantityAt(&w2))
	require.NoError(t, rec.CheckBalanced())
}

func TestWriteoff(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Milk", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, p, wh, 8, "1.5")

	_, err := f.mutator.Apply(context.Background(), documents.KindWriteoff, ledger.Payload{
		Items: []ledger.ItemInput{line(p, 9, "")},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsPreconditionFailure(err))

	res := f.apply(t, documents.KindWriteoff, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{line(p, 8, "")},
	})
	assertDecimal(t, "12", res.Document.TotalCost)
	assertDecimal(t, "0", f.record(t, p).QuantityAt(&wh))
}

// --- Customer returns ---

func TestCustomerReturnLimit(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Kettle", stock.UnitDiscrete)
	other := f.product(t, "Toaster", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, p, wh, 10, "50")
	f.receive(t, other, wh, 1, "10")

	inv := f.apply(t, documents.KindCustomerInvoice, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{line(p, 6, "80")},
	})
	invoiceID := inv.Document.ID

	first := f.apply(t, documents.KindCustomerReturn, ledger.Payload{
		SourceDocumentID: &invoiceID,
		Items:            []ledger.ItemInput{line(p, 4, "")},
	})
	assertDecimal(t, "80", first.Document.Items[0].UnitPrice)
	assertDecimal(t, "50", first.Document.Items[0].CostPriceAtTime)
	assertDecimal(t, "8", f.record(t, p).QuantityAt(&wh))

	_, err := f.mutator.Apply(context.Background(), documents.KindCustomerReturn, ledger.Payload{
		SourceDocumentID: &invoiceID,
		Items:            []ledger.ItemInput{line(p, 3, "")},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsPreconditionFailure(err))

	f.apply(t, documents.KindCustomerReturn, ledger.Payload{
		SourceDocumentID: &invoiceID,
		Items:            []ledger.ItemInput{line(p, 2, "")},
	})
	assertDecimal(t, "10", f.record(t, p).GlobalQuantity)

	_, err = f.mutator.Apply(context.Background(), documents.KindCustomerReturn, ledger.Payload{
		SourceDocumentID: &invoiceID,
		Items:            []ledger.ItemInput{line(other, 1, "")},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsPreconditionFailure(err))
}

func TestCustomerReturnSource(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Kettle", stock.UnitDiscrete)
	wh := id.New()
	rc := f.receive(t, p, wh, 10, "50")

	_, err := f.mutator.Apply(context.Background(), documents.KindCustomerReturn, ledger.Payload{
		Items: []ledger.ItemInput{line(p, 1, "")},
	})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.mutator.Apply(context.Background(), documents.KindCustomerReturn, ledger.Payload{
		SourceDocumentID: &rc.Document.ID,
		Items:            []ledger.ItemInput{line(p, 1, "")},
	})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.mutator.Apply(context.Background(), documents.KindCustomerReturn, ledger.Payload{
		SourceDocumentID: ptr(id.New()),
		Items:            []ledger.ItemInput{line(p, 1, "")},
	})
	assert.True(t, apperror.IsValidation(err))
}

// --- Lifecycles ---

func TestWarehouseTransferLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Box", stock.UnitDiscrete)
	w1, w2 := id.New(), id.New()
	f.receive(t, p, w1, 10, "3")

	_, err := f.mutator.Apply(ctx, documents.KindWarehouseTransfer, ledger.Payload{
		WarehouseID:            &w1,
		DestinationWarehouseID: &w2,
		Items:                  []ledger.ItemInput{line(p, 11, "")},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsPreconditionFailure(err))

	wt := f.apply(t, documents.KindWarehouseTransfer, ledger.Payload{
		WarehouseID:            &w1,
		DestinationWarehouseID: &w2,
		Items:                  []ledger.ItemInput{line(p, 4, "")},
	})
	assert.Equal(t, documents.StatusPending, wt.Document.Status)
	assertDecimal(t, "10", f.record(t, p).QuantityAt(&w1))

	_, err = f.mutator.Transition(ctx, wt.Document.ID, documents.StatusInTransit)
	require.NoError(t, err)
	done, err := f.mutator.Transition(ctx, wt.Document.ID, documents.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusCompleted, done.Document.Status)

	rec := f.record(t, p)
	assertDecimal(t, "6", rec.QuantityAt(&w1))
	assertDecimal(t, "4", rec.QuantityAt(&w2))
	assertDecimal(t, "10", rec.GlobalQuantity)
	require.NoError(t, rec.CheckBalanced())

	_, err = f.mutator.Transition(ctx, wt.Document.ID, documents.StatusCancelled)
	require.Error(t, err)
	assert.True(t, apperror.IsPreconditionFailure(err))
}

func TestTransferWithoutDestinationLeavesLedger(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Box", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, p, wh, 10, "3")

	wt := f.apply(t, documents.KindWarehouseTransfer, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{line(p, 4, "")},
	})
	_, err := f.mutator.Transition(context.Background(), wt.Document.ID, documents.StatusCompleted)
	require.NoError(t, err)

	rec := f.record(t, p)
	assertDecimal(t, "6", rec.GlobalQuantity)
	require.NoError(t, rec.CheckBalanced())
}

func TestInternalOrderApprovalSpawnsTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Tile", stock.UnitDiscrete)
	w1, w2 := id.New(), id.New()
	f.receive(t, p, w1, 10, "7")

	io := f.apply(t, documents.KindInternalOrder, ledger.Payload{
		WarehouseID:            &w1,
		DestinationWarehouseID: &w2,
		Items:                  []ledger.ItemInput{line(p, 3, "")},
	})
	assert.Equal(t, "IO-2026-001", io.Document.Number)

	approved, err := f.mutator.Transition(ctx, io.Document.ID, documents.StatusApproved)
	require.NoError(t, err)
	require.Len(t, approved.Spawned, 1)

	wt := approved.Spawned[0]
	assert.Equal(t, documents.KindWarehouseTransfer, wt.Kind)
	assert.Equal(t, "WT-2026-001", wt.Number)
	assert.Equal(t, documents.StatusPending, wt.Status)
	assert.True(t, id.Equal(wt.SourceDocumentID, &io.Document.ID))
	assertDecimal(t, "10", f.record(t, p).QuantityAt(&w1))

	_, err = f.mutator.Transition(ctx, wt.ID, documents.StatusCompleted)
	require.NoError(t, err)
	assertDecimal(t, "3", f.record(t, p).QuantityAt(&w2))

	_, err = f.mutator.Transition(ctx, io.Document.ID, documents.StatusRejected)
	assert.True(t, apperror.IsPreconditionFailure(err))
}

func TestInventoryCountConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	short := f.product(t, "Short", stock.UnitDiscrete)
	surplus := f.product(t, "Surplus", stock.UnitDiscrete)
	exact := f.product(t, "Exact", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, short, wh, 10, "5")
	f.receive(t, surplus, wh, 2, "8")
	f.receive(t, exact, wh, 5, "1")

	counted := func(productID id.ID, qty int64) ledger.ItemInput {
		q := types.Qty(qty)
		return ledger.ItemInput{ProductID: productID, CountedQuantity: &q}
	}
	ic := f.apply(t, documents.KindInventoryCount, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{counted(short, 7), counted(surplus, 6), counted(exact, 5)},
	})
	assert.Equal(t, documents.StatusDraft, ic.Document.Status)
	assertDecimal(t, "10", f.record(t, short).QuantityAt(&wh))

	res, err := f.mutator.Transition(ctx, ic.Document.ID, documents.StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, res.Spawned, 2)

	wo, wr := res.Spawned[0], res.Spawned[1]
	assert.Equal(t, documents.KindWriteoff, wo.Kind)
	assert.Equal(t, "WO-2026-001", wo.Number)
	require.Len(t, wo.Items, 1)
	assertDecimal(t, "3", wo.Items[0].Quantity)

	assert.Equal(t, documents.KindWarehouseReceipt, wr.Kind)
	assert.Equal(t, "WR-000001", wr.Number)
	require.Len(t, wr.Items, 1)
	assertDecimal(t, "4", wr.Items[0].Quantity)
	assertDecimal(t, "8", wr.Items[0].UnitPrice)

	assertDecimal(t, "7", f.record(t, short).QuantityAt(&wh))
	assertDecimal(t, "6", f.record(t, surplus).QuantityAt(&wh))
	assertDecimal(t, "8", f.record(t, surplus).CostPrice)
	assertDecimal(t, "5", f.record(t, exact).QuantityAt(&wh))

	got, err := f.mutator.Get(ctx, ic.Document.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Items[0].BookQuantity)
	assertDecimal(t, "10", *got.Items[0].BookQuantity)
}

func TestInvoicePaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Pen", stock.UnitDiscrete)

	inv := f.apply(t, documents.KindCustomerInvoice, ledger.Payload{Items: []ledger.ItemInput{line(p, 1, "")}})
	assert.Equal(t, documents.StatusIssued, inv.Document.Status)

	paid, err := f.mutator.Transition(ctx, inv.Document.ID, documents.StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusPaid, paid.Document.Status)

	_, err = f.mutator.Transition(ctx, inv.Document.ID, documents.StatusIssued)
	assert.True(t, apperror.IsPreconditionFailure(err))

	_, err = f.mutator.Transition(ctx, inv.Document.ID, documents.StatusInTransit)
	assert.True(t, apperror.IsPreconditionFailure(err))
}

// --- Reservations ---

func TestReservationIsExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Lamp", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, p, wh, 10, "1")

	order := f.apply(t, documents.KindCustomerOrder, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{line(p, 12, "")},
	})
	assert.Equal(t, documents.StatusPending, order.Document.Status)
	assertDecimal(t, "0", f.record(t, p).GlobalReserved)

	res, err := f.mutator.ReserveOrder(ctx, order.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"line 1 (Lamp): available 10, requested 12"}, res.Warnings)
	assertDecimal(t, "12", f.record(t, p).GlobalReserved)

	_, err = f.mutator.ReserveOrder(ctx, order.Document.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsPreconditionFailure(err))
	assertDecimal(t, "12", f.record(t, p).GlobalReserved)

	_, err = f.mutator.UnreserveOrder(ctx, order.Document.ID)
	require.NoError(t, err)
	rec := f.record(t, p)
	assertDecimal(t, "0", rec.GlobalReserved)
	require.NoError(t, rec.CheckBalanced())

	_, err = f.mutator.UnreserveOrder(ctx, order.Document.ID)
	assert.True(t, apperror.IsPreconditionFailure(err))
}

func TestDeleteReservedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Lamp", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, p, wh, 10, "1")

	order := f.apply(t, documents.KindCustomerOrder, ledger.Payload{
		WarehouseID: &wh,
		Reserve:     true,
		Items:       []ledger.ItemInput{line(p, 4, "")},
	})
	require.NoError(t, f.mutator.DeleteOrder(ctx, order.Document.ID))

	assertDecimal(t, "0", f.record(t, p).GlobalReserved)
	got, err := f.mutator.Get(ctx, order.Document.ID)
	require.NoError(t, err)
	assert.True(t, got.DeletionMark)
	assert.Equal(t, order.Document.Number, got.Number)

	_, err = f.mutator.ReserveOrder(ctx, order.Document.ID)
	assert.True(t, apperror.IsPreconditionFailure(err))
}

func TestCancelOrderReleases(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Lamp", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, p, wh, 10, "1")

	order := f.apply(t, documents.KindCustomerOrder, ledger.Payload{
		WarehouseID: &wh,
		Reserve:     true,
		Items:       []ledger.ItemInput{line(p, 4, "")},
	})
	res, err := f.mutator.Transition(context.Background(), order.Document.ID, documents.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusCancelled, res.Document.Status)
	assertDecimal(t, "0", f.record(t, p).GlobalReserved)
}

func TestReserveRequiresCustomerOrder(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Lamp", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, p, wh, 10, "1")

	q := types.Qty(10)
	ic := f.apply(t, documents.KindInventoryCount, ledger.Payload{
		WarehouseID: &wh,
		Items:       []ledger.ItemInput{{ProductID: p, CountedQuantity: &q}},
	})

	_, err := f.mutator.ReserveOrder(context.Background(), ic.Document.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	got, err := f.mutator.Get(context.Background(), ic.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, documents.StatusDraft, got.Status)
}

// --- Validation and numbering ---

func TestApplyValidation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Nail", stock.UnitDiscrete)
	wh := id.New()
	negative := types.Qty(-1)

	tests := []struct {
		name    string
		kind    documents.Kind
		payload ledger.Payload
	}{
		{"unknown kind", documents.Kind("gift"), ledger.Payload{Items: []ledger.ItemInput{line(p, 1, "")}}},
		{"no items", documents.KindShipment, ledger.Payload{}},
		{"missing product id", documents.KindShipment, ledger.Payload{Items: []ledger.ItemInput{{Quantity: types.Qty(1)}}}},
		{"zero quantity", documents.KindShipment, ledger.Payload{Items: []ledger.ItemInput{line(p, 0, "")}}},
		{"negative price", documents.KindShipment, ledger.Payload{Items: []ledger.ItemInput{line(p, 1, "-1")}}},
		{"unknown product", documents.KindShipment, ledger.Payload{Items: []ledger.ItemInput{line(id.New(), 1, "")}}},
		{"receipt without warehouse", documents.KindReceipt, ledger.Payload{Items: []ledger.ItemInput{line(p, 1, "1")}}},
		{"transfer without source", documents.KindWarehouseTransfer, ledger.Payload{Items: []ledger.ItemInput{line(p, 1, "")}}},
		{"transfer to itself", documents.KindWarehouseTransfer, ledger.Payload{
			WarehouseID: &wh, DestinationWarehouseID: &wh, Items: []ledger.ItemInput{line(p, 1, "")},
		}},
		{"internal order without destination", documents.KindInternalOrder, ledger.Payload{
			WarehouseID: &wh, Items: []ledger.ItemInput{line(p, 1, "")},
		}},
		{"negative count", documents.KindInventoryCount, ledger.Payload{
			WarehouseID: &wh, Items: []ledger.ItemInput{{ProductID: p, CountedQuantity: &negative}},
		}},
		{"reserve on invoice", documents.KindCustomerInvoice, ledger.Payload{
			Reserve: true, Items: []ledger.ItemInput{line(p, 1, "")},
		}},
		{"discrete rounds to zero", documents.KindCustomerInvoice, ledger.Payload{
			Items: []ledger.ItemInput{{ProductID: p, Quantity: types.MustQuantity("0.4")}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.mutator.Apply(context.Background(), tt.kind, tt.payload)
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err), "got %v", err)
		})
	}

	assertDecimal(t, "0", f.record(t, p).GlobalQuantity)
}

func TestQuantityNormalization(t *testing.T) {
	f := newFixture(t)
	discrete := f.product(t, "Bottle", stock.UnitDiscrete)
	continuous := f.product(t, "Rope", stock.UnitContinuous)
	wh := id.New()

	f.apply(t, documents.KindReceipt, ledger.Payload{
		WarehouseID: &wh,
		Items: []ledger.ItemInput{
			{ProductID: discrete, Quantity: types.MustQuantity("2.6"), UnitPrice: types.MustMoney("1")},
			{ProductID: continuous, Quantity: types.MustQuantity("2.5"), UnitPrice: types.MustMoney("4")},
		},
	})

	assertDecimal(t, "3", f.record(t, discrete).GlobalQuantity)
	assertDecimal(t, "2.5", f.record(t, continuous).GlobalQuantity)
}

func TestNumbersPerKind(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Cup", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, p, wh, 100, "1")
	f.receive(t, p, wh, 100, "1")

	cases := []struct {
		kind documents.Kind
		want string
	}{
		{documents.KindCustomerInvoice, "CF-2026-001"},
		{documents.KindCustomerInvoice, "CF-2026-002"},
		{documents.KindCustomerOrder, "CO-2026-001"},
		{documents.KindWriteoff, "WO-2026-001"},
		{documents.KindSupplierReturn, "SR-2026-001"},
		{documents.KindWarehouseReceipt, "WR-000001"},
	}
	for _, tc := range cases {
		res := f.apply(t, tc.kind, ledger.Payload{
			WarehouseID: &wh,
			Items:       []ledger.ItemInput{line(p, 1, "1")},
		})
		assert.Equal(t, tc.want, res.Document.Number)
	}

	got, err := f.store.Documents().GetByNumber(context.Background(), "RC-2026-002")
	require.NoError(t, err)
	assert.Equal(t, documents.KindReceipt, got.Kind)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Cup", stock.UnitDiscrete)
	wh := id.New()
	f.receive(t, p, wh, 10, "1")
	f.receive(t, p, wh, 10, "1")
	f.apply(t, documents.KindCustomerOrder, ledger.Payload{Items: []ledger.ItemInput{line(p, 1, "")}})

	receipts, err := f.mutator.List(ctx, documents.ListFilter{Kind: documents.KindReceipt})
	require.NoError(t, err)
	assert.Equal(t, int64(2), receipts.TotalCount)
	assert.Equal(t, 50, receipts.Limit)

	pending, err := f.mutator.List(ctx, documents.ListFilter{Status: documents.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.TotalCount)

	_, err = f.mutator.List(ctx, documents.ListFilter{Kind: documents.Kind("gift")})
	assert.True(t, apperror.IsValidation(err))
}

func TestGlobalEqualsWarehouseSum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Plate", stock.UnitDiscrete)
	w1, w2 := id.New(), id.New()

	f.receive(t, p, w1, 20, "2")
	f.receive(t, p, w2, 5, "3")
	f.apply(t, documents.KindCustomerInvoice, ledger.Payload{WarehouseID: &w2, Items: []ledger.ItemInput{line(p, 9, "")}})
	f.apply(t, documents.KindShipment, ledger.Payload{WarehouseID: &w1, Items: []ledger.ItemInput{line(p, 3, "")}})
	f.apply(t, documents.KindWriteoff, ledger.Payload{Items: []ledger.ItemInput{line(p, 2, "")}})
	wt := f.apply(t, documents.KindWarehouseTransfer, ledger.Payload{
		WarehouseID: &w1, DestinationWarehouseID: &w2, Items: []ledger.ItemInput{line(p, 5, "")},
	})
	_, err := f.mutator.Transition(ctx, wt.Document.ID, documents.StatusCompleted)
	require.NoError(t, err)
	f.apply(t, documents.KindCustomerOrder, ledger.Payload{
		WarehouseID: &w1, Reserve: true, Items: []ledger.ItemInput{line(p, 4, "")},
	})

	rec := f.record(t, p)
	require.NoError(t, rec.CheckBalanced())
	assertDecimal(t, "11", rec.GlobalQuantity)
	assertDecimal(t, "4", rec.GlobalReserved)
}
