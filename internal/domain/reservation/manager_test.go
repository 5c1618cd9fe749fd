package reservation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	"merchledger/internal/core/types"
	"merchledger/internal/domain/documents"
	"merchledger/internal/domain/reservation"
	"merchledger/internal/domain/stock"
	"merchledger/internal/infrastructure/storage/memory"
)

type fixture struct {
	stock   *stock.Service
	manager *reservation.Manager
	product id.ID
	wh      id.ID
}

func newFixture(t *testing.T, onHand int64) *fixture {
	t.Helper()
	store := memory.NewStore()
	svc := stock.NewService(store.Stock())
	rec, err := svc.Register(context.Background(), stock.RegisterInput{Name: "Chair", Unit: "pc", UnitType: stock.UnitDiscrete})
	require.NoError(t, err)
	wh := id.New()
	require.NoError(t, svc.Increase(context.Background(), rec.ProductID, &wh, types.Qty(onHand)))
	return &fixture{stock: svc, manager: reservation.NewManager(svc), product: rec.ProductID, wh: wh}
}

func (f *fixture) order(qty int64) *documents.Document {
	order := documents.New(documents.KindCustomerOrder)
	order.WarehouseID = &f.wh
	order.AddLine(documents.LineItem{ProductID: f.product, Quantity: types.Qty(qty), UnitPrice: types.MustMoney("10")})
	return order
}

func (f *fixture) record(t *testing.T) *stock.Record {
	t.Helper()
	rec, err := f.stock.Get(context.Background(), f.product)
	require.NoError(t, err)
	return rec
}

func TestReserveAndUnreserve(t *testing.T) {
	f := newFixture(t, 10)
	order := f.order(4)
	ctx := context.Background()

	warnings, err := f.manager.Reserve(ctx, order)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, order.Reserved)
	assert.Equal(t, documents.StatusConfirmed, order.Status)

	rec := f.record(t)
	assert.True(t, rec.GlobalReserved.Equal(types.Qty(4)))
	assert.NoError(t, rec.CheckBalanced())

	require.NoError(t, f.manager.Unreserve(ctx, order))
	assert.False(t, order.Reserved)
	assert.Equal(t, documents.StatusPending, order.Status)
	assert.True(t, f.record(t).GlobalReserved.IsZero())
}

func TestReserveTwiceIsRejected(t *testing.T) {
	f := newFixture(t, 10)
	order := f.order(4)
	ctx := context.Background()

	_, err := f.manager.Reserve(ctx, order)
	require.NoError(t, err)

	_, err = f.manager.Reserve(ctx, order)
	assert.True(t, apperror.IsPreconditionFailure(err))
	assert.True(t, f.record(t).GlobalReserved.Equal(types.Qty(4)))
}

func TestUnreserveWhenNotReserved(t *testing.T) {
	f := newFixture(t, 10)

	err := f.manager.Unreserve(context.Background(), f.order(1))
	assert.True(t, apperror.IsPreconditionFailure(err))
}

func TestReserveBeyondAvailableWarns(t *testing.T) {
	f := newFixture(t, 3)

	warnings, err := f.manager.Reserve(context.Background(), f.order(5))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "available 3, requested 5")
	assert.True(t, f.record(t).GlobalReserved.Equal(types.Qty(5)))
}

func TestFulfillReleases(t *testing.T) {
	f := newFixture(t, 10)
	order := f.order(2)
	ctx := context.Background()

	assert.Error(t, f.manager.Fulfill(ctx, order))

	_, err := f.manager.Reserve(ctx, order)
	require.NoError(t, err)
	require.NoError(t, f.manager.Fulfill(ctx, order))

	assert.Equal(t, documents.StatusFulfilled, order.Status)
	assert.False(t, order.Reserved)
	assert.True(t, f.record(t).GlobalReserved.IsZero())
}

func TestCancelAndDiscardRelease(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	cancelled := f.order(2)
	_, err := f.manager.Reserve(ctx, cancelled)
	require.NoError(t, err)
	require.NoError(t, f.manager.Cancel(ctx, cancelled))
	assert.Equal(t, documents.StatusCancelled, cancelled.Status)

	deleted := f.order(3)
	_, err = f.manager.Reserve(ctx, deleted)
	require.NoError(t, err)
	require.NoError(t, f.manager.Discard(ctx, deleted))
	assert.True(t, deleted.DeletionMark)

	rec := f.record(t)
	assert.True(t, rec.GlobalReserved.IsZero())
	assert.NoError(t, rec.CheckBalanced())
}

func TestRejectsOtherKinds(t *testing.T) {
	f := newFixture(t, 1)
	invoice := documents.New(documents.KindCustomerInvoice)

	_, err := f.manager.Reserve(context.Background(), invoice)
	assert.True(t, apperror.IsValidation(err))
}
