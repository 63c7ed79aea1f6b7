package paper_test

import (
	"context"
	"testing"

	"github.com/alejandrodnm/polyslip/internal/adapters/paper"
	"github.com/alejandrodnm/polyslip/internal/adapters/storage"
	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buyRequest() domain.OrderRequest {
	return domain.OrderRequest{
		TokenID: "tok",
		Side:    domain.DirectionBuy,
		Price:   decimal.RequireFromString("0.505"),
		Size:    decimal.NewFromInt(50),
		Reason:  domain.ReasonImbalance,
	}
}

func TestExecutor_PlaceAndCancel(t *testing.T) {
	ex := paper.NewExecutor(nil)
	ctx := context.Background()

	order, err := ex.PlaceOrder(ctx, buyRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.DirectionBuy, order.Side)
	assert.True(t, order.Price.Equal(decimal.RequireFromString("0.505")))
	assert.False(t, order.PlacedAt.IsZero())
	require.Len(t, ex.OpenOrders(), 1)

	require.NoError(t, ex.CancelOrder(ctx, order.ID))
	assert.Empty(t, ex.OpenOrders())

	err = ex.CancelOrder(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestExecutor_RejectsInvalidOrders(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*domain.OrderRequest)
	}{
		{"no side", func(r *domain.OrderRequest) { r.Side = domain.DirectionNone }},
		{"no token", func(r *domain.OrderRequest) { r.TokenID = "" }},
		{"zero price", func(r *domain.OrderRequest) { r.Price = decimal.Zero }},
		{"price at 1", func(r *domain.OrderRequest) { r.Price = decimal.NewFromInt(1) }},
		{"zero size", func(r *domain.OrderRequest) { r.Size = decimal.Zero }},
	}

	ex := paper.NewExecutor(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := buyRequest()
			tc.mod(&req)
			_, err := ex.PlaceOrder(context.Background(), req)
			assert.Error(t, err)
		})
	}
	assert.Empty(t, ex.OpenOrders())
}

func TestExecutor_JournalAndRestore(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	ex := paper.NewExecutor(db)
	kept, err := ex.PlaceOrder(ctx, buyRequest())
	require.NoError(t, err)
	gone, err := ex.PlaceOrder(ctx, buyRequest())
	require.NoError(t, err)
	require.NoError(t, ex.CancelOrder(ctx, gone.ID))

	// Un ejecutor nuevo (reinicio) recupera solo la orden que seguía abierta
	restarted := paper.NewExecutor(db)
	restored, err := restarted.Restore(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, kept.ID, restored[0].ID)
	assert.Len(t, restarted.OpenOrders(), 1)

	require.NoError(t, restarted.CancelOrder(ctx, kept.ID))
	open, err := db.GetOpenOrders(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestExecutor_RestoreWithoutJournal(t *testing.T) {
	orders, err := paper.NewExecutor(nil).Restore(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, orders)
}
