package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocertrack/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

type recordingLedger struct {
	levels map[string]decimal.Decimal
	order  []string
}

func (l *recordingLedger) ApplyDelta(_ context.Context, variantID string, qty decimal.Decimal) error {
	level, ok := l.levels[variantID]
	if !ok {
		return domain.ErrNotFound
	}
	l.levels[variantID] = level.Add(qty)
	l.order = append(l.order, variantID)
	return nil
}

func TestStockFollowsSaleAndPurchaseLifecycle(t *testing.T) {
	ctx := context.Background()
	l := &recordingLedger{levels: map[string]decimal.Decimal{"rice": dec("20")}}
	sale := []domain.SaleItem{{VariantID: "rice", Quantity: dec("3"), PriceAtSale: dec("10")}}

	require.NoError(t, Apply(ctx, l, SaleDelta(sale)))
	assertDecimal(t, "17", l.levels["rice"])

	require.NoError(t, Apply(ctx, l, PurchaseDelta("rice", dec("10"))))
	assertDecimal(t, "27", l.levels["rice"])

	require.NoError(t, Apply(ctx, l, SaleDelta(sale).Negate()))
	assertDecimal(t, "30", l.levels["rice"])
}

func TestEditDeltaNetsTheDifference(t *testing.T) {
	oldItems := []domain.SaleItem{{VariantID: "rice", Quantity: dec("2"), PriceAtSale: dec("10")}}
	newItems := []domain.SaleItem{{VariantID: "rice", Quantity: dec("5"), PriceAtSale: dec("10")}}

	d := EditDelta(oldItems, newItems)
	require.Len(t, d, 1)
	assertDecimal(t, "-3", d["rice"])
}

func TestEditDeltaOfIdenticalItemsIsZero(t *testing.T) {
	items := []domain.SaleItem{
		{VariantID: "rice", Quantity: dec("2.5"), PriceAtSale: dec("10")},
		{VariantID: "oil", Quantity: dec("1"), PriceAtSale: dec("4")},
		{VariantID: "rice", Quantity: dec("0.5"), PriceAtSale: dec("11")},
	}
	assert.True(t, EditDelta(items, items).IsZero())
}

func TestEditDeltaAcrossVariants(t *testing.T) {
	oldItems := []domain.SaleItem{{VariantID: "rice", Quantity: dec("2")}}
	newItems := []domain.SaleItem{{VariantID: "oil", Quantity: dec("1.25")}}

	d := EditDelta(oldItems, newItems)
	assertDecimal(t, "2", d["rice"])
	assertDecimal(t, "-1.25", d["oil"])
}

func TestPurchaseEditDeltaMovesStockBetweenVariants(t *testing.T) {
	d := PurchaseEditDelta("rice", dec("10"), "oil", dec("4"))
	assertDecimal(t, "-10", d["rice"])
	assertDecimal(t, "4", d["oil"])

	same := PurchaseEditDelta("rice", dec("10"), "rice", dec("12"))
	require.Len(t, same, 1)
	assertDecimal(t, "2", same["rice"])
}

func TestApplyLocksInAscendingOrderAndStopsOnUnknownVariant(t *testing.T) {
	ctx := context.Background()
	l := &recordingLedger{levels: map[string]decimal.Decimal{"a": dec("1"), "c": dec("1")}}
	d := Delta{}
	d.Add("c", dec("1"))
	d.Add("a", dec("1"))
	require.NoError(t, Apply(ctx, l, d))
	assert.Equal(t, []string{"a", "c"}, l.order)

	d.Add("b", dec("1"))
	err := Apply(ctx, l, d)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestReverseFlipsTheSign(t *testing.T) {
	l := &recordingLedger{levels: map[string]decimal.Decimal{"rice": dec("5")}}
	require.NoError(t, Reverse(context.Background(), l, "rice", dec("-2")))
	assertDecimal(t, "7", l.levels["rice"])
}

func TestStagedLedgerKeepsSnapshotUntouched(t *testing.T) {
	snapshot := map[string]decimal.Decimal{"rice": dec("4")}
	staged := NewStaged(func(id string) (decimal.Decimal, bool) {
		level, ok := snapshot[id]
		return level, ok
	})
	ctx := context.Background()

	require.NoError(t, staged.ApplyDelta(ctx, "rice", dec("-6")))
	require.NoError(t, staged.ApplyDelta(ctx, "rice", dec("1")))
	assertDecimal(t, "4", snapshot["rice"])
	assertDecimal(t, "-1", staged.Levels()["rice"])

	err := staged.ApplyDelta(ctx, "ghost", dec("1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
