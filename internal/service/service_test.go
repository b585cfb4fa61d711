package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocertrack/backend/internal/cache"
	"grocertrack/backend/internal/domain"
	"grocertrack/backend/internal/statement"
	"grocertrack/backend/internal/store/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strPtr(s string) *string {
	return &s
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	return New(repo, cache.NewMemoryCartStore(), Options{LowStockLimit: 3, CartTTL: time.Hour}), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier", Role: domain.RoleCashier})
}

func stock(t *testing.T, svc *Service, variantID string) decimal.Decimal {
	t.Helper()
	v, err := svc.GetVariant(context.Background(), variantID)
	require.NoError(t, err)
	return v.CurrentStock
}

func newVariant(t *testing.T, svc *Service, initial string) domain.ProductVariant {
	t.Helper()
	v, err := svc.CreateVariant(adminCtx(), domain.VariantCreateRequest{
		ProductID:    "prod-rice",
		Name:         "Test " + initial,
		Price:        dec("10"),
		Unit:         domain.UnitKilogram,
		InitialStock: dec(initial),
	})
	require.NoError(t, err)
	return v
}

func TestStockFollowsSalePurchaseAndDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()
	v := newVariant(t, svc, "20")

	sale, err := svc.CommitSale(ctx, domain.SaleCreateRequest{
		CustomerID: "cust-ravi",
		Items:      []domain.SaleLineInput{{VariantID: v.ID, Quantity: dec("3"), Price: dec("10")}},
	})
	require.NoError(t, err)
	assertDecimal(t, "17", stock(t, svc, v.ID))

	_, err = svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{VariantID: v.ID, Quantity: dec("10"), PurchasePrice: dec("70")})
	require.NoError(t, err)
	assertDecimal(t, "27", stock(t, svc, v.ID))

	_, err = svc.DeleteSale(ctx, sale.ID)
	require.NoError(t, err)
	assertDecimal(t, "30", stock(t, svc, v.ID))
}

func TestEditSaleAppliesOnlyTheDifference(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()
	v := newVariant(t, svc, "20")

	sale, err := svc.CommitSale(ctx, domain.SaleCreateRequest{
		CustomerID: "cust-ravi",
		Items:      []domain.SaleLineInput{{VariantID: v.ID, Quantity: dec("2"), Price: dec("10")}},
	})
	require.NoError(t, err)
	assertDecimal(t, "18", stock(t, svc, v.ID))

	edited, err := svc.EditSale(ctx, sale.ID, domain.SaleUpdateRequest{
		Items: []domain.SaleLineInput{{VariantID: v.ID, Quantity: dec("5"), Price: dec("10")}},
	})
	require.NoError(t, err)
	assertDecimal(t, "15", stock(t, svc, v.ID))
	assert.Equal(t, sale.ID, edited.ID)
	assert.True(t, sale.SaleDate.Equal(edited.SaleDate))

	_, err = svc.EditSale(ctx, sale.ID, domain.SaleUpdateRequest{
		Items: []domain.SaleLineInput{{VariantID: v.ID, Quantity: dec("5"), Price: dec("10")}},
	})
	require.NoError(t, err)
	assertDecimal(t, "15", stock(t, svc, v.ID))

	_, err = svc.EditSale(ctx, sale.ID, domain.SaleUpdateRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assertDecimal(t, "15", stock(t, svc, v.ID))
}

func TestBalanceIsFoldedFromHistory(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	_, err := svc.CommitSale(ctx, domain.SaleCreateRequest{
		CustomerID: "cust-sunita",
		Items:      []domain.SaleLineInput{{VariantID: "var-dal-1kg", Quantity: dec("1"), Price: dec("100")}},
	})
	require.NoError(t, err)
	_, err = svc.CommitSale(ctx, domain.SaleCreateRequest{
		CustomerID: "cust-sunita",
		Items:      []domain.SaleLineInput{{VariantID: "var-tea-250", Quantity: dec("1"), Price: dec("50")}},
	})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, domain.PaymentCreateRequest{CustomerID: "cust-sunita", Amount: dec("30")})
	require.NoError(t, err)

	detail, err := svc.CustomerDetail(ctx, "cust-sunita")
	require.NoError(t, err)
	assertDecimal(t, "120", detail.Balance)
	assertDecimal(t, "120", detail.Customer.Balance)
	assert.Len(t, detail.Sales, 2)
	assert.Len(t, detail.Payments, 1)

	for _, amount := range []string{"0", "-5"} {
		_, err = svc.RecordPayment(ctx, domain.PaymentCreateRequest{CustomerID: "cust-sunita", Amount: dec(amount)})
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
	detail, err = svc.CustomerDetail(ctx, "cust-sunita")
	require.NoError(t, err)
	assertDecimal(t, "120", detail.Balance)
}

func TestBalanceAfterTwoSalesAndOnePayment(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	_, err := svc.CommitSale(ctx, domain.SaleCreateRequest{
		CustomerID: "cust-sunita",
		Items:      []domain.SaleLineInput{{VariantID: "var-sugar-loose", Quantity: dec("2"), Price: dec("50")}},
	})
	require.NoError(t, err)
	_, err = svc.CommitSale(ctx, domain.SaleCreateRequest{
		CustomerID: "cust-sunita",
		Items:      []domain.SaleLineInput{{VariantID: "var-dal-1kg", Quantity: dec("1"), Price: dec("100")}},
	})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, domain.PaymentCreateRequest{CustomerID: "cust-sunita", Amount: dec("80")})
	require.NoError(t, err)

	detail, err := svc.CustomerDetail(ctx, "cust-sunita")
	require.NoError(t, err)
	assertDecimal(t, "120", detail.Balance)
}

func TestAmountsBeyondStoredPrecisionAreRejected(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	_, err := svc.RecordPayment(ctx, domain.PaymentCreateRequest{CustomerID: "cust-sunita", Amount: dec("0.005")})
	assert.ErrorIs(t, err, domain.ErrValidation)
	payment, err := svc.RecordPayment(ctx, domain.PaymentCreateRequest{CustomerID: "cust-sunita", Amount: dec("12.500")})
	require.NoError(t, err)
	_, err = svc.EditPayment(ctx, payment.ID, domain.PaymentUpdateRequest{Amount: dec("10.001")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	badLines := map[string]domain.SaleLineInput{
		"price with three places":    {VariantID: "var-tea-250", Quantity: dec("1"), Price: dec("0.125")},
		"quantity with four places":  {VariantID: "var-tea-250", Quantity: dec("0.0005"), Price: dec("10")},
		"quantity beyond the column": {VariantID: "var-tea-250", Quantity: dec("1000000000"), Price: dec("10")},
		"price beyond the column":    {VariantID: "var-tea-250", Quantity: dec("1"), Price: dec("10000000000")},
	}
	for name, line := range badLines {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CommitSale(ctx, domain.SaleCreateRequest{CustomerID: "cust-sunita", Items: []domain.SaleLineInput{line}})
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	purchase, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{VariantID: "var-tea-250", Quantity: dec("2"), PurchasePrice: dec("180")})
	require.NoError(t, err)
	_, err = svc.UpdatePurchase(ctx, purchase.ID, domain.PurchaseUpdateRequest{PurchasePrice: decPtr("1.234")})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{VariantID: "var-tea-250", Quantity: dec("1.0001"), PurchasePrice: dec("90")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.UpdateVariant(ctx, "var-tea-250", domain.VariantUpdateRequest{Price: decPtr("99.999")})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.CorrectStock(ctx, "var-tea-250", domain.StockCorrectionRequest{CountedStock: dec("3.0001"), Reason: "count"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	cart, err := svc.OpenCart(ctx, domain.CartOpenRequest{CustomerID: "cust-sunita"})
	require.NoError(t, err)
	_, err = svc.AddCartLine(ctx, cart.ID, domain.CartLineRequest{VariantID: "var-tea-250", Quantity: dec("1"), Price: decPtr("0.005")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	detail, err := svc.CustomerDetail(ctx, "cust-sunita")
	require.NoError(t, err)
	assertDecimal(t, "-12.5", detail.Balance)
	assertDecimal(t, "27", stock(t, svc, "var-tea-250"))
}

func TestOverpaymentLeavesCredit(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	_, err := svc.CommitSale(ctx, domain.SaleCreateRequest{
		CustomerID: "cust-irfan",
		Items:      []domain.SaleLineInput{{VariantID: "var-oil-1l", Quantity: dec("1"), Price: dec("145")}},
	})
	require.NoError(t, err)
	payment, err := svc.RecordPayment(ctx, domain.PaymentCreateRequest{CustomerID: "cust-irfan", Amount: dec("150")})
	require.NoError(t, err)

	c, err := svc.GetCustomer(ctx, "cust-irfan")
	require.NoError(t, err)
	assertDecimal(t, "-5", c.Balance)

	_, err = svc.EditPayment(ctx, payment.ID, domain.PaymentUpdateRequest{Amount: dec("45")})
	require.NoError(t, err)
	c, err = svc.GetCustomer(ctx, "cust-irfan")
	require.NoError(t, err)
	assertDecimal(t, "100", c.Balance)

	_, err = svc.DeletePayment(ctx, payment.ID)
	require.NoError(t, err)
	_, err = svc.DeletePayment(ctx, payment.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCommitSaleValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	cases := []struct {
		name string
		req  domain.SaleCreateRequest
		want error
	}{
		{"no customer", domain.SaleCreateRequest{Items: []domain.SaleLineInput{{VariantID: "var-tea-250", Quantity: dec("1"), Price: dec("1")}}}, domain.ErrValidation},
		{"no items", domain.SaleCreateRequest{CustomerID: "cust-ravi"}, domain.ErrValidation},
		{"zero quantity", domain.SaleCreateRequest{CustomerID: "cust-ravi", Items: []domain.SaleLineInput{{VariantID: "var-tea-250", Quantity: dec("0"), Price: dec("1")}}}, domain.ErrValidation},
		{"negative price", domain.SaleCreateRequest{CustomerID: "cust-ravi", Items: []domain.SaleLineInput{{VariantID: "var-tea-250", Quantity: dec("1"), Price: dec("-1")}}}, domain.ErrValidation},
		{"unknown variant", domain.SaleCreateRequest{CustomerID: "cust-ravi", Items: []domain.SaleLineInput{{VariantID: "var-nope", Quantity: dec("1"), Price: dec("1")}}}, domain.ErrNotFound},
		{"unknown customer", domain.SaleCreateRequest{CustomerID: "cust-nope", Items: []domain.SaleLineInput{{VariantID: "var-tea-250", Quantity: dec("1"), Price: dec("1")}}}, domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CommitSale(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assertDecimal(t, "25", stock(t, svc, "var-tea-250"))
}

func TestCartCommitFreezesPricesAndRemovesSession(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	c, err := svc.OpenCart(ctx, domain.CartOpenRequest{CustomerID: "cust-ravi"})
	require.NoError(t, err)

	c, err = svc.AddCartLine(ctx, c.ID, domain.CartLineRequest{VariantID: "var-rice-loose", Quantity: dec("2.5")})
	require.NoError(t, err)
	c, err = svc.AddCartLine(ctx, c.ID, domain.CartLineRequest{VariantID: "var-tea-250", Quantity: dec("1"), Price: decPtr("110")})
	require.NoError(t, err)
	assertDecimal(t, "335", c.Total)
	assert.Equal(t, "Basmati Rice (Loose)", c.Lines[0].VariantName)

	c, err = svc.UpdateCartLine(ctx, c.ID, 1, domain.CartLineUpdateRequest{Field: "quantity", Value: dec("2")})
	require.NoError(t, err)
	assertDecimal(t, "445", c.Total)

	_, err = svc.UpdateVariant(ctx, "var-rice-loose", domain.VariantUpdateRequest{Price: decPtr("95")})
	require.NoError(t, err)

	sale, err := svc.CommitCart(ctx, c.ID, domain.CartCommitRequest{})
	require.NoError(t, err)
	assert.Equal(t, "cust-ravi", sale.CustomerID)
	assertDecimal(t, "90", sale.Items[0].PriceAtSale)
	assertDecimal(t, "445", sale.Total())
	assertDecimal(t, "117.5", stock(t, svc, "var-rice-loose"))

	_, err = svc.GetCart(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	history, err := svc.ListPriceHistory(ctx, "var-rice-loose", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assertDecimal(t, "90", history[0].OldPrice)
	assertDecimal(t, "95", history[0].NewPrice)
}

func TestFailedCartCommitKeepsTheCart(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	c, err := svc.OpenCart(ctx, domain.CartOpenRequest{})
	require.NoError(t, err)
	c, err = svc.AddCartLine(ctx, c.ID, domain.CartLineRequest{VariantID: "var-sugar-loose", Quantity: dec("1")})
	require.NoError(t, err)

	_, err = svc.CommitCart(ctx, c.ID, domain.CartCommitRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	kept, err := svc.GetCart(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, kept.Len())
	assertDecimal(t, "80", stock(t, svc, "var-sugar-loose"))

	_, err = svc.CommitCart(ctx, c.ID, domain.CartCommitRequest{CustomerID: "cust-sunita"})
	require.NoError(t, err)
	assertDecimal(t, "79", stock(t, svc, "var-sugar-loose"))
}

func TestCartLineErrors(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	c, err := svc.OpenCart(ctx, domain.CartOpenRequest{})
	require.NoError(t, err)

	_, err = svc.AddCartLine(ctx, c.ID, domain.CartLineRequest{VariantID: "var-nope", Quantity: dec("1")})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.AddCartLine(ctx, c.ID, domain.CartLineRequest{VariantID: "var-tea-250", Quantity: dec("0")})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.RemoveCartLine(ctx, c.ID, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.UpdateCartLine(ctx, c.ID, 0, domain.CartLineUpdateRequest{Field: "price", Value: dec("1")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.CommitCart(ctx, c.ID, domain.CartCommitRequest{CustomerID: "cust-ravi"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.OpenCart(ctx, domain.CartOpenRequest{CustomerID: "cust-nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.DiscardCart(ctx, c.ID))
	_, err = svc.GetCart(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdminOnlyOperations(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	_, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{Name: "Salt"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{VariantID: "var-tea-250", Quantity: dec("1")})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.DeleteSale(ctx, "sale-x")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, svc.DeleteCustomer(ctx, "cust-ravi"), domain.ErrForbidden)
	_, err = svc.CorrectStock(ctx, "var-tea-250", domain.StockCorrectionRequest{CountedStock: dec("1"), Reason: "count"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.CreateProduct(context.Background(), domain.ProductCreateRequest{Name: "Salt"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCorrectStockIsAudited(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	_, err := svc.CorrectStock(ctx, "var-tea-250", domain.StockCorrectionRequest{CountedStock: dec("22")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	correction, err := svc.CorrectStock(ctx, "var-tea-250", domain.StockCorrectionRequest{CountedStock: dec("22"), Reason: "shelf count"})
	require.NoError(t, err)
	assertDecimal(t, "-3", correction.Delta)
	assertDecimal(t, "22", stock(t, svc, "var-tea-250"))

	logs, err := svc.ListAuditLogs(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "stock_correction", logs[0].Action)
	assert.Equal(t, "admin", logs[0].ActorUsername)
}

func TestPurchaseEditMovesStockBetweenVariants(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	purchase, err := svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{SupplierID: "sup-sharma", VariantID: "var-dal-1kg", Quantity: dec("10"), PurchasePrice: dec("1200")})
	require.NoError(t, err)
	assertDecimal(t, "40", stock(t, svc, "var-dal-1kg"))

	updated, err := svc.UpdatePurchase(ctx, purchase.ID, domain.PurchaseUpdateRequest{VariantID: strPtr(" var-tea-250 "), Quantity: decPtr("4")})
	require.NoError(t, err)
	assert.Equal(t, "var-tea-250", updated.VariantID)
	assertDecimal(t, "1200", updated.PurchasePrice)
	assertDecimal(t, "30", stock(t, svc, "var-dal-1kg"))
	assertDecimal(t, "29", stock(t, svc, "var-tea-250"))

	repriced, err := svc.UpdatePurchase(ctx, purchase.ID, domain.PurchaseUpdateRequest{PurchasePrice: decPtr("520")})
	require.NoError(t, err)
	assert.Equal(t, "var-tea-250", repriced.VariantID)
	assertDecimal(t, "4", repriced.Quantity)
	assertDecimal(t, "29", stock(t, svc, "var-tea-250"))

	got, err := svc.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assertDecimal(t, "520", got.PurchasePrice)

	_, err = svc.UpdatePurchase(ctx, purchase.ID, domain.PurchaseUpdateRequest{Quantity: decPtr("0")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	found, err := svc.ListPurchases(ctx, "tea", 0)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestListCustomersRejectsBadQuery(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	_, err := svc.ListCustomers(ctx, domain.CustomerQuery{Sort: "age"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.ListCustomers(ctx, domain.CustomerQuery{PageSize: 1000})
	assert.ErrorIs(t, err, domain.ErrValidation)

	page, err := svc.ListCustomers(ctx, domain.CustomerQuery{Search: "ravi"})
	require.NoError(t, err)
	require.Len(t, page.Customers, 1)
	assert.Equal(t, "cust-ravi", page.Customers[0].ID)
}

func TestExportStatementCSV(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	_, err := svc.CommitSale(ctx, domain.SaleCreateRequest{
		CustomerID: "cust-ravi",
		Items:      []domain.SaleLineInput{{VariantID: "var-sugar-loose", Quantity: dec("2"), Price: dec("44")}},
	})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, domain.PaymentCreateRequest{CustomerID: "cust-ravi", Amount: dec("50")})
	require.NoError(t, err)

	file, err := svc.ExportStatement(ctx, "cust-ravi", "csv", statement.Options{})
	require.NoError(t, err)
	assert.Equal(t, "statement-cust-ravi.csv", file.Filename)
	assert.Contains(t, file.ContentType, "text/csv")

	records, err := csv.NewReader(bytes.NewReader(file.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Sugar (Loose) (2×44.00)", records[1][2])
	assert.Equal(t, "88.00", records[1][3])
	assert.Equal(t, "Payment received", records[2][2])

	_, err = svc.ExportStatement(ctx, "cust-ravi", "docx", statement.Options{})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.ExportStatement(ctx, "cust-nope", "csv", statement.Options{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDashboard(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	_, err := svc.CommitSale(ctx, domain.SaleCreateRequest{
		CustomerID: "cust-irfan",
		Items:      []domain.SaleLineInput{{VariantID: "var-rice-bag", Quantity: dec("14"), Price: dec("2100")}},
	})
	require.NoError(t, err)
	_, err = svc.CommitSale(ctx, domain.SaleCreateRequest{
		CustomerID: "cust-ravi",
		Items:      []domain.SaleLineInput{{VariantID: "var-tea-250", Quantity: dec("1"), Price: dec("120")}},
	})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, domain.PaymentCreateRequest{CustomerID: "cust-sunita", Amount: dec("20")})
	require.NoError(t, err)

	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.TotalProductVariants)
	assert.Equal(t, 3, stats.TotalCustomers)
	require.Len(t, stats.LowStockItems, 3)
	assert.Equal(t, "var-rice-bag", stats.LowStockItems[0].ID)
	assertDecimal(t, "-2", stats.LowStockItems[0].CurrentStock)
	require.Len(t, stats.TopCustomersByCredit, 2)
	assert.Equal(t, "cust-irfan", stats.TopCustomersByCredit[0].ID)
	assertDecimal(t, "29500", stats.TotalOutstandingCredit)
}

func TestDeleteCustomerReturnsStock(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	_, err := svc.CommitSale(ctx, domain.SaleCreateRequest{
		CustomerID: "cust-ravi",
		Items:      []domain.SaleLineInput{{VariantID: "var-oil-1l", Quantity: dec("3"), Price: dec("145")}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteCustomer(ctx, "cust-ravi"))
	assertDecimal(t, "40", stock(t, svc, "var-oil-1l"))

	_, err = svc.CustomerDetail(ctx, "cust-ravi")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteCustomer(ctx, "cust-ravi"), domain.ErrConflict)
}
