package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocertrack/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func stockOf(t *testing.T, s *Store, variantID string) decimal.Decimal {
	t.Helper()
	v, err := s.GetVariant(context.Background(), variantID)
	require.NoError(t, err)
	return v.CurrentStock
}

func assertStock(t *testing.T, s *Store, variantID string, want string) {
	t.Helper()
	got := stockOf(t, s, variantID)
	assert.True(t, dec(want).Equal(got), "stock of %s: want %s, got %s", variantID, want, got)
}

func TestSaleLifecycleMovesStock(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	sale, err := s.CreateSale(ctx, domain.Sale{
		CustomerID: "cust-ravi",
		Items: []domain.SaleItem{
			{VariantID: "var-sugar-loose", Quantity: dec("2.5"), PriceAtSale: dec("44")},
			{VariantID: "var-oil-1l", Quantity: dec("1"), PriceAtSale: dec("145")},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sale.ID)
	assert.Equal(t, "Ravi Kumar", sale.CustomerName)
	assert.Equal(t, "Sugar (Loose)", sale.Items[0].VariantName)
	assertStock(t, s, "var-sugar-loose", "77.5")
	assertStock(t, s, "var-oil-1l", "39")

	edited, err := s.ReplaceSaleItems(ctx, sale.ID, []domain.SaleItem{
		{VariantID: "var-sugar-loose", Quantity: dec("5"), PriceAtSale: dec("44")},
	})
	require.NoError(t, err)
	assert.Len(t, edited.Items, 1)
	assertStock(t, s, "var-sugar-loose", "75")
	assertStock(t, s, "var-oil-1l", "40")

	deleted, err := s.DeleteSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.ID, deleted.ID)
	assertStock(t, s, "var-sugar-loose", "80")

	_, err = s.DeleteSale(ctx, sale.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSaleWithUnknownVariantLeavesStockUntouched(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	_, err := s.CreateSale(ctx, domain.Sale{
		CustomerID: "cust-ravi",
		Items: []domain.SaleItem{
			{VariantID: "var-dal-1kg", Quantity: dec("3"), PriceAtSale: dec("160")},
			{VariantID: "var-missing", Quantity: dec("1"), PriceAtSale: dec("10")},
		},
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assertStock(t, s, "var-dal-1kg", "30")

	sales, err := s.ListSales(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestSaleRequiresCustomerAndItems(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	_, err := s.CreateSale(ctx, domain.Sale{CustomerID: "cust-nobody", Items: []domain.SaleItem{
		{VariantID: "var-tea-250", Quantity: dec("1"), PriceAtSale: dec("120")},
	}})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.CreateSale(ctx, domain.Sale{CustomerID: "cust-ravi"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assertStock(t, s, "var-tea-250", "25")
}

func TestOversellIsAllowed(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	_, err := s.CreateSale(ctx, domain.Sale{CustomerID: "cust-irfan", Items: []domain.SaleItem{
		{VariantID: "var-rice-bag", Quantity: dec("15"), PriceAtSale: dec("2100")},
	}})
	require.NoError(t, err)
	assertStock(t, s, "var-rice-bag", "-3")
}

func TestEditMissingSaleIsNotFound(t *testing.T) {
	s := NewSeeded()
	_, err := s.ReplaceSaleItems(context.Background(), "sale-gone", []domain.SaleItem{
		{VariantID: "var-tea-250", Quantity: dec("1"), PriceAtSale: dec("120")},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBalanceFollowsSalesAndPayments(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	_, err := s.CreateSale(ctx, domain.Sale{CustomerID: "cust-sunita", Items: []domain.SaleItem{
		{VariantID: "var-dal-1kg", Quantity: dec("1"), PriceAtSale: dec("160")},
	}})
	require.NoError(t, err)
	payment, err := s.CreatePayment(ctx, domain.Payment{CustomerID: "cust-sunita", Amount: dec("40")})
	require.NoError(t, err)

	c, err := s.GetCustomer(ctx, "cust-sunita")
	require.NoError(t, err)
	assert.True(t, dec("120").Equal(c.Balance), "got %s", c.Balance)

	_, err = s.UpdatePaymentAmount(ctx, payment.ID, dec("165"))
	require.NoError(t, err)
	c, err = s.GetCustomer(ctx, "cust-sunita")
	require.NoError(t, err)
	assert.True(t, dec("-5").Equal(c.Balance), "got %s", c.Balance)

	_, err = s.DeletePayment(ctx, payment.ID)
	require.NoError(t, err)
	_, err = s.DeletePayment(ctx, payment.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = s.UpdatePaymentAmount(ctx, payment.ID, dec("1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPaymentValidation(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	_, err := s.CreatePayment(ctx, domain.Payment{CustomerID: "cust-ravi", Amount: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.CreatePayment(ctx, domain.Payment{CustomerID: "cust-nobody", Amount: dec("10")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCustomerHistoryIsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"sale-1", "sale-2", "sale-3"} {
		_, err := s.CreateSale(ctx, domain.Sale{
			ID:         id,
			CustomerID: "cust-ravi",
			SaleDate:   base.Add(time.Duration(i) * time.Hour),
			Items:      []domain.SaleItem{{VariantID: "var-tea-250", Quantity: dec("1"), PriceAtSale: dec("120")}},
		})
		require.NoError(t, err)
	}
	_, err := s.CreatePayment(ctx, domain.Payment{CustomerID: "cust-ravi", Amount: dec("50"), PaymentDate: base})
	require.NoError(t, err)

	detail, err := s.CustomerHistory(ctx, "cust-ravi")
	require.NoError(t, err)
	require.Len(t, detail.Sales, 3)
	assert.Equal(t, "sale-3", detail.Sales[0].ID)
	assert.Len(t, detail.Payments, 1)

	_, err = s.CustomerHistory(ctx, "cust-nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteCustomerRestocksAndCascades(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	_, err := s.CreateSale(ctx, domain.Sale{CustomerID: "cust-irfan", Items: []domain.SaleItem{
		{VariantID: "var-oil-1l", Quantity: dec("4"), PriceAtSale: dec("145")},
	}})
	require.NoError(t, err)
	_, err = s.CreatePayment(ctx, domain.Payment{CustomerID: "cust-irfan", Amount: dec("100")})
	require.NoError(t, err)
	assertStock(t, s, "var-oil-1l", "36")

	require.NoError(t, s.DeleteCustomer(ctx, "cust-irfan"))
	assertStock(t, s, "var-oil-1l", "40")

	sales, err := s.ListSales(ctx, "cust-irfan")
	require.NoError(t, err)
	assert.Empty(t, sales)
	payments, err := s.ListPayments(ctx, "cust-irfan")
	require.NoError(t, err)
	assert.Empty(t, payments)

	assert.ErrorIs(t, s.DeleteCustomer(ctx, "cust-irfan"), domain.ErrConflict)
}

func TestPurchaseLifecycleMovesStock(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	purchase, err := s.CreatePurchase(ctx, domain.Purchase{
		SupplierID:    "sup-sharma",
		VariantID:     "var-rice-loose",
		Quantity:      dec("50"),
		PurchasePrice: dec("3750"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Sharma Wholesale", purchase.SupplierName)
	assertStock(t, s, "var-rice-loose", "170")

	variantID, qty, price := "var-sugar-loose", dec("20"), dec("800")
	before, updated, err := s.UpdatePurchase(ctx, purchase.ID, domain.PurchaseUpdateRequest{
		VariantID:     &variantID,
		Quantity:      &qty,
		PurchasePrice: &price,
	})
	require.NoError(t, err)
	assert.Equal(t, "var-rice-loose", before.VariantID)
	assert.Equal(t, "Sugar (Loose)", updated.VariantName)
	assertStock(t, s, "var-rice-loose", "120")
	assertStock(t, s, "var-sugar-loose", "100")

	_, err = s.DeletePurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assertStock(t, s, "var-sugar-loose", "80")

	_, err = s.DeletePurchase(ctx, purchase.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestConcurrentPurchasePatchesKeepEachOthersFields(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	purchase, err := s.CreatePurchase(ctx, domain.Purchase{
		VariantID:     "var-dal-1kg",
		Quantity:      dec("10"),
		PurchasePrice: dec("1400"),
	})
	require.NoError(t, err)
	stockBefore := stockOf(t, s, "var-dal-1kg")

	price, qty := dec("1500"), dec("12")
	patches := []domain.PurchaseUpdateRequest{{PurchasePrice: &price}, {Quantity: &qty}}

	var wg sync.WaitGroup
	for _, patch := range patches {
		wg.Add(1)
		go func(patch domain.PurchaseUpdateRequest) {
			defer wg.Done()
			_, _, err := s.UpdatePurchase(ctx, purchase.ID, patch)
			assert.NoError(t, err)
		}(patch)
	}
	wg.Wait()

	got, err := s.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(got.PurchasePrice), "price %s", got.PurchasePrice)
	assert.True(t, qty.Equal(got.Quantity), "quantity %s", got.Quantity)
	assertStock(t, s, "var-dal-1kg", stockBefore.Add(dec("2")).String())

	zero := decimal.Zero
	_, _, err = s.UpdatePurchase(ctx, purchase.ID, domain.PurchaseUpdateRequest{Quantity: &zero})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, _, err = s.UpdatePurchase(ctx, "pur-missing", domain.PurchaseUpdateRequest{PurchasePrice: &price})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPurchaseSearchAndUnknownSupplier(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	_, err := s.CreatePurchase(ctx, domain.Purchase{SupplierID: "sup-none", VariantID: "var-tea-250", Quantity: dec("1")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.CreatePurchase(ctx, domain.Purchase{SupplierID: "sup-sharma", VariantID: "var-tea-250", Quantity: dec("10"), PurchasePrice: dec("900")})
	require.NoError(t, err)
	_, err = s.CreatePurchase(ctx, domain.Purchase{VariantID: "var-dal-1kg", Quantity: dec("5"), PurchasePrice: dec("700")})
	require.NoError(t, err)

	found, err := s.ListPurchases(ctx, "sharma", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "var-tea-250", found[0].VariantID)

	found, err = s.ListPurchases(ctx, "dal", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)

	all, err := s.ListPurchases(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestVariantReferencedByHistoryCannotBeDeleted(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	_, err := s.CreateSale(ctx, domain.Sale{CustomerID: "cust-ravi", Items: []domain.SaleItem{
		{VariantID: "var-tea-250", Quantity: dec("1"), PriceAtSale: dec("120")},
	}})
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteVariant(ctx, "var-tea-250"), domain.ErrConflict)
	assert.ErrorIs(t, s.DeleteProduct(ctx, "prod-tea"), domain.ErrConflict)
	assert.ErrorIs(t, s.DeleteVariant(ctx, "var-missing"), domain.ErrNotFound)
	assert.NoError(t, s.DeleteProduct(ctx, "prod-dal"))
}

func TestDuplicateNamesConflict(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	_, err := s.CreateCustomer(ctx, domain.Customer{Name: "ravi kumar"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = s.CreateProduct(ctx, domain.Product{Name: "SUGAR"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = s.CreateVariant(ctx, domain.ProductVariant{ProductID: "prod-rice", Name: "loose", Unit: domain.UnitKilogram})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = s.CreateVariant(ctx, domain.ProductVariant{ProductID: "prod-sugar", Name: "1kg Packet", Unit: domain.UnitPacket})
	assert.NoError(t, err)
}

func TestListCustomersSearchSortAndPage(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	_, err := s.CreateSale(ctx, domain.Sale{CustomerID: "cust-sunita", Items: []domain.SaleItem{
		{VariantID: "var-oil-1l", Quantity: dec("2"), PriceAtSale: dec("145")},
	}})
	require.NoError(t, err)

	page, err := s.ListCustomers(ctx, domain.CustomerQuery{Sort: domain.CustomerSortBalanceDesc})
	require.NoError(t, err)
	require.Len(t, page.Customers, 3)
	assert.Equal(t, "cust-sunita", page.Customers[0].ID)
	assert.True(t, dec("290").Equal(page.Customers[0].Balance))

	page, err = s.ListCustomers(ctx, domain.CustomerQuery{Search: "temple"})
	require.NoError(t, err)
	require.Len(t, page.Customers, 1)
	assert.Equal(t, "Sunita Devi", page.Customers[0].Name)

	page, err = s.ListCustomers(ctx, domain.CustomerQuery{Sort: domain.CustomerSortName, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Customers, 1)
	assert.Equal(t, "Sunita Devi", page.Customers[0].Name)

	page, err = s.ListCustomers(ctx, domain.CustomerQuery{Page: 5, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Customers)
}

func TestCorrectStockRecordsDelta(t *testing.T) {
	s := NewSeeded()
	correction, err := s.CorrectStock(context.Background(), "var-rice-loose", dec("117.5"))
	require.NoError(t, err)
	assert.True(t, dec("120").Equal(correction.PreviousStock))
	assert.True(t, dec("-2.5").Equal(correction.Delta))
	assertStock(t, s, "var-rice-loose", "117.5")
}

func TestDeleteSupplierKeepsPurchases(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()

	purchase, err := s.CreatePurchase(ctx, domain.Purchase{SupplierID: "sup-sharma", VariantID: "var-tea-250", Quantity: dec("2"), PurchasePrice: dec("200")})
	require.NoError(t, err)
	require.NoError(t, s.DeleteSupplier(ctx, "sup-sharma"))

	got, err := s.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SupplierID)
	assert.Empty(t, got.SupplierName)
}
