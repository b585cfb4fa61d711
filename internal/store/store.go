package store

import (
	"context"

	"github.com/shopspring/decimal"

	"grocertrack/backend/internal/domain"
)

// Repository is the single authoritative store. Every mutating method is one transaction:
// the record change and its stock movements are committed together or not at all.
// Failures wrap the sentinels in the domain package.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListVariants(ctx context.Context, search string) ([]domain.ProductVariant, error)
	GetVariant(ctx context.Context, id string) (*domain.ProductVariant, error)
	GetVariantsByIDs(ctx context.Context, ids []string) (map[string]domain.ProductVariant, error)
	CreateVariant(ctx context.Context, variant domain.ProductVariant) (*domain.ProductVariant, error)
	// UpdateVariant writes name, price and unit. Stock is left alone.
	UpdateVariant(ctx context.Context, variant domain.ProductVariant) (*domain.ProductVariant, error)
	CorrectStock(ctx context.Context, variantID string, counted decimal.Decimal) (*domain.StockCorrection, error)
	DeleteVariant(ctx context.Context, id string) error
	CreatePriceHistory(ctx context.Context, entry domain.VariantPriceHistory) error
	ListPriceHistory(ctx context.Context, variantID string, limit int) ([]domain.VariantPriceHistory, error)

	ListCustomers(ctx context.Context, query domain.CustomerQuery) (domain.CustomerPage, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	// CustomerHistory reads the customer with every sale and payment from one snapshot.
	// Balance is left for the caller to fold.
	CustomerHistory(ctx context.Context, id string) (*domain.CustomerDetail, error)
	// DeleteCustomer removes the customer's payments and sales, putting the sold stock back.
	DeleteCustomer(ctx context.Context, id string) error

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, customerID string) ([]domain.Sale, error)
	ReplaceSaleItems(ctx context.Context, saleID string, items []domain.SaleItem) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string) (*domain.Sale, error)

	CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error)
	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
	ListPayments(ctx context.Context, customerID string) ([]domain.Payment, error)
	UpdatePaymentAmount(ctx context.Context, id string, amount decimal.Decimal) (*domain.Payment, error)
	DeletePayment(ctx context.Context, id string) (*domain.Payment, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	DeleteSupplier(ctx context.Context, id string) error

	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	GetPurchase(ctx context.Context, id string) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, search string, limit int) ([]domain.Purchase, error)
	// UpdatePurchase merges the set fields of patch into the locked purchase and moves stock
	// by the net change. It returns the purchase as it was before and after the edit.
	UpdatePurchase(ctx context.Context, id string, patch domain.PurchaseUpdateRequest) (before *domain.Purchase, after *domain.Purchase, err error)
	DeletePurchase(ctx context.Context, id string) (*domain.Purchase, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
