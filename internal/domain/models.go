package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	UnitKilogram = "kg"
	UnitPiece    = "piece"
	UnitLitre    = "litre"
	UnitPacket   = "packet"
)

func IsSupportedUnit(unit string) bool {
	switch unit {
	case UnitKilogram, UnitPiece, UnitLitre, UnitPacket:
		return true
	default:
		return false
	}
}

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type ProductVariant struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
}

// DisplayName is the label used on receipts and statements, e.g. "Basmati Rice (25kg Bag)".
func (v ProductVariant) DisplayName() string {
	if v.ProductName == "" {
		return v.Name
	}
	return fmt.Sprintf("%s (%s)", v.ProductName, v.Name)
}

type VariantCreateRequest struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Unit         string          `json:"unit"`
	InitialStock decimal.Decimal `json:"initial_stock"`
}

type VariantUpdateRequest struct {
	Name  *string          `json:"name,omitempty"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Unit  *string          `json:"unit,omitempty"`
}

type VariantPriceHistory struct {
	ID        string          `json:"id"`
	VariantID string          `json:"variant_id"`
	OldPrice  decimal.Decimal `json:"old_price"`
	NewPrice  decimal.Decimal `json:"new_price"`
	ChangedBy string          `json:"changed_by"`
	ChangedAt time.Time       `json:"changed_at"`
}

type StockCorrectionRequest struct {
	CountedStock decimal.Decimal `json:"counted_stock"`
	Reason       string          `json:"reason"`
	ManagerPIN   string          `json:"manager_pin"`
}

type StockCorrection struct {
	VariantID     string          `json:"variant_id"`
	PreviousStock decimal.Decimal `json:"previous_stock"`
	CountedStock  decimal.Decimal `json:"counted_stock"`
	Delta         decimal.Decimal `json:"delta"`
	Reason        string          `json:"reason"`
	CorrectedAt   time.Time       `json:"corrected_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// Balance is derived from sales and payments on every read.
	Balance   decimal.Decimal `json:"balance"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	Address string `json:"address"`
}

const (
	CustomerSortName        = "name"
	CustomerSortNameDesc    = "-name"
	CustomerSortBalance     = "balance"
	CustomerSortBalanceDesc = "-balance"
)

// CustomerQuery carries directory parameters supplied by the caller; the engine keeps no
// search or pagination state of its own. PageSize 0 returns every match.
type CustomerQuery struct {
	Search   string
	Sort     string
	Page     int
	PageSize int
}

type CustomerPage struct {
	Customers []Customer `json:"customers"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
}

type CustomerDetail struct {
	Customer Customer        `json:"customer"`
	Sales    []Sale          `json:"sales"`
	Payments []Payment       `json:"payments"`
	Balance  decimal.Decimal `json:"balance"`
}

type SaleItem struct {
	VariantID   string          `json:"variant_id"`
	VariantName string          `json:"variant_name,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	// PriceAtSale is copied from the cart at commit time and never follows the catalog.
	PriceAtSale decimal.Decimal `json:"price_at_sale"`
}

func (i SaleItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.PriceAtSale)
}

type Sale struct {
	ID           string     `json:"id"`
	CustomerID   string     `json:"customer_id"`
	CustomerName string     `json:"customer_name,omitempty"`
	SaleDate     time.Time  `json:"sale_date"`
	Items        []SaleItem `json:"items"`
}

func (s Sale) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

type SaleLineInput struct {
	VariantID string          `json:"variant_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price_at_sale"`
}

type SaleCreateRequest struct {
	CustomerID string          `json:"customer_id"`
	Items      []SaleLineInput `json:"items"`
}

type SaleUpdateRequest struct {
	Items []SaleLineInput `json:"items"`
}

type Payment struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
}

type PaymentCreateRequest struct {
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type PaymentUpdateRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type Supplier struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Mobile        string    `json:"mobile,omitempty"`
	Address       string    `json:"address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Mobile        string `json:"mobile"`
	Address       string `json:"address"`
}

type Purchase struct {
	ID            string          `json:"id"`
	SupplierID    string          `json:"supplier_id,omitempty"`
	SupplierName  string          `json:"supplier_name,omitempty"`
	VariantID     string          `json:"variant_id"`
	VariantName   string          `json:"variant_name,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	// PurchasePrice is the total paid for the whole quantity.
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  time.Time       `json:"purchase_date"`
}

type PurchaseCreateRequest struct {
	SupplierID    string          `json:"supplier_id"`
	VariantID     string          `json:"variant_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
}

type PurchaseUpdateRequest struct {
	VariantID     *string          `json:"variant_id,omitempty"`
	Quantity      *decimal.Decimal `json:"quantity,omitempty"`
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty"`
}

// Merge returns p with every field set in r overwritten.
func (r PurchaseUpdateRequest) Merge(p Purchase) Purchase {
	if r.VariantID != nil {
		p.VariantID = *r.VariantID
	}
	if r.Quantity != nil {
		p.Quantity = *r.Quantity
	}
	if r.PurchasePrice != nil {
		p.PurchasePrice = *r.PurchasePrice
	}
	return p
}

type CustomerCredit struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

type DashboardStats struct {
	LowStockItems          []ProductVariant `json:"low_stock_items"`
	TopCustomersByCredit   []CustomerCredit `json:"top_customers_by_credit"`
	TotalOutstandingCredit decimal.Decimal  `json:"total_outstanding_credit"`
	TotalProductVariants   int              `json:"total_product_variants"`
	TotalCustomers         int              `json:"total_customers"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type CartOpenRequest struct {
	CustomerID string `json:"customer_id"`
}

// CartLineRequest adds a line to a cart. A nil Price takes the variant's catalog price.
type CartLineRequest struct {
	VariantID string           `json:"variant_id"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

type CartLineUpdateRequest struct {
	Field string          `json:"field"`
	Value decimal.Decimal `json:"value"`
}

type CartCommitRequest struct {
	CustomerID string `json:"customer_id"`
}
