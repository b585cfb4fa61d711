package statement

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"grocertrack/backend/internal/domain"
	"grocertrack/backend/internal/ledger"
)

const (
	TypeSale    = "Sale"
	TypePayment = "Payment"

	paymentDescription = "Payment received"
	itemSeparator      = " ; "
)

// ErrMalformed rejects a history that cannot be rendered. Nothing is written when it occurs.
var ErrMalformed = fmt.Errorf("%w: malformed statement input", domain.ErrValidation)

// Header is the column row shared by every renderer.
var Header = []string{"Type", "Date", "Description", "Amount"}

type Row struct {
	Type        string
	Reference   string
	Date        time.Time
	Description string
	Amount      decimal.Decimal
}

// Record is the formatted form of a row. Every renderer writes exactly these strings.
func (r Row) Record() []string {
	return []string{
		r.Type,
		r.Date.UTC().Format(time.RFC3339),
		r.Description,
		r.Amount.StringFixed(2),
	}
}

type Options struct {
	Descending bool
}

// Build turns a customer's sales and payments into statement rows ordered by date. On a
// tie sales come before payments, then rows are ordered by reference.
func Build(customer domain.Customer, sales []domain.Sale, payments []domain.Payment, opts Options) ([]Row, error) {
	rows := make([]Row, 0, len(sales)+len(payments))
	for _, sale := range sales {
		row, err := saleRow(customer, sale)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	for _, payment := range payments {
		row, err := paymentRow(customer, payment)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if opts.Descending {
			return rowLess(rows[j], rows[i])
		}
		return rowLess(rows[i], rows[j])
	})
	return rows, nil
}

func saleRow(customer domain.Customer, sale domain.Sale) (Row, error) {
	if sale.CustomerID != "" && sale.CustomerID != customer.ID {
		return Row{}, fmt.Errorf("%w: sale %s belongs to another customer", ErrMalformed, sale.ID)
	}
	if sale.SaleDate.IsZero() {
		return Row{}, fmt.Errorf("%w: sale %s has no date", ErrMalformed, sale.ID)
	}
	if len(sale.Items) == 0 {
		return Row{}, fmt.Errorf("%w: sale %s has no items", ErrMalformed, sale.ID)
	}

	parts := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		if !item.Quantity.IsPositive() || item.PriceAtSale.IsNegative() {
			return Row{}, fmt.Errorf("%w: sale %s has an invalid item", ErrMalformed, sale.ID)
		}
		name := item.VariantName
		if name == "" {
			name = item.VariantID
		}
		parts = append(parts, fmt.Sprintf("%s (%s×%s)", name, item.Quantity.String(), item.PriceAtSale.StringFixed(2)))
	}

	return Row{
		Type:        TypeSale,
		Reference:   sale.ID,
		Date:        sale.SaleDate,
		Description: strings.Join(parts, itemSeparator),
		Amount:      sale.Total(),
	}, nil
}

func paymentRow(customer domain.Customer, payment domain.Payment) (Row, error) {
	if payment.CustomerID != "" && payment.CustomerID != customer.ID {
		return Row{}, fmt.Errorf("%w: payment %s belongs to another customer", ErrMalformed, payment.ID)
	}
	if payment.PaymentDate.IsZero() {
		return Row{}, fmt.Errorf("%w: payment %s has no date", ErrMalformed, payment.ID)
	}
	if !payment.Amount.IsPositive() {
		return Row{}, fmt.Errorf("%w: payment %s amount must be positive", ErrMalformed, payment.ID)
	}
	return Row{
		Type:        TypePayment,
		Reference:   payment.ID,
		Date:        payment.PaymentDate,
		Description: paymentDescription,
		Amount:      payment.Amount,
	}, nil
}

func rowLess(a Row, b Row) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.Type != b.Type {
		return a.Type == TypeSale
	}
	return a.Reference < b.Reference
}

// Document is everything a printable statement shows.
type Document struct {
	Customer    domain.Customer
	Rows        []Row
	Balance     decimal.Decimal
	GeneratedAt time.Time
}

func NewDocument(customer domain.Customer, sales []domain.Sale, payments []domain.Payment, opts Options) (Document, error) {
	if strings.TrimSpace(customer.ID) == "" {
		return Document{}, fmt.Errorf("%w: customer is required", ErrMalformed)
	}
	rows, err := Build(customer, sales, payments, opts)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Customer:    customer,
		Rows:        rows,
		Balance:     ledger.Balance(sales, payments),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// Records returns the formatted rows, header excluded.
func (d Document) Records() [][]string {
	records := make([][]string, 0, len(d.Rows))
	for _, row := range d.Rows {
		records = append(records, row.Record())
	}
	return records
}
