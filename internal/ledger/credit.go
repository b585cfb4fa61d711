package ledger

import (
	"github.com/shopspring/decimal"

	"grocertrack/backend/internal/domain"
)

// Totals is an aggregate of a customer's history, as returned by SUM queries.
type Totals struct {
	Sales    decimal.Decimal
	Payments decimal.Decimal
}

func (t Totals) Balance() decimal.Decimal {
	return t.Sales.Sub(t.Payments)
}

func Fold(sales []domain.Sale, payments []domain.Payment) Totals {
	var t Totals
	for _, sale := range sales {
		t.Sales = t.Sales.Add(sale.Total())
	}
	for _, payment := range payments {
		t.Payments = t.Payments.Add(payment.Amount)
	}
	return t
}

// Balance is what the customer owes: every sale total minus every payment. A negative
// result means the customer holds credit.
func Balance(sales []domain.Sale, payments []domain.Payment) decimal.Decimal {
	return Fold(sales, payments).Balance()
}
