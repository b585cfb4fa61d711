package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is stored as NUMERIC(12,2) and quantities as NUMERIC(12,3). Values outside those
// columns are rejected with ErrValidation before they reach a store.
const (
	MoneyScale    = 2
	QuantityScale = 3
)

var (
	maxMoney    = decimal.New(1, 12-MoneyScale)
	maxQuantity = decimal.New(1, 12-QuantityScale)
)

// CheckMoney reports a validation error when v has more than two decimal places or does
// not fit the money column.
func CheckMoney(field string, v decimal.Decimal) error {
	return checkScale(field, v, MoneyScale, maxMoney)
}

// CheckQuantity is CheckMoney for quantities, which allow three decimal places.
func CheckQuantity(field string, v decimal.Decimal) error {
	return checkScale(field, v, QuantityScale, maxQuantity)
}

func checkScale(field string, v decimal.Decimal, scale int32, limit decimal.Decimal) error {
	if !v.Equal(v.Truncate(scale)) {
		return fmt.Errorf("%w: %s allows at most %d decimal places", ErrValidation, field, scale)
	}
	if v.Abs().GreaterThanOrEqual(limit) {
		return fmt.Errorf("%w: %s must be below %s", ErrValidation, field, limit)
	}
	return nil
}
