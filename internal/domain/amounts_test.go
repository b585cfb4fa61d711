package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCheckMoney(t *testing.T) {
	for _, ok := range []string{"0", "0.01", "12.5", "12.500", "-3.20", "9999999999.99"} {
		assert.NoError(t, CheckMoney("amount", decimal.RequireFromString(ok)), ok)
	}
	for _, bad := range []string{"0.005", "0.125", "10000000000", "-10000000000"} {
		assert.ErrorIs(t, CheckMoney("amount", decimal.RequireFromString(bad)), ErrValidation, bad)
	}
}

func TestCheckQuantity(t *testing.T) {
	for _, ok := range []string{"0.001", "2.5", "1.2500", "999999999.999"} {
		assert.NoError(t, CheckQuantity("quantity", decimal.RequireFromString(ok)), ok)
	}
	for _, bad := range []string{"0.0005", "1.2345", "1000000000"} {
		assert.ErrorIs(t, CheckQuantity("quantity", decimal.RequireFromString(bad)), ErrValidation, bad)
	}
}
