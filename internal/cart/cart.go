package cart

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"grocertrack/backend/internal/domain"
)

const (
	FieldQuantity = "quantity"
	FieldPrice    = "price"
)

// Line is one uncommitted entry. Price is copied when the line is added and does not
// follow later catalog changes.
type Line struct {
	VariantID   string          `json:"variant_id"`
	VariantName string          `json:"variant_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (l Line) Total() decimal.Decimal {
	return l.Quantity.Mul(l.Price)
}

// Cart is a single-session, single-writer sale in progress. It is plain data so a
// session store can persist it between requests.
type Cart struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id,omitempty"`
	Lines      []Line    `json:"lines"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func New(id string, customerID string) *Cart {
	return &Cart{
		ID:         id,
		CustomerID: strings.TrimSpace(customerID),
		Lines:      []Line{},
		UpdatedAt:  time.Now().UTC(),
	}
}

func (c *Cart) AddLine(variantID string, variantName string, qty decimal.Decimal, price decimal.Decimal) error {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return fmt.Errorf("%w: variant is required", domain.ErrValidation)
	}
	if !qty.IsPositive() {
		return fmt.Errorf("%w: quantity must be greater than zero", domain.ErrValidation)
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	}
	if err := domain.CheckQuantity("quantity", qty); err != nil {
		return err
	}
	if err := domain.CheckMoney("price", price); err != nil {
		return err
	}

	c.Lines = append(c.Lines, Line{
		VariantID:   variantID,
		VariantName: variantName,
		Quantity:    qty,
		Price:       price,
	})
	c.touch()
	return nil
}

func (c *Cart) UpdateLine(index int, field string, value decimal.Decimal) error {
	if index < 0 || index >= len(c.Lines) {
		return fmt.Errorf("%w: cart line %d", domain.ErrNotFound, index)
	}

	switch field {
	case FieldQuantity:
		if !value.IsPositive() {
			return fmt.Errorf("%w: quantity must be greater than zero", domain.ErrValidation)
		}
		if err := domain.CheckQuantity("quantity", value); err != nil {
			return err
		}
		c.Lines[index].Quantity = value
	case FieldPrice:
		if value.IsNegative() {
			return fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
		}
		if err := domain.CheckMoney("price", value); err != nil {
			return err
		}
		c.Lines[index].Price = value
	default:
		return fmt.Errorf("%w: unknown line field %q", domain.ErrValidation, field)
	}
	c.touch()
	return nil
}

func (c *Cart) RemoveLine(index int) error {
	if index < 0 || index >= len(c.Lines) {
		return fmt.Errorf("%w: cart line %d", domain.ErrNotFound, index)
	}
	c.Lines = append(c.Lines[:index], c.Lines[index+1:]...)
	c.touch()
	return nil
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Total())
	}
	return total
}

func (c *Cart) Clear() {
	c.Lines = []Line{}
	c.touch()
}

func (c *Cart) Len() int {
	return len(c.Lines)
}

// SaleLines converts the cart into commit input, preserving line order.
func (c *Cart) SaleLines() []domain.SaleLineInput {
	lines := make([]domain.SaleLineInput, 0, len(c.Lines))
	for _, line := range c.Lines {
		lines = append(lines, domain.SaleLineInput{
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}
	return lines
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
