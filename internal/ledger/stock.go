package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"grocertrack/backend/internal/domain"
)

// StockLedger moves a variant's current stock by a signed quantity. Implementations are
// scoped to a single repository transaction.
type StockLedger interface {
	ApplyDelta(ctx context.Context, variantID string, qty decimal.Decimal) error
}

// Delta is a signed stock movement keyed by variant ID. Zero entries are never stored.
type Delta map[string]decimal.Decimal

func (d Delta) Add(variantID string, qty decimal.Decimal) {
	if qty.IsZero() {
		return
	}
	next := d[variantID].Add(qty)
	if next.IsZero() {
		delete(d, variantID)
		return
	}
	d[variantID] = next
}

func (d Delta) Negate() Delta {
	out := make(Delta, len(d))
	for id, qty := range d {
		out[id] = qty.Neg()
	}
	return out
}

// Merge nets both deltas into a new one, dropping variants that cancel out.
func (d Delta) Merge(other Delta) Delta {
	out := make(Delta, len(d)+len(other))
	for id, qty := range d {
		out.Add(id, qty)
	}
	for id, qty := range other {
		out.Add(id, qty)
	}
	return out
}

func (d Delta) IsZero() bool {
	return len(d) == 0
}

// VariantIDs returns the touched variants in ascending order, the order rows get locked in.
func (d Delta) VariantIDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func SaleDelta(items []domain.SaleItem) Delta {
	d := make(Delta, len(items))
	for _, item := range items {
		d.Add(item.VariantID, item.Quantity.Neg())
	}
	return d
}

func PurchaseDelta(variantID string, qty decimal.Decimal) Delta {
	d := make(Delta, 1)
	d.Add(variantID, qty)
	return d
}

// EditDelta is the net movement of replacing a sale's items: the old items are put back
// and the new ones taken out.
func EditDelta(oldItems []domain.SaleItem, newItems []domain.SaleItem) Delta {
	return SaleDelta(oldItems).Negate().Merge(SaleDelta(newItems))
}

func PurchaseEditDelta(oldVariantID string, oldQty decimal.Decimal, newVariantID string, newQty decimal.Decimal) Delta {
	return PurchaseDelta(oldVariantID, oldQty).Negate().Merge(PurchaseDelta(newVariantID, newQty))
}

// Apply pushes every entry of d through l in ascending variant order and stops at the
// first failure; the caller rolls the surrounding transaction back.
func Apply(ctx context.Context, l StockLedger, d Delta) error {
	for _, id := range d.VariantIDs() {
		if err := l.ApplyDelta(ctx, id, d[id]); err != nil {
			return fmt.Errorf("adjust stock of %s: %w", id, err)
		}
	}
	return nil
}

func Reverse(ctx context.Context, l StockLedger, variantID string, qty decimal.Decimal) error {
	return l.ApplyDelta(ctx, variantID, qty.Neg())
}

// Staged is a StockLedger over a read-only snapshot. Moves accumulate in Levels until the
// owner decides to write them back.
type Staged struct {
	lookup  func(variantID string) (decimal.Decimal, bool)
	pending map[string]decimal.Decimal
}

func NewStaged(lookup func(variantID string) (decimal.Decimal, bool)) *Staged {
	return &Staged{lookup: lookup, pending: make(map[string]decimal.Decimal)}
}

func (s *Staged) ApplyDelta(_ context.Context, variantID string, qty decimal.Decimal) error {
	current, ok := s.pending[variantID]
	if !ok {
		current, ok = s.lookup(variantID)
		if !ok {
			return fmt.Errorf("%w: variant %s", domain.ErrNotFound, variantID)
		}
	}
	s.pending[variantID] = current.Add(qty)
	return nil
}

// Levels returns the resulting stock of every variant touched so far.
func (s *Staged) Levels() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(s.pending))
	for id, level := range s.pending {
		out[id] = level
	}
	return out
}
