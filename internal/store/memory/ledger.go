package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"grocertrack/backend/internal/domain"
	"grocertrack/backend/internal/ledger"
	"grocertrack/backend/internal/xid"
)

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", domain.ErrValidation)
	}
	if _, ok := s.customers[sale.CustomerID]; !ok {
		return nil, fmt.Errorf("%w: customer %s", domain.ErrNotFound, sale.CustomerID)
	}

	staged := s.stage()
	if err := ledger.Apply(ctx, staged, ledger.SaleDelta(sale.Items)); err != nil {
		return nil, err
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = time.Now().UTC()
	}
	sale.Items = cloneItems(sale.Items)
	s.commit(staged)
	s.sales[sale.ID] = sale

	view := s.saleView(sale)
	return &view, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, fmt.Errorf("%w: sale %s", domain.ErrNotFound, id)
	}
	view := s.saleView(sale)
	return &view, nil
}

func (s *Store) ListSales(_ context.Context, customerID string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.salesOf(customerID), nil
}

func (s *Store) ReplaceSaleItems(ctx context.Context, saleID string, items []domain.SaleItem) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", domain.ErrValidation)
	}
	sale, ok := s.sales[saleID]
	if !ok {
		return nil, fmt.Errorf("%w: sale %s", domain.ErrNotFound, saleID)
	}

	staged := s.stage()
	if err := ledger.Apply(ctx, staged, ledger.EditDelta(sale.Items, items)); err != nil {
		return nil, err
	}

	sale.Items = cloneItems(items)
	s.commit(staged)
	s.sales[saleID] = sale

	view := s.saleView(sale)
	return &view, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, fmt.Errorf("%w: sale %s no longer exists", domain.ErrConflict, id)
	}

	staged := s.stage()
	if err := ledger.Apply(ctx, staged, ledger.SaleDelta(sale.Items).Negate()); err != nil {
		return nil, err
	}

	view := s.saleView(sale)
	s.commit(staged)
	delete(s.sales, id)
	return &view, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return fmt.Errorf("%w: customer %s no longer exists", domain.ErrConflict, id)
	}

	restock := ledger.Delta{}
	saleIDs := make([]string, 0, 8)
	for saleID, sale := range s.sales {
		if sale.CustomerID != id {
			continue
		}
		restock = restock.Merge(ledger.SaleDelta(sale.Items).Negate())
		saleIDs = append(saleIDs, saleID)
	}

	staged := s.stage()
	if err := ledger.Apply(ctx, staged, restock); err != nil {
		return err
	}

	s.commit(staged)
	for _, saleID := range saleIDs {
		delete(s.sales, saleID)
	}
	for paymentID, p := range s.payments {
		if p.CustomerID == id {
			delete(s.payments, paymentID)
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) CreatePayment(_ context.Context, payment domain.Payment) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !payment.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", domain.ErrValidation)
	}
	if _, ok := s.customers[payment.CustomerID]; !ok {
		return nil, fmt.Errorf("%w: customer %s", domain.ErrNotFound, payment.CustomerID)
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now().UTC()
	}
	s.payments[payment.ID] = payment
	created := payment
	return &created, nil
}

func (s *Store) GetPayment(_ context.Context, id string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s", domain.ErrNotFound, id)
	}
	return &p, nil
}

func (s *Store) ListPayments(_ context.Context, customerID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.paymentsOf(customerID), nil
}

func (s *Store) UpdatePaymentAmount(_ context.Context, id string, amount decimal.Decimal) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", domain.ErrValidation)
	}
	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s", domain.ErrNotFound, id)
	}
	p.Amount = amount
	s.payments[id] = p
	updated := p
	return &updated, nil
}

func (s *Store) DeletePayment(_ context.Context, id string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s no longer exists", domain.ErrConflict, id)
	}
	delete(s.payments, id)
	return &p, nil
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !purchase.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be greater than zero", domain.ErrValidation)
	}
	if err := s.checkSupplier(purchase.SupplierID); err != nil {
		return nil, err
	}

	staged := s.stage()
	if err := ledger.Apply(ctx, staged, ledger.PurchaseDelta(purchase.VariantID, purchase.Quantity)); err != nil {
		return nil, err
	}

	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.PurchaseDate.IsZero() {
		purchase.PurchaseDate = time.Now().UTC()
	}
	purchase.SupplierName = ""
	purchase.VariantName = ""
	s.commit(staged)
	s.purchases[purchase.ID] = purchase

	view := s.purchaseView(purchase)
	return &view, nil
}

func (s *Store) GetPurchase(_ context.Context, id string) (*domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.purchases[id]
	if !ok {
		return nil, fmt.Errorf("%w: purchase %s", domain.ErrNotFound, id)
	}
	view := s.purchaseView(p)
	return &view, nil
}

func (s *Store) ListPurchases(_ context.Context, search string, limit int) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	result := make([]domain.Purchase, 0, len(s.purchases))
	for _, p := range s.purchases {
		view := s.purchaseView(p)
		if needle != "" &&
			!strings.Contains(strings.ToLower(view.SupplierName), needle) &&
			!strings.Contains(strings.ToLower(view.VariantName), needle) {
			continue
		}
		result = append(result, view)
	}
	slices.SortFunc(result, func(a, b domain.Purchase) int {
		if a.PurchaseDate.Equal(b.PurchaseDate) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.PurchaseDate.Compare(a.PurchaseDate)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) UpdatePurchase(ctx context.Context, id string, patch domain.PurchaseUpdateRequest) (*domain.Purchase, *domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.purchases[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: purchase %s", domain.ErrNotFound, id)
	}
	merged := patch.Merge(existing)
	if !merged.Quantity.IsPositive() {
		return nil, nil, fmt.Errorf("%w: quantity must be greater than zero", domain.ErrValidation)
	}

	staged := s.stage()
	delta := ledger.PurchaseEditDelta(existing.VariantID, existing.Quantity, merged.VariantID, merged.Quantity)
	if err := ledger.Apply(ctx, staged, delta); err != nil {
		return nil, nil, err
	}

	before := s.purchaseView(existing)
	s.commit(staged)
	s.purchases[id] = merged

	after := s.purchaseView(merged)
	return &before, &after, nil
}

func (s *Store) DeletePurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.purchases[id]
	if !ok {
		return nil, fmt.Errorf("%w: purchase %s no longer exists", domain.ErrConflict, id)
	}

	staged := s.stage()
	if err := ledger.Apply(ctx, staged, ledger.PurchaseDelta(p.VariantID, p.Quantity).Negate()); err != nil {
		return nil, err
	}

	view := s.purchaseView(p)
	s.commit(staged)
	delete(s.purchases, id)
	return &view, nil
}

// The helpers below expect s.mu to be held.

func (s *Store) stage() *ledger.Staged {
	return ledger.NewStaged(func(variantID string) (decimal.Decimal, bool) {
		v, ok := s.variants[variantID]
		return v.CurrentStock, ok
	})
}

func (s *Store) commit(staged *ledger.Staged) {
	for variantID, level := range staged.Levels() {
		v := s.variants[variantID]
		v.CurrentStock = level
		s.variants[variantID] = v
	}
}

func (s *Store) checkSupplier(supplierID string) error {
	if supplierID == "" {
		return nil
	}
	if _, ok := s.suppliers[supplierID]; !ok {
		return fmt.Errorf("%w: supplier %s", domain.ErrNotFound, supplierID)
	}
	return nil
}

func (s *Store) saleView(sale domain.Sale) domain.Sale {
	sale.Items = cloneItems(sale.Items)
	for i, item := range sale.Items {
		if v, ok := s.variants[item.VariantID]; ok {
			sale.Items[i].VariantName = s.variantView(v).DisplayName()
		}
	}
	if c, ok := s.customers[sale.CustomerID]; ok {
		sale.CustomerName = c.Name
	}
	return sale
}

func (s *Store) purchaseView(p domain.Purchase) domain.Purchase {
	if v, ok := s.variants[p.VariantID]; ok {
		p.VariantName = s.variantView(v).DisplayName()
	}
	if supplier, ok := s.suppliers[p.SupplierID]; ok {
		p.SupplierName = supplier.Name
	}
	return p
}

// salesOf lists sales newest first; an empty customerID lists every sale.
func (s *Store) salesOf(customerID string) []domain.Sale {
	result := make([]domain.Sale, 0, 16)
	for _, sale := range s.sales {
		if customerID != "" && sale.CustomerID != customerID {
			continue
		}
		result = append(result, s.saleView(sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.SaleDate.Equal(b.SaleDate) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.SaleDate.Compare(a.SaleDate)
	})
	return result
}

func (s *Store) paymentsOf(customerID string) []domain.Payment {
	result := make([]domain.Payment, 0, 16)
	for _, p := range s.payments {
		if customerID != "" && p.CustomerID != customerID {
			continue
		}
		result = append(result, p)
	}
	slices.SortFunc(result, func(a, b domain.Payment) int {
		if a.PaymentDate.Equal(b.PaymentDate) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.PaymentDate.Compare(a.PaymentDate)
	})
	return result
}

func cloneItems(items []domain.SaleItem) []domain.SaleItem {
	out := make([]domain.SaleItem, len(items))
	copy(out, items)
	return out
}
