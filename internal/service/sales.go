package service

import (
	"context"
	"fmt"
	"strings"

	"grocertrack/backend/internal/domain"
	"grocertrack/backend/internal/ledger"
	"grocertrack/backend/internal/xid"
)

// CommitSale persists a sale with frozen prices and takes its quantities out of stock in
// one repository transaction.
func (s *Service) CommitSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	customerID, err := requireID("customer", req.CustomerID)
	if err != nil {
		return domain.Sale{}, err
	}
	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return domain.Sale{}, err
	}

	sale, err := s.repo.CreateSale(ctx, domain.Sale{
		ID:         xid.New("sale"),
		CustomerID: customerID,
		Items:      items,
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.warnOversold(ctx, ledger.SaleDelta(sale.Items).VariantIDs())
	s.logAudit(ctx, "sale_create", "sale", sale.ID, fmt.Sprintf("customer=%s,items=%d,total=%s", sale.CustomerID, len(sale.Items), sale.Total().StringFixed(2)))
	return *sale, nil
}

// EditSale replaces the items of an existing sale. Only the difference between the old
// and new quantities reaches stock; ID and sale date are kept.
func (s *Service) EditSale(ctx context.Context, saleID string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	saleID, err := requireID("sale", saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return domain.Sale{}, err
	}

	sale, err := s.repo.ReplaceSaleItems(ctx, saleID, items)
	if err != nil {
		return domain.Sale{}, err
	}

	s.warnOversold(ctx, ledger.SaleDelta(sale.Items).VariantIDs())
	s.logAudit(ctx, "sale_edit", "sale", sale.ID, fmt.Sprintf("items=%d,total=%s", len(sale.Items), sale.Total().StringFixed(2)))
	return *sale, nil
}

func (s *Service) DeleteSale(ctx context.Context, saleID string) (domain.Sale, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Sale{}, err
	}
	saleID, err := requireID("sale", saleID)
	if err != nil {
		return domain.Sale{}, err
	}

	sale, err := s.repo.DeleteSale(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_delete", "sale", sale.ID, fmt.Sprintf("customer=%s,total=%s", sale.CustomerID, sale.Total().StringFixed(2)))
	return *sale, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	saleID, err := requireID("sale", saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, customerID string) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, strings.TrimSpace(customerID))
}

// buildItems validates commit input and turns it into owned sale items. Every line must
// name a known variant; prices are taken from the input as given.
func (s *Service) buildItems(ctx context.Context, lines []domain.SaleLineInput) ([]domain.SaleItem, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: sale needs at least one item", domain.ErrValidation)
	}

	ids := make([]string, 0, len(lines))
	for i, line := range lines {
		variantID := strings.TrimSpace(line.VariantID)
		switch {
		case variantID == "":
			return nil, fmt.Errorf("%w: item %d has no variant", domain.ErrValidation, i)
		case !line.Quantity.IsPositive():
			return nil, fmt.Errorf("%w: item %d quantity must be greater than zero", domain.ErrValidation, i)
		case line.Price.IsNegative():
			return nil, fmt.Errorf("%w: item %d price must not be negative", domain.ErrValidation, i)
		}
		if err := domain.CheckQuantity(fmt.Sprintf("item %d quantity", i), line.Quantity); err != nil {
			return nil, err
		}
		if err := domain.CheckMoney(fmt.Sprintf("item %d price", i), line.Price); err != nil {
			return nil, err
		}
		ids = append(ids, variantID)
	}

	variants, err := s.repo.GetVariantsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.SaleItem, 0, len(lines))
	for i, line := range lines {
		v, ok := variants[ids[i]]
		if !ok {
			return nil, fmt.Errorf("%w: variant %s", domain.ErrNotFound, ids[i])
		}
		items = append(items, domain.SaleItem{
			VariantID:   v.ID,
			VariantName: v.DisplayName(),
			Quantity:    line.Quantity,
			PriceAtSale: line.Price,
		})
	}
	return items, nil
}
