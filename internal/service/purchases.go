package service

import (
	"context"
	"fmt"
	"strings"

	"grocertrack/backend/internal/domain"
	"grocertrack/backend/internal/ledger"
	"grocertrack/backend/internal/xid"
)

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Supplier{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Supplier{}, fmt.Errorf("%w: supplier name is required", domain.ErrValidation)
	}

	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		ID:            xid.New("sup"),
		Name:          req.Name,
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Mobile:        strings.TrimSpace(req.Mobile),
		Address:       strings.TrimSpace(req.Address),
	})
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logAudit(ctx, "supplier_create", "supplier", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListSuppliers(ctx)
}

// DeleteSupplier keeps the supplier's purchases; they lose their supplier reference.
func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	id, err := requireID("supplier", id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSupplier(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "supplier_delete", "supplier", id, "deleted")
	return nil
}

func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Purchase{}, err
	}

	variantID, err := requireID("variant", req.VariantID)
	if err != nil {
		return domain.Purchase{}, err
	}
	if !req.Quantity.IsPositive() {
		return domain.Purchase{}, fmt.Errorf("%w: quantity must be greater than zero", domain.ErrValidation)
	}
	if req.PurchasePrice.IsNegative() {
		return domain.Purchase{}, fmt.Errorf("%w: purchase price must not be negative", domain.ErrValidation)
	}
	if err := domain.CheckQuantity("quantity", req.Quantity); err != nil {
		return domain.Purchase{}, err
	}
	if err := domain.CheckMoney("purchase price", req.PurchasePrice); err != nil {
		return domain.Purchase{}, err
	}

	purchase, err := s.repo.CreatePurchase(ctx, domain.Purchase{
		ID:            xid.New("pur"),
		SupplierID:    strings.TrimSpace(req.SupplierID),
		VariantID:     variantID,
		Quantity:      req.Quantity,
		PurchasePrice: req.PurchasePrice,
	})
	if err != nil {
		return domain.Purchase{}, err
	}

	s.logAudit(ctx, "purchase_create", "purchase", purchase.ID, fmt.Sprintf("variant=%s,qty=%s,price=%s", purchase.VariantID, purchase.Quantity, purchase.PurchasePrice.StringFixed(2)))
	return *purchase, nil
}

func (s *Service) ListPurchases(ctx context.Context, search string, limit int) ([]domain.Purchase, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 200
	}
	return s.repo.ListPurchases(ctx, strings.TrimSpace(search), limit)
}

func (s *Service) GetPurchase(ctx context.Context, id string) (domain.Purchase, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Purchase{}, err
	}
	id, err := requireID("purchase", id)
	if err != nil {
		return domain.Purchase{}, err
	}
	purchase, err := s.repo.GetPurchase(ctx, id)
	if err != nil {
		return domain.Purchase{}, err
	}
	return *purchase, nil
}

// UpdatePurchase may change variant, quantity or price. Stock follows the net change.
func (s *Service) UpdatePurchase(ctx context.Context, id string, req domain.PurchaseUpdateRequest) (domain.Purchase, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Purchase{}, err
	}
	id, err := requireID("purchase", id)
	if err != nil {
		return domain.Purchase{}, err
	}

	if req.VariantID != nil {
		variantID := strings.TrimSpace(*req.VariantID)
		if variantID == "" {
			return domain.Purchase{}, fmt.Errorf("%w: variant is required", domain.ErrValidation)
		}
		req.VariantID = &variantID
	}
	if req.Quantity != nil {
		if !req.Quantity.IsPositive() {
			return domain.Purchase{}, fmt.Errorf("%w: quantity must be greater than zero", domain.ErrValidation)
		}
		if err := domain.CheckQuantity("quantity", *req.Quantity); err != nil {
			return domain.Purchase{}, err
		}
	}
	if req.PurchasePrice != nil {
		if req.PurchasePrice.IsNegative() {
			return domain.Purchase{}, fmt.Errorf("%w: purchase price must not be negative", domain.ErrValidation)
		}
		if err := domain.CheckMoney("purchase price", *req.PurchasePrice); err != nil {
			return domain.Purchase{}, err
		}
	}

	previous, saved, err := s.repo.UpdatePurchase(ctx, id, req)
	if err != nil {
		return domain.Purchase{}, err
	}

	delta := ledger.PurchaseEditDelta(previous.VariantID, previous.Quantity, saved.VariantID, saved.Quantity)
	s.warnOversold(ctx, delta.VariantIDs())
	s.logAudit(ctx, "purchase_edit", "purchase", saved.ID, fmt.Sprintf("variant=%s,qty=%s,price=%s", saved.VariantID, saved.Quantity, saved.PurchasePrice.StringFixed(2)))
	return *saved, nil
}

func (s *Service) DeletePurchase(ctx context.Context, id string) (domain.Purchase, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Purchase{}, err
	}
	id, err := requireID("purchase", id)
	if err != nil {
		return domain.Purchase{}, err
	}

	purchase, err := s.repo.DeletePurchase(ctx, id)
	if err != nil {
		return domain.Purchase{}, err
	}

	s.warnOversold(ctx, []string{purchase.VariantID})
	s.logAudit(ctx, "purchase_delete", "purchase", purchase.ID, fmt.Sprintf("variant=%s,qty=%s", purchase.VariantID, purchase.Quantity))
	return *purchase, nil
}
