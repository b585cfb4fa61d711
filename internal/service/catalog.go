package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"grocertrack/backend/internal/domain"
	"grocertrack/backend/internal/xid"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: product name is required", domain.ErrValidation)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:       xid.New("prod"),
		Name:     req.Name,
		Category: req.Category,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	id, err := requireID("product", id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", id, "deleted")
	return nil
}

func (s *Service) ListVariants(ctx context.Context, search string) ([]domain.ProductVariant, error) {
	return s.repo.ListVariants(ctx, strings.TrimSpace(search))
}

func (s *Service) GetVariant(ctx context.Context, id string) (domain.ProductVariant, error) {
	id, err := requireID("variant", id)
	if err != nil {
		return domain.ProductVariant{}, err
	}
	v, err := s.repo.GetVariant(ctx, id)
	if err != nil {
		return domain.ProductVariant{}, err
	}
	return *v, nil
}

func (s *Service) CreateVariant(ctx context.Context, req domain.VariantCreateRequest) (domain.ProductVariant, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.ProductVariant{}, err
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Name = strings.TrimSpace(req.Name)
	req.Unit = strings.ToLower(strings.TrimSpace(req.Unit))
	switch {
	case req.ProductID == "":
		return domain.ProductVariant{}, fmt.Errorf("%w: product is required", domain.ErrValidation)
	case req.Name == "":
		return domain.ProductVariant{}, fmt.Errorf("%w: variant name is required", domain.ErrValidation)
	case !domain.IsSupportedUnit(req.Unit):
		return domain.ProductVariant{}, fmt.Errorf("%w: unsupported unit %q", domain.ErrValidation, req.Unit)
	case req.Price.IsNegative():
		return domain.ProductVariant{}, fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
	case req.InitialStock.IsNegative():
		return domain.ProductVariant{}, fmt.Errorf("%w: initial stock must not be negative", domain.ErrValidation)
	}
	if err := domain.CheckMoney("price", req.Price); err != nil {
		return domain.ProductVariant{}, err
	}
	if err := domain.CheckQuantity("initial stock", req.InitialStock); err != nil {
		return domain.ProductVariant{}, err
	}

	created, err := s.repo.CreateVariant(ctx, domain.ProductVariant{
		ID:           xid.New("var"),
		ProductID:    req.ProductID,
		Name:         req.Name,
		Price:        req.Price,
		Unit:         req.Unit,
		CurrentStock: req.InitialStock,
	})
	if err != nil {
		return domain.ProductVariant{}, err
	}

	s.logAudit(ctx, "variant_create", "variant", created.ID, fmt.Sprintf("name=%s,price=%s,stock=%s", created.DisplayName(), created.Price, created.CurrentStock))
	return *created, nil
}

// UpdateVariant changes catalog fields only. Committed sales keep the price they were
// sold at; a price change is recorded in the variant's price history.
func (s *Service) UpdateVariant(ctx context.Context, id string, req domain.VariantUpdateRequest) (domain.ProductVariant, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.ProductVariant{}, err
	}
	id, err = requireID("variant", id)
	if err != nil {
		return domain.ProductVariant{}, err
	}

	existing, err := s.repo.GetVariant(ctx, id)
	if err != nil {
		return domain.ProductVariant{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.ProductVariant{}, fmt.Errorf("%w: variant name is required", domain.ErrValidation)
		}
		updated.Name = name
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return domain.ProductVariant{}, fmt.Errorf("%w: price must not be negative", domain.ErrValidation)
		}
		if err := domain.CheckMoney("price", *req.Price); err != nil {
			return domain.ProductVariant{}, err
		}
		updated.Price = *req.Price
	}
	if req.Unit != nil {
		unit := strings.ToLower(strings.TrimSpace(*req.Unit))
		if !domain.IsSupportedUnit(unit) {
			return domain.ProductVariant{}, fmt.Errorf("%w: unsupported unit %q", domain.ErrValidation, unit)
		}
		updated.Unit = unit
	}

	saved, err := s.repo.UpdateVariant(ctx, updated)
	if err != nil {
		return domain.ProductVariant{}, err
	}

	if !existing.Price.Equal(saved.Price) {
		if err := s.repo.CreatePriceHistory(ctx, domain.VariantPriceHistory{
			ID:        xid.New("ph"),
			VariantID: saved.ID,
			OldPrice:  existing.Price,
			NewPrice:  saved.Price,
			ChangedBy: actor.Username,
			ChangedAt: time.Now().UTC(),
		}); err != nil {
			log.Printf("[service] WARN: failed to record price history variant=%s: %v", saved.ID, err)
		}
	}

	s.logAudit(ctx, "variant_update", "variant", saved.ID, fmt.Sprintf("name=%s,price=%s,unit=%s", saved.Name, saved.Price, saved.Unit))
	return *saved, nil
}

func (s *Service) DeleteVariant(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	id, err := requireID("variant", id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteVariant(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "variant_delete", "variant", id, "deleted")
	return nil
}

func (s *Service) ListPriceHistory(ctx context.Context, variantID string, limit int) ([]domain.VariantPriceHistory, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	variantID, err := requireID("variant", variantID)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 50
	}
	return s.repo.ListPriceHistory(ctx, variantID, limit)
}

// CorrectStock overwrites the stock counter with a physically counted value. The manager
// PIN is checked by the caller before this runs.
func (s *Service) CorrectStock(ctx context.Context, variantID string, req domain.StockCorrectionRequest) (domain.StockCorrection, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.StockCorrection{}, err
	}
	variantID, err := requireID("variant", variantID)
	if err != nil {
		return domain.StockCorrection{}, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		return domain.StockCorrection{}, fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}
	if req.CountedStock.IsNegative() {
		return domain.StockCorrection{}, fmt.Errorf("%w: counted stock must not be negative", domain.ErrValidation)
	}
	if err := domain.CheckQuantity("counted stock", req.CountedStock); err != nil {
		return domain.StockCorrection{}, err
	}

	correction, err := s.repo.CorrectStock(ctx, variantID, req.CountedStock)
	if err != nil {
		return domain.StockCorrection{}, err
	}
	correction.Reason = req.Reason

	s.logAudit(ctx, "stock_correction", "variant", variantID, fmt.Sprintf("previous=%s,counted=%s,delta=%s,reason=%s", correction.PreviousStock, correction.CountedStock, correction.Delta, req.Reason))
	return *correction, nil
}
