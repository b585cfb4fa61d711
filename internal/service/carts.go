package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"grocertrack/backend/internal/cart"
	"grocertrack/backend/internal/domain"
	"grocertrack/backend/internal/xid"
)

// CartView is a cart as returned to clients, with its running total.
type CartView struct {
	cart.Cart
	Total decimal.Decimal `json:"total"`
}

func viewOf(c *cart.Cart) CartView {
	return CartView{Cart: *c, Total: c.Total()}
}

func (s *Service) OpenCart(ctx context.Context, req domain.CartOpenRequest) (CartView, error) {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID != "" {
		if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
			return CartView{}, err
		}
	}

	c := cart.New(xid.New("cart"), customerID)
	if err := s.saveCart(ctx, c); err != nil {
		return CartView{}, err
	}
	return viewOf(c), nil
}

func (s *Service) GetCart(ctx context.Context, cartID string) (CartView, error) {
	c, err := s.loadCart(ctx, cartID)
	if err != nil {
		return CartView{}, err
	}
	return viewOf(c), nil
}

// AddCartLine resolves the variant against the catalog and appends a line. The price is
// copied into the cart, from the request or else from the catalog.
func (s *Service) AddCartLine(ctx context.Context, cartID string, req domain.CartLineRequest) (CartView, error) {
	c, err := s.loadCart(ctx, cartID)
	if err != nil {
		return CartView{}, err
	}

	variantID := strings.TrimSpace(req.VariantID)
	if variantID == "" {
		return CartView{}, fmt.Errorf("%w: variant is required", domain.ErrValidation)
	}
	variants, err := s.repo.GetVariantsByIDs(ctx, []string{variantID})
	if err != nil {
		return CartView{}, err
	}
	v, ok := variants[variantID]
	if !ok {
		return CartView{}, fmt.Errorf("%w: unknown variant %s", domain.ErrValidation, variantID)
	}

	price := v.Price
	if req.Price != nil {
		price = *req.Price
	}
	if err := c.AddLine(v.ID, v.DisplayName(), req.Quantity, price); err != nil {
		return CartView{}, err
	}
	if err := s.saveCart(ctx, c); err != nil {
		return CartView{}, err
	}
	return viewOf(c), nil
}

func (s *Service) UpdateCartLine(ctx context.Context, cartID string, index int, req domain.CartLineUpdateRequest) (CartView, error) {
	c, err := s.loadCart(ctx, cartID)
	if err != nil {
		return CartView{}, err
	}
	if err := c.UpdateLine(index, strings.ToLower(strings.TrimSpace(req.Field)), req.Value); err != nil {
		return CartView{}, err
	}
	if err := s.saveCart(ctx, c); err != nil {
		return CartView{}, err
	}
	return viewOf(c), nil
}

func (s *Service) RemoveCartLine(ctx context.Context, cartID string, index int) (CartView, error) {
	c, err := s.loadCart(ctx, cartID)
	if err != nil {
		return CartView{}, err
	}
	if err := c.RemoveLine(index); err != nil {
		return CartView{}, err
	}
	if err := s.saveCart(ctx, c); err != nil {
		return CartView{}, err
	}
	return viewOf(c), nil
}

func (s *Service) ClearCart(ctx context.Context, cartID string) (CartView, error) {
	c, err := s.loadCart(ctx, cartID)
	if err != nil {
		return CartView{}, err
	}
	c.Clear()
	if err := s.saveCart(ctx, c); err != nil {
		return CartView{}, err
	}
	return viewOf(c), nil
}

func (s *Service) DiscardCart(ctx context.Context, cartID string) error {
	c, err := s.loadCart(ctx, cartID)
	if err != nil {
		return err
	}
	if err := s.carts.Delete(ctx, c.ID); err != nil {
		return fmt.Errorf("%w: discard cart: %v", domain.ErrStore, err)
	}
	return nil
}

// CommitCart turns the cart into a sale. The session is removed only after the sale is
// stored; a failed commit leaves the cart untouched for another attempt.
func (s *Service) CommitCart(ctx context.Context, cartID string, req domain.CartCommitRequest) (domain.Sale, error) {
	c, err := s.loadCart(ctx, cartID)
	if err != nil {
		return domain.Sale{}, err
	}
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		customerID = c.CustomerID
	}
	if c.Len() == 0 {
		return domain.Sale{}, fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}

	sale, err := s.CommitSale(ctx, domain.SaleCreateRequest{
		CustomerID: customerID,
		Items:      c.SaleLines(),
	})
	if err != nil {
		return domain.Sale{}, err
	}

	c.Clear()
	if err := s.carts.Delete(ctx, c.ID); err != nil {
		log.Printf("[service] WARN: sale %s committed but cart %s was not removed: %v", sale.ID, c.ID, err)
	}
	return sale, nil
}

func (s *Service) loadCart(ctx context.Context, cartID string) (*cart.Cart, error) {
	cartID, err := requireID("cart", cartID)
	if err != nil {
		return nil, err
	}
	c, ok, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("%w: load cart: %v", domain.ErrStore, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: cart %s", domain.ErrNotFound, cartID)
	}
	return c, nil
}

func (s *Service) saveCart(ctx context.Context, c *cart.Cart) error {
	if err := s.carts.Set(ctx, c, s.cartTTL); err != nil {
		return fmt.Errorf("%w: save cart: %v", domain.ErrStore, err)
	}
	return nil
}
