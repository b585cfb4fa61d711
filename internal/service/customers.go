package service

import (
	"context"
	"fmt"
	"strings"

	"grocertrack/backend/internal/domain"
	"grocertrack/backend/internal/ledger"
	"grocertrack/backend/internal/xid"
)

const maxCustomerPageSize = 200

// ListCustomers runs one directory query. The caller supplies every search, sort and
// paging parameter on each call.
func (s *Service) ListCustomers(ctx context.Context, query domain.CustomerQuery) (domain.CustomerPage, error) {
	query.Search = strings.TrimSpace(query.Search)
	switch query.Sort {
	case "":
		query.Sort = domain.CustomerSortName
	case domain.CustomerSortName, domain.CustomerSortNameDesc, domain.CustomerSortBalance, domain.CustomerSortBalanceDesc:
	default:
		return domain.CustomerPage{}, fmt.Errorf("%w: unsupported sort %q", domain.ErrValidation, query.Sort)
	}
	if query.Page < 0 || query.PageSize < 0 || query.PageSize > maxCustomerPageSize {
		return domain.CustomerPage{}, fmt.Errorf("%w: page and page_size must be within 0..%d", domain.ErrValidation, maxCustomerPageSize)
	}
	if query.Page == 0 {
		query.Page = 1
	}
	return s.repo.ListCustomers(ctx, query)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Mobile = strings.TrimSpace(req.Mobile)
	req.Address = strings.TrimSpace(req.Address)
	if req.Name == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name is required", domain.ErrValidation)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		ID:      xid.New("cust"),
		Name:    req.Name,
		Mobile:  req.Mobile,
		Address: req.Address,
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	id, err := requireID("customer", id)
	if err != nil {
		return domain.Customer{}, err
	}
	c, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *c, nil
}

// CustomerDetail returns the customer's full history with the balance folded from it.
func (s *Service) CustomerDetail(ctx context.Context, id string) (domain.CustomerDetail, error) {
	id, err := requireID("customer", id)
	if err != nil {
		return domain.CustomerDetail{}, err
	}
	detail, err := s.repo.CustomerHistory(ctx, id)
	if err != nil {
		return domain.CustomerDetail{}, err
	}
	detail.Balance = ledger.Balance(detail.Sales, detail.Payments)
	detail.Customer.Balance = detail.Balance
	return *detail, nil
}

// DeleteCustomer removes the customer together with every sale and payment, returning the
// sold stock.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	id, err := requireID("customer", id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "customer_delete", "customer", id, "deleted with history")
	return nil
}
