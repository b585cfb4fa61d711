package service

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"grocertrack/backend/internal/domain"
)

const topCreditCustomers = 3

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	variants, err := s.repo.ListVariants(ctx, "")
	if err != nil {
		return domain.DashboardStats{}, err
	}
	customers, err := s.repo.ListCustomers(ctx, domain.CustomerQuery{Sort: domain.CustomerSortBalanceDesc})
	if err != nil {
		return domain.DashboardStats{}, err
	}

	stats := domain.DashboardStats{
		TotalProductVariants:   len(variants),
		TotalCustomers:         customers.Total,
		TotalOutstandingCredit: decimal.Zero,
	}

	slices.SortStableFunc(variants, func(a, b domain.ProductVariant) int {
		return a.CurrentStock.Cmp(b.CurrentStock)
	})
	stats.LowStockItems = variants[:min(s.lowStockLimit, len(variants))]

	stats.TopCustomersByCredit = make([]domain.CustomerCredit, 0, topCreditCustomers)
	for _, c := range customers.Customers {
		stats.TotalOutstandingCredit = stats.TotalOutstandingCredit.Add(c.Balance)
		if len(stats.TopCustomersByCredit) < topCreditCustomers && c.Balance.IsPositive() {
			stats.TopCustomersByCredit = append(stats.TopCustomersByCredit, domain.CustomerCredit{
				ID:      c.ID,
				Name:    c.Name,
				Balance: c.Balance,
			})
		}
	}
	return stats, nil
}
