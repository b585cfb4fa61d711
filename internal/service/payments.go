package service

import (
	"context"
	"fmt"
	"strings"

	"grocertrack/backend/internal/domain"
	"grocertrack/backend/internal/xid"
)

// RecordPayment stores a payment against a customer. Paying more than is owed is allowed
// and leaves a negative balance.
func (s *Service) RecordPayment(ctx context.Context, req domain.PaymentCreateRequest) (domain.Payment, error) {
	customerID, err := requireID("customer", req.CustomerID)
	if err != nil {
		return domain.Payment{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.Payment{}, fmt.Errorf("%w: amount must be greater than zero", domain.ErrValidation)
	}
	if err := domain.CheckMoney("amount", req.Amount); err != nil {
		return domain.Payment{}, err
	}

	payment, err := s.repo.CreatePayment(ctx, domain.Payment{
		ID:         xid.New("pay"),
		CustomerID: customerID,
		Amount:     req.Amount,
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.logAudit(ctx, "payment_create", "payment", payment.ID, fmt.Sprintf("customer=%s,amount=%s", payment.CustomerID, payment.Amount.StringFixed(2)))
	return *payment, nil
}

// EditPayment changes the amount only; the payment date is immutable.
func (s *Service) EditPayment(ctx context.Context, paymentID string, req domain.PaymentUpdateRequest) (domain.Payment, error) {
	paymentID, err := requireID("payment", paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.Payment{}, fmt.Errorf("%w: amount must be greater than zero", domain.ErrValidation)
	}
	if err := domain.CheckMoney("amount", req.Amount); err != nil {
		return domain.Payment{}, err
	}

	payment, err := s.repo.UpdatePaymentAmount(ctx, paymentID, req.Amount)
	if err != nil {
		return domain.Payment{}, err
	}

	s.logAudit(ctx, "payment_edit", "payment", payment.ID, "amount="+payment.Amount.StringFixed(2))
	return *payment, nil
}

func (s *Service) DeletePayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Payment{}, err
	}
	paymentID, err := requireID("payment", paymentID)
	if err != nil {
		return domain.Payment{}, err
	}

	payment, err := s.repo.DeletePayment(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}

	s.logAudit(ctx, "payment_delete", "payment", payment.ID, fmt.Sprintf("customer=%s,amount=%s", payment.CustomerID, payment.Amount.StringFixed(2)))
	return *payment, nil
}

func (s *Service) ListPayments(ctx context.Context, customerID string) ([]domain.Payment, error) {
	return s.repo.ListPayments(ctx, strings.TrimSpace(customerID))
}
