package invoicesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"syntra-settlement/internal/database/models"
	"syntra-settlement/internal/domain"
	pkgerrors "syntra-settlement/pkg/errors"
)

// Outcome is the terminal result of an invoice attempt.
type Outcome struct {
	Status    domain.InvoiceStatus
	InvoiceNo string
	Error     string
	Response  string
}

// OrderStore persists the invoice state kept on orders.
type OrderStore interface {
	Claim(ctx context.Context, orderNumber string, at time.Time) (bool, error)
	Load(ctx context.Context, orderNumber string) (models.Order, error)
	SaveRequest(ctx context.Context, orderNumber, payload string) error
	Complete(ctx context.Context, orderNumber string, outcome Outcome) error
}

type GormOrderStore struct {
	db *gorm.DB
}

func NewGormOrderStore(db *gorm.DB) *GormOrderStore {
	return &GormOrderStore{db: db}
}

// Claim moves an order from none to pending by setting its attempt time. It
// reports false when the order was already attempted or does not exist.
func (s *GormOrderStore) Claim(ctx context.Context, orderNumber string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_number = ? AND verifone_invoice_attempted_at IS NULL", orderNumber).
		Updates(map[string]interface{}{
			"verifone_invoice_status":       domain.InvoiceStatusPending,
			"verifone_invoice_attempted_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim invoice for %s: %w", orderNumber, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormOrderStore) Load(ctx context.Context, orderNumber string) (models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("AppliedCoupons").
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return order, &pkgerrors.ErrNotFound{Resource: "order", ID: orderNumber}
	}
	if err != nil {
		return order, fmt.Errorf("failed to load order %s: %w", orderNumber, err)
	}
	return order, nil
}

func (s *GormOrderStore) SaveRequest(ctx context.Context, orderNumber, payload string) error {
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_number = ?", orderNumber).
		Update("verifone_invoice_request", payload).Error
	if err != nil {
		return fmt.Errorf("failed to save invoice request for %s: %w", orderNumber, err)
	}
	return nil
}

// Complete records a terminal status. Only pending orders can complete.
func (s *GormOrderStore) Complete(ctx context.Context, orderNumber string, outcome Outcome) error {
	if !domain.InvoiceStatusPending.CanTransitionTo(outcome.Status) {
		return fmt.Errorf("invalid invoice status transition to %q", outcome.Status)
	}

	updates := map[string]interface{}{
		"verifone_invoice_status": outcome.Status,
		"verifone_invoice_no":     nullable(outcome.InvoiceNo),
		"verifone_invoice_error":  nullable(outcome.Error),
	}
	if outcome.Response != "" {
		updates["verifone_invoice_response"] = outcome.Response
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_number = ? AND verifone_invoice_status = ?", orderNumber, domain.InvoiceStatusPending).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to complete invoice for %s: %w", orderNumber, res.Error)
	}
	if res.RowsAffected == 0 {
		return &pkgerrors.ErrConflict{Message: fmt.Sprintf("order %s is not pending", orderNumber)}
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
