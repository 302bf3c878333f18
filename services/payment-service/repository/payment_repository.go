package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/models"
	"gorm.io/gorm"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrDuplicate means a unique column (payment id or idempotency key)
	// already holds the value.
	ErrDuplicate = errors.New("duplicate payment")
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error)
	FindByProviderRef(ctx context.Context, ref string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, paymentID string, status models.PaymentStatus, providerRef, payload *string) error
}

type gormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepo(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepo{db: db}
}

func (r *gormPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	err := r.db.WithContext(ctx).Create(payment).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *gormPaymentRepo) FindByPaymentID(ctx context.Context, paymentID string) (*models.Payment, error) {
	return r.first(ctx, "payment_id = ?", paymentID)
}

func (r *gormPaymentRepo) FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error) {
	return r.first(ctx, "idempotency_key = ?", key)
}

func (r *gormPaymentRepo) FindByProviderRef(ctx context.Context, ref string) (*models.Payment, error) {
	return r.first(ctx, "provider_ref = ?", ref)
}

func (r *gormPaymentRepo) first(ctx context.Context, query string, arg interface{}) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where(query, arg).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateStatus moves a payment to status and stamps the matching
// succeeded_at / failed_at column. updated_at is set by gorm.
func (r *gormPaymentRepo) UpdateStatus(ctx context.Context, paymentID string, status models.PaymentStatus, providerRef, payload *string) error {
	updates := map[string]interface{}{
		"status": status,
	}
	now := time.Now().UTC()
	switch status {
	case models.PaymentStatusCompleted:
		updates["succeeded_at"] = now
	case models.PaymentStatusFailed:
		updates["failed_at"] = now
	}
	if providerRef != nil {
		updates["provider_ref"] = providerRef
	}
	if payload != nil {
		updates["provider_payload"] = payload
	}

	res := r.db.WithContext(ctx).Model(&models.Payment{}).Where("payment_id = ?", paymentID).Updates(updates)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// isUniqueViolation matches SQLSTATE 23505 without importing the pgx error
// types; gorm only translates it when TranslateError is on.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
