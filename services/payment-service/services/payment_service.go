package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Williethedeveloper/e-commerce-microservices/services/common/errors"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/logger"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/metrics"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/models"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/repository"
	"go.uber.org/zap"
)

// EventPublisher announces settled payments. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event models.PaymentEvent) error
}

type PaymentService interface {
	// CreatePayment charges req.UserID. With a non-empty idempotency key a
	// repeated request returns the first payment and replayed=true.
	CreatePayment(ctx context.Context, req models.CreatePaymentRequest, idempotencyKey string) (payment *models.Payment, replayed bool, err error)
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	// ApplyProviderUpdate settles a payment the provider reported on later.
	ApplyProviderUpdate(ctx context.Context, update IntentUpdate) error
}

type Options struct {
	DefaultCurrency string
	Events          EventPublisher
	Metrics         *metrics.Registry
	Now             func() time.Time
}

type paymentService struct {
	repo    repository.PaymentRepository
	charger Charger
	opts    Options
}

func NewPaymentService(repo repository.PaymentRepository, charger Charger, opts Options) PaymentService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "usd"
	}
	return &paymentService{repo: repo, charger: charger, opts: opts}
}

const (
	msgProviderDown = "Payment provider unavailable"
	msgRecordFailed = "Failed to record payment"
)

var errKeyReused = apperrors.New(apperrors.KindValidation, http.StatusConflict, "Idempotency key reused with a different request", false, nil)

func (s *paymentService) CreatePayment(ctx context.Context, req models.CreatePaymentRequest, idempotencyKey string) (*models.Payment, bool, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return nil, false, apperrors.Validation("userId is required")
	}
	if !req.Amount.IsPositive() {
		return nil, false, apperrors.Validation("Amount must be greater than zero")
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.opts.DefaultCurrency
	}

	if idempotencyKey != "" {
		if prior, err := s.replay(ctx, req, idempotencyKey); err != nil || prior != nil {
			return prior, prior != nil, err
		}
	}

	payment := &models.Payment{
		PaymentID: NewPaymentID(s.opts.Now()),
		UserID:    req.UserID,
		Amount:    req.Amount.Round(2),
		Currency:  currency,
		Status:    models.PaymentStatusPending,
		Provider:  s.charger.Name(),
	}
	if idempotencyKey != "" {
		payment.IdempotencyKey = &idempotencyKey
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) && idempotencyKey != "" {
			// Lost the race to a concurrent request with the same key.
			prior, rerr := s.replay(ctx, req, idempotencyKey)
			if rerr == nil && prior != nil {
				return prior, true, nil
			}
		}
		logger.Error(ctx, "Failed to record payment", err, zap.String("user_id", req.UserID))
		return nil, false, apperrors.New(apperrors.KindPersistence, http.StatusInternalServerError, msgRecordFailed, true, err)
	}

	start := time.Now()
	outcome, err := s.charger.Charge(ctx, ChargeInput{
		PaymentID: payment.PaymentID,
		UserID:    payment.UserID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
	})
	s.opts.Metrics.ObserveCall(s.charger.Name(), "charge", err == nil, time.Since(start))

	// The provider has answered; what follows must land even if the caller left.
	ctx = context.WithoutCancel(ctx)

	if errors.Is(err, ErrDeclined) {
		payment.Status = models.PaymentStatusFailed
		s.settle(ctx, payment, nil)
		logger.Warn(ctx, "Payment declined", zap.String("payment_id", payment.PaymentID), zap.Error(err))
		return nil, false, apperrors.New(apperrors.KindUpstream, http.StatusPaymentRequired, "Payment declined", false, err)
	}
	if err != nil {
		// Outcome unknown. The row stays pending until the provider reports.
		logger.Error(ctx, "Payment provider call failed", err, zap.String("payment_id", payment.PaymentID))
		return nil, false, apperrors.New(apperrors.KindUpstream, http.StatusBadGateway, msgProviderDown, true, err)
	}

	payment.Status = outcome.Status
	var ref *string
	if outcome.ProviderRef != "" {
		ref = &outcome.ProviderRef
		payment.ProviderRef = ref
	}
	s.settle(ctx, payment, ref)

	logger.Info(ctx, "Payment processed",
		zap.String("payment_id", payment.PaymentID),
		zap.String("user_id", payment.UserID),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("status", string(payment.Status)),
	)
	return payment, false, nil
}

// replay returns the payment stored under key, or nil when there is none.
func (s *paymentService) replay(ctx context.Context, req models.CreatePaymentRequest, key string) (*models.Payment, error) {
	prior, err := s.repo.FindByIdempotencyKey(ctx, key)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.New(apperrors.KindPersistence, http.StatusInternalServerError, msgRecordFailed, true, err)
	}
	if prior.UserID != req.UserID || !prior.Amount.Equal(req.Amount.Round(2)) {
		return nil, errKeyReused
	}
	logger.Info(ctx, "Replaying payment for idempotency key", zap.String("payment_id", prior.PaymentID))
	return prior, nil
}

// settle stores the charge outcome and announces it. A failed write is logged
// and the outcome still returned: the provider already holds the truth and the
// webhook will repair the row.
func (s *paymentService) settle(ctx context.Context, payment *models.Payment, ref *string) {
	if err := s.repo.UpdateStatus(ctx, payment.PaymentID, payment.Status, ref, nil); err != nil {
		logger.Error(ctx, "Failed to store payment outcome", err,
			zap.String("payment_id", payment.PaymentID),
			zap.String("status", string(payment.Status)),
		)
	}
	s.publish(ctx, payment)
}

func (s *paymentService) publish(ctx context.Context, payment *models.Payment) {
	if s.opts.Events == nil || payment.Status == models.PaymentStatusPending {
		return
	}
	if err := s.opts.Events.Publish(ctx, models.NewPaymentEvent(payment, s.opts.Now())); err != nil {
		logger.Warn(ctx, "Failed to publish payment event", zap.String("payment_id", payment.PaymentID), zap.Error(err))
	}
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	payment, err := s.repo.FindByPaymentID(ctx, paymentID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, apperrors.NotFound("Payment not found", err)
	}
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch payment", err)
	}
	return payment, nil
}

func (s *paymentService) ApplyProviderUpdate(ctx context.Context, update IntentUpdate) error {
	payment, err := s.repo.FindByProviderRef(ctx, update.IntentID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return apperrors.NotFound("Payment not found", err)
	}
	if err != nil {
		return apperrors.Internal("Failed to fetch payment", err)
	}
	if payment.Status == update.Status {
		return nil
	}
	if payment.Status == models.PaymentStatusCompleted {
		// Completed is terminal; a late failure event is stale.
		logger.Warn(ctx, "Ignoring update for completed payment",
			zap.String("payment_id", payment.PaymentID),
			zap.String("status", string(update.Status)),
		)
		return nil
	}

	payload := string(update.Payload)
	if err := s.repo.UpdateStatus(ctx, payment.PaymentID, update.Status, nil, &payload); err != nil {
		return apperrors.Internal("Failed to update payment", err)
	}
	payment.Status = update.Status
	s.publish(ctx, payment)
	return nil
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewPaymentID returns PAY_<unix-ms>_<9 random base36 chars>.
func NewPaymentID(now time.Time) string {
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	for i := range b {
		b[i] = base36[int(b[i])%len(base36)]
	}
	return "PAY_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(b)
}
