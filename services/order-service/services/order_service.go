package services

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/Williethedeveloper/e-commerce-microservices/services/common/errors"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/logger"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/metrics"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/idempotency"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/models"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutRequest carries what the gate learned about the caller.
type CheckoutRequest struct {
	Principal  string
	Credential string
	// IdempotencyKey is optional. Without it two concurrent checkouts of the
	// same cart both charge.
	IdempotencyKey string
}

// CheckoutResult is a successful checkout. Saga is the final machine state;
// its CartClearErr is set when the cart was left behind.
type CheckoutResult struct {
	Order    *models.Order
	Saga     Saga
	Replayed bool
}

// EventPublisher announces checkout outcomes. Failures are logged and never
// change the response.
type EventPublisher interface {
	Publish(ctx context.Context, evt models.OrderEvent) error
}

// OrderService defines the interface for order business logic.
type OrderService interface {
	PlaceOrder(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error)
}

// Options tune the steps that run after money has moved.
type Options struct {
	// LedgerTimeout bounds each ledger write.
	LedgerTimeout time.Duration
	// PostPaymentAttempts is how many times persisting the order and clearing
	// the cart are tried. Payment itself is never retried.
	PostPaymentAttempts int
	RetryBackoff        time.Duration
	// Idempotency enables Idempotency-Key handling. Nil disables it.
	Idempotency idempotency.Store
	Events      EventPublisher
	Metrics     *metrics.Registry
	Now         func() time.Time
}

type orderServiceImpl struct {
	cart     CartStore
	payments PaymentProcessor
	ledger   repository.OrderRepository
	opts     Options
}

// NewOrderService creates a new OrderService.
func NewOrderService(cart CartStore, payments PaymentProcessor, ledger repository.OrderRepository, opts Options) OrderService {
	if opts.PostPaymentAttempts < 1 {
		opts.PostPaymentAttempts = 1
	}
	if opts.LedgerTimeout <= 0 {
		opts.LedgerTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &orderServiceImpl{cart: cart, payments: payments, ledger: ledger, opts: opts}
}

var (
	errCheckoutInProgress = apperrors.New(apperrors.KindValidation, 400, "Checkout already in progress", true, nil)
	errPendingPayment     = errors.New("payment captured, order pending reconciliation")
	errReplayOwner        = errors.New("replayed order belongs to another user")
)

const msgFetchOrders = "Failed to fetch orders"

// PlaceOrder runs one checkout to completion, driving the saga one effect at
// a time.
func (s *orderServiceImpl) PlaceOrder(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	start := time.Now()

	keyed := s.opts.Idempotency != nil && req.IdempotencyKey != "" && req.Principal != ""
	if keyed {
		rec, started, err := s.opts.Idempotency.Begin(ctx, req.Principal, req.IdempotencyKey)
		if err != nil {
			logger.Error(ctx, "idempotency store unavailable", err)
			return nil, apperrors.Upstream("Idempotency store unavailable", err)
		}
		if !started {
			return s.replay(ctx, req.Principal, rec)
		}
	}

	saga, eff := Begin()
	// Once the charge succeeds the remaining steps run to completion even if
	// the caller goes away.
	stepCtx := ctx

	for eff.Kind != EffectRespond && eff.Kind != EffectAbort {
		var ev Event

		switch eff.Kind {
		case EffectVerifyIdentity:
			ev = Event{Kind: EventIdentityVerified, Principal: req.Principal}

		case EffectFetchCart:
			cart, err := s.cart.GetCart(stepCtx, req.Credential)
			if err != nil {
				ev = Event{Kind: EventStepFailed, Err: err}
			} else {
				ev = Event{Kind: EventCartFetched, Cart: cart}
			}

		case EffectComputeTotal:
			ev = Event{Kind: EventTotalComputed}

		case EffectCharge:
			charge := ChargeRequest{Amount: eff.Amount, UserID: saga.Principal}
			if keyed {
				charge.IdempotencyKey = "checkout:" + req.Principal + ":" + req.IdempotencyKey
			}
			receipt, err := s.payments.Charge(stepCtx, charge)
			if err != nil {
				ev = Event{Kind: EventStepFailed, Err: err}
				break
			}
			ev = Event{Kind: EventPaymentConfirmed, Receipt: receipt}
			stepCtx = context.WithoutCancel(ctx)
			if keyed {
				if err := s.opts.Idempotency.MarkCharged(stepCtx, req.Principal, req.IdempotencyKey, receipt.PaymentID); err != nil {
					logger.Warn(ctx, "failed to mark idempotency key charged", zap.Error(err), zap.String("payment_id", receipt.PaymentID))
				}
			}

		case EffectPersistOrder:
			order, err := s.persist(stepCtx, eff.Order)
			if err != nil {
				ev = Event{Kind: EventStepFailed, Err: err}
			} else {
				ev = Event{Kind: EventOrderPersisted, Order: order}
			}

		case EffectClearCart:
			if err := s.clearCart(stepCtx, req.Credential); err != nil {
				ev = Event{Kind: EventStepFailed, Err: err}
			} else {
				ev = Event{Kind: EventCartCleared}
			}
		}

		saga, eff = Transition(saga, ev)
	}

	if eff.Kind == EffectAbort {
		s.onAbort(ctx, stepCtx, req, saga, keyed)
		s.opts.Metrics.ObserveCheckout(string(saga.FailedStep), string(saga.Err.Kind), time.Since(start))
		return nil, saga.Err
	}

	order := eff.Order
	if keyed {
		if err := s.opts.Idempotency.Complete(stepCtx, req.Principal, req.IdempotencyKey, order.PaymentID, order.ID.String()); err != nil {
			logger.Warn(ctx, "failed to complete idempotency key", zap.Error(err), zap.String("order_id", order.ID.String()))
		}
	}

	outcome := "none"
	if saga.CartClearErr != nil {
		outcome = string(apperrors.KindCartClear)
		logger.Error(ctx, "order placed but cart was not cleared", saga.CartClearErr,
			zap.String("order_id", order.ID.String()),
			zap.String("user_id", order.UserID),
		)
		s.publish(stepCtx, models.EventOrderCartClearFailed, order, saga.CartClearErr)
	}
	s.publish(stepCtx, models.EventOrderConfirmed, order, nil)
	s.opts.Metrics.ObserveCheckout("completed", outcome, time.Since(start))

	logger.Info(ctx, "order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_id", order.PaymentID),
		zap.String("total", order.Total.StringFixed(2)),
	)
	return &CheckoutResult{Order: order, Saga: saga}, nil
}

func (s *orderServiceImpl) onAbort(ctx, stepCtx context.Context, req CheckoutRequest, saga Saga, keyed bool) {
	switch saga.FailedStep {
	case StepPersistence:
		// The charge stands. The idempotency record stays at "charged" so a
		// retry cannot pay again.
		logger.Error(ctx, "payment captured but order not recorded", saga.Err,
			zap.String("payment_id", saga.Receipt.PaymentID),
			zap.String("user_id", saga.Principal),
			zap.String("total", saga.Total.StringFixed(2)),
		)
		s.publish(stepCtx, models.EventOrderPersistFailed, &models.Order{
			UserID:    saga.Principal,
			PaymentID: saga.Receipt.PaymentID,
			Total:     saga.Total,
		}, saga.Err)
		return
	case StepPayment:
		logger.Warn(ctx, "payment failed", zap.Error(saga.Err), zap.String("user_id", saga.Principal))
	default:
		logger.Debug(ctx, "checkout rejected",
			zap.String("step", string(saga.FailedStep)),
			zap.String("reason", saga.Err.Message),
		)
	}
	if keyed {
		if err := s.opts.Idempotency.Release(stepCtx, req.Principal, req.IdempotencyKey); err != nil {
			logger.Warn(ctx, "failed to release idempotency key", zap.Error(err))
		}
	}
}

// persist writes the draft with a fresh id. A retry first checks whether the
// previous attempt landed after all.
func (s *orderServiceImpl) persist(ctx context.Context, draft *models.Order) (*models.Order, error) {
	order := *draft
	order.ID = uuid.New()
	order.CreatedAt = s.opts.Now().UTC().Truncate(time.Millisecond)

	var err error
	for attempt := 1; attempt <= s.opts.PostPaymentAttempts; attempt++ {
		if attempt > 1 {
			s.backoff()
			if existing, findErr := s.findOrder(ctx, order.ID); findErr == nil {
				return existing, nil
			}
		}
		writeCtx, cancel := context.WithTimeout(ctx, s.opts.LedgerTimeout)
		start := time.Now()
		err = s.ledger.Create(writeCtx, &order)
		cancel()
		s.opts.Metrics.ObserveCall("ledger", "create", err == nil, time.Since(start))
		if err == nil {
			return &order, nil
		}
		logger.Warn(ctx, "order write failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.String("payment_id", order.PaymentID),
		)
	}
	return nil, err
}

func (s *orderServiceImpl) clearCart(ctx context.Context, credential string) error {
	var err error
	for attempt := 1; attempt <= s.opts.PostPaymentAttempts; attempt++ {
		if attempt > 1 {
			s.backoff()
		}
		if err = s.cart.ClearCart(ctx, credential); err == nil {
			return nil
		}
	}
	return err
}

func (s *orderServiceImpl) backoff() {
	if s.opts.RetryBackoff > 0 {
		time.Sleep(s.opts.RetryBackoff)
	}
}

func (s *orderServiceImpl) findOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.opts.LedgerTimeout)
	defer cancel()
	return s.ledger.FindByID(readCtx, id)
}

// replay answers a request whose Idempotency-Key was seen before.
func (s *orderServiceImpl) replay(ctx context.Context, principal string, rec *idempotency.Record) (*CheckoutResult, error) {
	switch rec.Status {
	case idempotency.StatusCompleted:
		id, err := uuid.Parse(rec.OrderID)
		if err != nil {
			return nil, apperrors.Unavailable(msgFetchOrders, err)
		}
		order, err := s.findOrder(ctx, id)
		if err == nil && order.UserID != principal {
			err = errReplayOwner
		}
		if err != nil {
			logger.Error(ctx, "failed to load replayed order", err, zap.String("order_id", rec.OrderID))
			return nil, apperrors.Unavailable(msgFetchOrders, err)
		}
		return &CheckoutResult{Order: order, Replayed: true}, nil
	case idempotency.StatusCharged:
		return nil, apperrors.Persistence("Payment was captured but the order could not be recorded", errPendingPayment)
	default:
		return nil, errCheckoutInProgress
	}
}

func (s *orderServiceImpl) publish(ctx context.Context, eventType string, order *models.Order, cause error) {
	if s.opts.Events == nil {
		return
	}
	evt := models.OrderEvent{
		Type:           eventType,
		UserID:         order.UserID,
		PaymentID:      order.PaymentID,
		Total:          order.Total,
		OrderCreatedAt: order.CreatedAt,
		Timestamp:      s.opts.Now().UTC(),
	}
	if order.ID != uuid.Nil {
		evt.OrderID = order.ID.String()
	}
	if cause != nil {
		evt.Reason = cause.Error()
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.opts.Events.Publish(pubCtx, evt); err != nil {
		logger.Warn(ctx, "order event not published", zap.Error(err), zap.String("type", eventType))
	}
}

// ListOrders returns the caller's orders, newest first. An empty history is
// an empty slice.
func (s *orderServiceImpl) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.ledger.FindByUserID(ctx, userID)
	if err != nil {
		logger.Error(ctx, "failed to fetch orders", err, zap.String("user_id", userID))
		return nil, apperrors.Unavailable(msgFetchOrders, err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// GetOrder returns one of the caller's orders. Orders belonging to someone
// else read as missing.
func (s *orderServiceImpl) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, apperrors.NotFound("Order not found", repository.ErrOrderNotFound)
	}
	order, err := s.ledger.FindByID(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) || (err == nil && order.UserID != userID) {
		return nil, apperrors.NotFound("Order not found", repository.ErrOrderNotFound)
	}
	if err != nil {
		logger.Error(ctx, "failed to fetch order", err, zap.String("order_id", orderID))
		return nil, apperrors.Unavailable(msgFetchOrders, err)
	}
	return order, nil
}
