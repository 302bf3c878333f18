package services

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/Williethedeveloper/e-commerce-microservices/services/common/errors"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/models"
	"github.com/shopspring/decimal"
)

// State is a checkout's position in the placement sequence.
type State string

const (
	StateStart            State = "start"
	StateIdentityVerified State = "identity_verified"
	StateCartFetched      State = "cart_fetched"
	StateTotalComputed    State = "total_computed"
	StatePaymentConfirmed State = "payment_confirmed"
	StateOrderPersisted   State = "order_persisted"
	StateCartCleared      State = "cart_cleared"
	StateFailed           State = "failed"
)

// Step names the stage a checkout failed at.
type Step string

const (
	StepAuth        Step = "auth"
	StepCart        Step = "cart"
	StepValidation  Step = "validation"
	StepPayment     Step = "payment"
	StepPersistence Step = "persistence"
	StepCartClear   Step = "cart_clear"
)

type EventKind int

const (
	EventIdentityVerified EventKind = iota + 1
	EventCartFetched
	EventTotalComputed
	EventPaymentConfirmed
	EventOrderPersisted
	EventCartCleared
	EventStepFailed
)

// Event is the result of performing an Effect, fed back into Transition.
type Event struct {
	Kind      EventKind
	Principal string
	Cart      *models.CartSnapshot
	Receipt   *models.PaymentReceipt
	Order     *models.Order
	Err       error
}

type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectVerifyIdentity
	EffectFetchCart
	EffectComputeTotal
	EffectCharge
	EffectPersistOrder
	EffectClearCart
	EffectRespond
	EffectAbort
)

// Effect is the side effect the driver must perform next.
type Effect struct {
	Kind   EffectKind
	Amount decimal.Decimal
	// Order is the draft to persist for EffectPersistOrder and the stored
	// order for EffectRespond.
	Order *models.Order
	Err   *apperrors.Error
}

// Saga holds everything a checkout has learned so far. It is a value: every
// Transition returns a new one.
type Saga struct {
	State      State
	Principal  string
	Items      models.LineItems
	Total      decimal.Decimal
	Receipt    *models.PaymentReceipt
	Order      *models.Order
	FailedStep Step
	Err        *apperrors.Error
	// CartClearErr is set when the order completed but the cart could not be
	// emptied.
	CartClearErr *apperrors.Error
}

const cartEmptyMessage = "Cart is empty"

var (
	errNoPrincipal     = errors.New("no verified principal")
	errNoReceipt       = errors.New("payment processor returned no payment id")
	errUnexpectedEvent = errors.New("unexpected event for state")
	errAmountMismatch  = errors.New("payment amount mismatch")
)

// Begin returns a fresh saga and its first effect.
func Begin() (Saga, Effect) {
	return Saga{State: StateStart}, Effect{Kind: EffectVerifyIdentity}
}

func (s Saga) Terminal() bool {
	return s.State == StateCartCleared || s.State == StateFailed
}

// Transition is the whole placement state machine. It performs no I/O.
func Transition(s Saga, ev Event) (Saga, Effect) {
	if s.Terminal() {
		return s, Effect{Kind: EffectNone}
	}

	if ev.Kind == EventStepFailed {
		return onFailure(s, ev.Err)
	}

	switch {
	case s.State == StateStart && ev.Kind == EventIdentityVerified:
		if ev.Principal == "" {
			return fail(s, StepAuth, apperrors.Authentication(errNoPrincipal))
		}
		s.State = StateIdentityVerified
		s.Principal = ev.Principal
		return s, Effect{Kind: EffectFetchCart}

	case s.State == StateIdentityVerified && ev.Kind == EventCartFetched:
		if ev.Cart == nil || ev.Cart.IsEmpty() {
			return fail(s, StepValidation, apperrors.Validation(cartEmptyMessage))
		}
		for _, it := range ev.Cart.Items {
			if it.ProductID == "" || it.Quantity <= 0 || it.Price.IsNegative() {
				return fail(s, StepValidation, apperrors.Validation("Cart contains an invalid item"))
			}
			if !models.HasMoneyScale(it.Price) {
				return fail(s, StepValidation, apperrors.Validation("Cart contains an invalid price"))
			}
		}
		items := ev.Cart.Freeze()
		if models.ComputeTotal(items).GreaterThanOrEqual(models.MaxTotal) {
			return fail(s, StepValidation, apperrors.Validation("Order total is too large"))
		}
		s.State = StateCartFetched
		s.Items = items
		return s, Effect{Kind: EffectComputeTotal}

	case s.State == StateCartFetched && ev.Kind == EventTotalComputed:
		s.State = StateTotalComputed
		// Prices carry at most two places, so the sum is exact at that scale.
		s.Total = models.ComputeTotal(s.Items)
		return s, Effect{Kind: EffectCharge, Amount: s.Total}

	case s.State == StateTotalComputed && ev.Kind == EventPaymentConfirmed:
		if ev.Receipt == nil || ev.Receipt.PaymentID == "" {
			return fail(s, StepPayment, apperrors.Upstream("Payment failed", errNoReceipt))
		}
		if !ev.Receipt.Amount.Equal(s.Total) {
			// Money moved, just not the amount the order records. Treat it like
			// a lost write so the key stays charged and the payment is flagged.
			s.Receipt = ev.Receipt
			return fail(s, StepPersistence, apperrors.Persistence("Payment amount did not match the order total",
				fmt.Errorf("%w: charged %s, expected %s", errAmountMismatch, ev.Receipt.Amount.String(), s.Total.StringFixed(2))))
		}
		s.State = StatePaymentConfirmed
		s.Receipt = ev.Receipt
		draft := &models.Order{
			UserID:    s.Principal,
			Items:     s.Items,
			Total:     s.Total,
			PaymentID: ev.Receipt.PaymentID,
			Status:    models.OrderStatusConfirmed,
		}
		return s, Effect{Kind: EffectPersistOrder, Order: draft}

	case s.State == StatePaymentConfirmed && ev.Kind == EventOrderPersisted:
		s.State = StateOrderPersisted
		s.Order = ev.Order
		return s, Effect{Kind: EffectClearCart}

	case s.State == StateOrderPersisted && ev.Kind == EventCartCleared:
		s.State = StateCartCleared
		return s, Effect{Kind: EffectRespond, Order: s.Order}
	}

	return fail(s, stepOf(s.State), unexpected(errUnexpectedEvent))
}

// onFailure classifies a collaborator failure by the state it happened in.
func onFailure(s Saga, err error) (Saga, Effect) {
	switch s.State {
	case StateStart:
		return fail(s, StepAuth, apperrors.Authentication(err))
	case StateIdentityVerified:
		return fail(s, StepCart, keepOr(err, apperrors.KindUpstream, func() *apperrors.Error {
			return apperrors.Upstream("Failed to fetch cart", err)
		}))
	case StateTotalComputed:
		return fail(s, StepPayment, keepOr(err, apperrors.KindUpstream, func() *apperrors.Error {
			return apperrors.Upstream("Payment failed", err)
		}))
	case StatePaymentConfirmed:
		return fail(s, StepPersistence, apperrors.Persistence("Payment was captured but the order could not be recorded", err))
	case StateOrderPersisted:
		// The order stands. A cart that could not be emptied is recorded, not
		// reported to the caller.
		s.State = StateCartCleared
		s.CartClearErr = apperrors.CartClear(err)
		return s, Effect{Kind: EffectRespond, Order: s.Order}
	}
	return fail(s, stepOf(s.State), unexpected(err))
}

func unexpected(err error) *apperrors.Error {
	return apperrors.New(apperrors.KindInternal, http.StatusBadRequest, "Order could not be placed", false, err)
}

// keepOr returns err unchanged when it is already a classified error of kind,
// otherwise the wrapped fallback.
func keepOr(err error, kind apperrors.Kind, fallback func() *apperrors.Error) *apperrors.Error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Kind == kind {
		return appErr
	}
	return fallback()
}

func fail(s Saga, step Step, err *apperrors.Error) (Saga, Effect) {
	s.State = StateFailed
	s.FailedStep = step
	s.Err = err
	return s, Effect{Kind: EffectAbort, Err: err}
}

func stepOf(state State) Step {
	switch state {
	case StateStart:
		return StepAuth
	case StateIdentityVerified:
		return StepCart
	case StateCartFetched:
		return StepValidation
	case StateTotalComputed:
		return StepPayment
	case StatePaymentConfirmed:
		return StepPersistence
	default:
		return StepCartClear
	}
}
