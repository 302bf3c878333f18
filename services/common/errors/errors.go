package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind identifies one of the closed set of failure variants a request can end in.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindValidation     Kind = "validation"
	KindUpstream       Kind = "upstream"
	KindPersistence    Kind = "persistence"
	KindCartClear      Kind = "cart_clear"
	KindNotFound       Kind = "not_found"
	KindInternal       Kind = "internal"
)

// Error represents an application error. Only Message reaches the wire.
type Error struct {
	Kind      Kind   `json:"-"`
	Code      int    `json:"-"`
	Message   string `json:"error"`
	Retryable bool   `json:"-"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Is matches errors of the same kind so callers can test with
// errors.Is(err, errors.ErrUnauthorized) and friends.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a new Error
func New(kind Kind, code int, message string, retryable bool, err error) *Error {
	return &Error{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Err:       err,
	}
}

// Authentication is returned for a missing, malformed or rejected credential
// and for a verifier that could not be reached in time.
func Authentication(err error) *Error {
	return New(KindAuthentication, http.StatusUnauthorized, "Unauthorized", false, err)
}

func Validation(message string) *Error {
	return New(KindValidation, http.StatusBadRequest, message, false, nil)
}

// Upstream wraps a collaborator failure. The caller may retry once the
// collaborator recovers.
func Upstream(message string, err error) *Error {
	return New(KindUpstream, http.StatusBadRequest, message, true, err)
}

// Persistence means money may already have moved. It is never retryable from
// the caller's side.
func Persistence(message string, err error) *Error {
	return New(KindPersistence, http.StatusBadRequest, message, false, err)
}

// CartClear is recorded when the cart could not be emptied after the order was
// stored. It is never rendered to the client.
func CartClear(err error) *Error {
	return New(KindCartClear, http.StatusOK, "Failed to clear cart", false, err)
}

func NotFound(message string, err error) *Error {
	return New(KindNotFound, http.StatusNotFound, message, false, err)
}

// Unavailable is a failed read or an unexpected state on a route that reports
// every non-authentication failure as 400. Kind stays internal for logs and
// metrics.
func Unavailable(message string, err error) *Error {
	return New(KindInternal, http.StatusBadRequest, message, true, err)
}

func Internal(message string, err error) *Error {
	return New(KindInternal, http.StatusInternalServerError, message, false, err)
}

// Sentinels for errors.Is comparisons by kind.
var (
	ErrUnauthorized = &Error{Kind: KindAuthentication}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrUpstream     = &Error{Kind: KindUpstream}
	ErrPersistence  = &Error{Kind: KindPersistence}
	ErrCartClear    = &Error{Kind: KindCartClear}
	ErrNotFound     = &Error{Kind: KindNotFound}
)

// From extracts the application error from err, classifying anything else as
// internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// KindOf reports the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	return From(err).Kind
}

// Abort records err on c and ends the request with its {"error": "..."} body.
func Abort(c *gin.Context, err error) {
	appErr := From(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.Code, appErr)
}
