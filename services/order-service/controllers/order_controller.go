package controllers

import (
	"net/http"
	"strings"

	"github.com/Williethedeveloper/e-commerce-microservices/services/common/auth"
	apperrors "github.com/Williethedeveloper/e-commerce-microservices/services/common/errors"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/services"
	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader opts a checkout into duplicate protection.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// OrderController handles HTTP requests for order operations.
type OrderController struct {
	orderService services.OrderService
}

// NewOrderController creates a new OrderController.
func NewOrderController(orderService services.OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

// PlaceOrder handles POST /orders. The request body is ignored; the order is
// built from the caller's cart.
func (oc *OrderController) PlaceOrder(ctx *gin.Context) {
	userID, err := auth.GetUserID(ctx)
	if err != nil {
		abort(ctx, apperrors.Authentication(err))
		return
	}
	credential, _ := auth.CredentialFrom(ctx.Request.Context())

	key := strings.TrimSpace(ctx.GetHeader(IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		abort(ctx, apperrors.Validation("Idempotency-Key is too long"))
		return
	}

	result, err := oc.orderService.PlaceOrder(ctx.Request.Context(), services.CheckoutRequest{
		Principal:      userID,
		Credential:     credential,
		IdempotencyKey: key,
	})
	if err != nil {
		abort(ctx, err)
		return
	}

	if result.Replayed {
		ctx.Header("Idempotent-Replayed", "true")
	}
	ctx.JSON(http.StatusOK, result.Order)
}

// GetOrders handles GET /orders: the caller's orders, newest first.
func (oc *OrderController) GetOrders(ctx *gin.Context) {
	userID, err := auth.GetUserID(ctx)
	if err != nil {
		abort(ctx, apperrors.Authentication(err))
		return
	}

	orders, err := oc.orderService.ListOrders(ctx.Request.Context(), userID)
	if err != nil {
		abort(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, orders)
}

// GetOrderByID handles GET /orders/:id.
func (oc *OrderController) GetOrderByID(ctx *gin.Context) {
	userID, err := auth.GetUserID(ctx)
	if err != nil {
		abort(ctx, apperrors.Authentication(err))
		return
	}

	order, err := oc.orderService.GetOrder(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		abort(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// abort renders err. Anything but an authentication or lookup failure on these
// routes is a 400.
func abort(ctx *gin.Context, err error) {
	appErr := apperrors.From(err)
	if appErr.Code >= http.StatusInternalServerError {
		appErr = apperrors.Unavailable(appErr.Message, err)
	}
	apperrors.Abort(ctx, appErr)
}
