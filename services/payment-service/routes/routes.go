package routes

import (
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/middleware"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/controllers"
	"github.com/gin-gonic/gin"
)

// RegisterPaymentRoutes mounts the payment API. It is reached by other
// services, not browsers, so there is no user gate; charges are rate limited.
func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, limiter *middleware.RateLimiter) {
	payments := r.Group("/payments")
	payments.POST("", limiter.Middleware(), pc.CreatePayment)
	payments.GET("/:paymentId", pc.GetPayment)

	// Stripe webhook (signature checked in the handler)
	r.POST("/stripe/webhook", pc.StripeWebhook)
}
