package routes

import (
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/auth"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/middleware"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/controllers"
	"github.com/gin-gonic/gin"
)

// RegisterOrderRoutes mounts the order endpoints behind the authentication
// gate. Checkouts are additionally rate limited per client IP.
func RegisterOrderRoutes(r *gin.Engine, oc *controllers.OrderController, gate *auth.Gate, limiter *middleware.RateLimiter) {
	orderRoutes := r.Group("/orders")
	orderRoutes.Use(gate.Middleware())

	place := []gin.HandlerFunc{oc.PlaceOrder}
	if limiter != nil {
		place = append([]gin.HandlerFunc{limiter.Middleware()}, place...)
	}
	orderRoutes.POST("", place...)
	orderRoutes.GET("", oc.GetOrders)
	orderRoutes.GET("/:id", oc.GetOrderByID)
}
