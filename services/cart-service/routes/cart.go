package routes

import (
	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/controllers"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/auth"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterCartRoutes mounts the cart endpoints behind the authentication gate.
// Mutations that hit the catalog are rate limited.
func RegisterCartRoutes(r *gin.Engine, controller *controllers.CartController, gate *auth.Gate, limiter *middleware.RateLimiter) {
	api := r.Group("/cart")
	api.Use(gate.Middleware())
	{
		api.GET("", controller.GetCart)
		if limiter != nil {
			api.POST("/add", limiter.Middleware(), controller.AddItem)
		} else {
			api.POST("/add", controller.AddItem)
		}
		api.DELETE("/remove/:productId", controller.RemoveItem)
		api.DELETE("/clear", controller.ClearCart)
	}
}
