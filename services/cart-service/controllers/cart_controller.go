package controllers

import (
	"net/http"

	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/models"
	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/services"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/auth"
	apperrors "github.com/Williethedeveloper/e-commerce-microservices/services/common/errors"
	"github.com/gin-gonic/gin"
)

type CartController struct {
	service services.CartService
}

func NewCartController(service services.CartService) *CartController {
	return &CartController{service: service}
}

// GetCart returns the current cart for a user
func (cc *CartController) GetCart(c *gin.Context) {
	userID, err := auth.GetUserID(c)
	if err != nil {
		apperrors.Abort(c, apperrors.Authentication(err))
		return
	}

	cart, err := cc.service.GetCart(c.Request.Context(), userID)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// AddItem adds or updates an item in the cart
func (cc *CartController) AddItem(c *gin.Context) {
	userID, err := auth.GetUserID(c)
	if err != nil {
		apperrors.Abort(c, apperrors.Authentication(err))
		return
	}

	var req models.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Abort(c, apperrors.Validation("Invalid payload"))
		return
	}

	cart, err := cc.service.AddItem(c.Request.Context(), userID, req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// RemoveItem removes a specific item from the cart
func (cc *CartController) RemoveItem(c *gin.Context) {
	userID, err := auth.GetUserID(c)
	if err != nil {
		apperrors.Abort(c, apperrors.Authentication(err))
		return
	}

	cart, err := cc.service.RemoveItem(c.Request.Context(), userID, c.Param("productId"))
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// ClearCart removes all items from the cart
func (cc *CartController) ClearCart(c *gin.Context) {
	userID, err := auth.GetUserID(c)
	if err != nil {
		apperrors.Abort(c, apperrors.Authentication(err))
		return
	}

	if err := cc.service.ClearCart(c.Request.Context(), userID); err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
