package services

import (
	"context"
	"errors"

	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/database"
	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/models"
	apperrors "github.com/Williethedeveloper/e-commerce-microservices/services/common/errors"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/logger"
	"go.uber.org/zap"
)

// CartRepository is the storage the cart service needs.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	Update(ctx context.Context, userID string, fn func(*models.Cart) error) (*models.Cart, error)
	DeleteCart(ctx context.Context, userID string) error
}

// CartService defines the interface for cart business logic.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	AddItem(ctx context.Context, userID string, req models.AddItemRequest) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (*models.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

type cartServiceImpl struct {
	repo    CartRepository
	catalog Catalog
}

func NewCartService(repo CartRepository, catalog Catalog) CartService {
	return &cartServiceImpl{repo: repo, catalog: catalog}
}

var errInsufficientStock = errors.New("insufficient stock")

func (s *cartServiceImpl) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		logger.Error(ctx, "get cart failed", err, zap.String("user_id", userID))
		return nil, apperrors.Internal("Failed to get cart", err)
	}
	if cart == nil {
		cart = models.NewCart(userID)
	}
	return cart, nil
}

// AddItem prices the product from the catalog once and merges it into the
// cart. The resulting quantity may not exceed catalog stock.
func (s *cartServiceImpl) AddItem(ctx context.Context, userID string, req models.AddItemRequest) (*models.Cart, error) {
	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if errors.Is(err, ErrProductNotFound) {
		return nil, apperrors.Validation("Product not found")
	}
	if err != nil {
		logger.Warn(ctx, "catalog lookup failed", zap.Error(err), zap.String("product_id", req.ProductID))
		return nil, apperrors.Upstream("Failed to fetch product", err)
	}
	if product.Price.IsNegative() {
		return nil, apperrors.Validation("Product has an invalid price")
	}

	cart, err := s.repo.Update(ctx, userID, func(c *models.Cart) error {
		if c.Quantity(req.ProductID)+req.Quantity > product.Stock {
			return errInsufficientStock
		}
		c.Add(req.ProductID, req.Quantity, product.Price)
		return nil
	})
	switch {
	case errors.Is(err, errInsufficientStock):
		return nil, apperrors.Validation("Insufficient stock")
	case errors.Is(err, database.ErrConflict):
		return nil, apperrors.Upstream("Cart is busy, try again", err)
	case err != nil:
		logger.Error(ctx, "save cart failed", err, zap.String("user_id", userID))
		return nil, apperrors.Internal("Failed to save cart", err)
	}
	return cart, nil
}

var errNoCart = errors.New("no cart")

func (s *cartServiceImpl) RemoveItem(ctx context.Context, userID, productID string) (*models.Cart, error) {
	existing, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to update cart", err)
	}
	if existing == nil {
		return nil, apperrors.NotFound("Cart not found", errNoCart)
	}

	cart, err := s.repo.Update(ctx, userID, func(c *models.Cart) error {
		c.Remove(productID)
		return nil
	})
	if err != nil {
		logger.Error(ctx, "remove item failed", err, zap.String("user_id", userID))
		return nil, apperrors.Internal("Failed to update cart", err)
	}
	return cart, nil
}

// ClearCart deletes the cart. Clearing a missing cart succeeds.
func (s *cartServiceImpl) ClearCart(ctx context.Context, userID string) error {
	if err := s.repo.DeleteCart(ctx, userID); err != nil {
		logger.Error(ctx, "clear cart failed", err, zap.String("user_id", userID))
		return apperrors.Internal("Failed to clear cart", err)
	}
	return nil
}
