package controllers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/controllers"
	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/models"
	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/routes"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/auth"
	apperrors "github.com/Williethedeveloper/e-commerce-microservices/services/common/errors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockCartService struct{ mock.Mock }

func (m *MockCartService) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartService) AddItem(ctx context.Context, userID string, req models.AddItemRequest) (*models.Cart, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartService) RemoveItem(ctx context.Context, userID, productID string) (*models.Cart, error) {
	args := m.Called(ctx, userID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartService) ClearCart(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func setupRouter(svc *MockCartService) *gin.Engine {
	r := gin.New()
	gate := auth.NewGate(auth.VerifierFunc(func(_ context.Context, token string) (string, error) {
		if token == "good" {
			return "u1", nil
		}
		return "", auth.ErrRejected
	}), time.Second)
	routes.RegisterCartRoutes(r, controllers.NewCartController(svc), gate, nil)
	return r
}

func do(r http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer good")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetCart(t *testing.T) {
	svc := new(MockCartService)
	cart := models.NewCart("u1")
	cart.Add("p1", 2, decimal.RequireFromString("10"))
	svc.On("GetCart", mock.Anything, "u1").Return(cart, nil)

	w := do(setupRouter(svc), http.MethodGet, "/cart", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"productId":"p1"`)
	assert.Contains(t, w.Body.String(), `"price":10`)
}

func TestCartRoutes_RequireAuth(t *testing.T) {
	svc := new(MockCartService)
	r := setupRouter(svc)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/cart"},
		{http.MethodPost, "/cart/add"},
		{http.MethodDelete, "/cart/remove/p1"},
		{http.MethodDelete, "/cart/clear"},
	} {
		w := do(r, tc.method, tc.path, "", false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
	}
	svc.AssertExpectations(t)
}

func TestAddItem(t *testing.T) {
	svc := new(MockCartService)
	svc.On("AddItem", mock.Anything, "u1", models.AddItemRequest{ProductID: "p1", Quantity: 2}).
		Return(models.NewCart("u1"), nil)
	svc.On("AddItem", mock.Anything, "u1", models.AddItemRequest{ProductID: "p9", Quantity: 1}).
		Return(nil, apperrors.Validation("Insufficient stock"))
	r := setupRouter(svc)

	w := do(r, http.MethodPost, "/cart/add", `{"productId":"p1","quantity":2}`, true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/cart/add", `{"productId":"p9","quantity":1}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Insufficient stock"}`, w.Body.String())

	w = do(r, http.MethodPost, "/cart/add", `{"productId":"p1","quantity":0}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid payload"}`, w.Body.String())
}

func TestRemoveItemAndClear(t *testing.T) {
	svc := new(MockCartService)
	svc.On("RemoveItem", mock.Anything, "u1", "p1").Return(models.NewCart("u1"), nil)
	svc.On("ClearCart", mock.Anything, "u1").Return(nil).Once()
	svc.On("ClearCart", mock.Anything, "u1").Return(apperrors.Internal("Failed to clear cart", errors.New("redis"))).Once()
	r := setupRouter(svc)

	w := do(r, http.MethodDelete, "/cart/remove/p1", "", true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodDelete, "/cart/clear", "", true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodDelete, "/cart/clear", "", true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to clear cart"}`, w.Body.String())
	svc.AssertExpectations(t)
}
