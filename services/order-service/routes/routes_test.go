package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/common/auth"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/middleware"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/controllers"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/models"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/repository"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

type stubCart struct{}

func (stubCart) GetCart(context.Context, string) (*models.CartSnapshot, error) {
	return &models.CartSnapshot{Items: []models.LineItem{{ProductID: "p1", Quantity: 1, Price: decimal.NewFromInt(3)}}}, nil
}

func (stubCart) ClearCart(context.Context, string) error { return nil }

type stubPayments struct{ n int }

func (s *stubPayments) Charge(_ context.Context, req services.ChargeRequest) (*models.PaymentReceipt, error) {
	s.n++
	return &models.PaymentReceipt{PaymentID: fmt.Sprintf("PAY_%d", s.n), Amount: req.Amount, Status: "completed"}, nil
}

func TestRegisterOrderRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	svc := services.NewOrderService(stubCart{}, &stubPayments{}, repository.NewMemoryOrderRepository(), services.Options{})
	gate := auth.NewGate(auth.VerifierFunc(func(context.Context, string) (string, error) {
		return "u1", nil
	}), time.Second)
	limiter := middleware.NewRateLimiter(rate.Limit(0.001), 1, time.Minute)

	RegisterOrderRoutes(r, controllers.NewOrderController(svc), gate, limiter)

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.Header.Set("Authorization", "Bearer t")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer t")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "reads are not rate limited")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
