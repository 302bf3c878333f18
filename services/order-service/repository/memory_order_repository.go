package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/models"
	"github.com/google/uuid"
)

// MemoryOrderRepository keeps orders in process. Used for local runs with
// ORDER_STORE=memory and in tests.
type MemoryOrderRepository struct {
	mu        sync.RWMutex
	orders    map[uuid.UUID]models.Order
	byPayment map[string]uuid.UUID
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders:    make(map[uuid.UUID]models.Order),
		byPayment: make(map[string]uuid.UUID),
	}
}

func (r *MemoryOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if _, dup := r.orders[order.ID]; dup {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	if existing, dup := r.byPayment[order.PaymentID]; dup {
		return fmt.Errorf("payment %s already recorded on order %s", order.PaymentID, existing)
	}

	r.orders[order.ID] = clone(*order)
	r.byPayment[order.PaymentID] = order.ID
	return nil
}

func (r *MemoryOrderRepository) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o = clone(o)
	return &o, nil
}

func (r *MemoryOrderRepository) FindByUserID(_ context.Context, userID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := []models.Order{}
	for _, o := range r.orders {
		if o.UserID == userID {
			orders = append(orders, clone(o))
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// clone copies o so callers never share its items with the stored record.
func clone(o models.Order) models.Order {
	o.Items = append(models.LineItems{}, o.Items...)
	return o
}

// Len reports how many orders are stored.
func (r *MemoryOrderRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}
