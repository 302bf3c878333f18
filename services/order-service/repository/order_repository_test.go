package repository_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/models"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:        uuid.New(),
		UserID:    "user-1",
		Items:     models.LineItems{{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("10.00")}},
		Total:     decimal.RequireFromString("20.00"),
		PaymentID: "PAY_1_abc",
		Status:    models.OrderStatusConfirmed,
		CreatedAt: time.Now().UTC(),
	}
}

var orderColumns = []string{"id", "user_id", "items", "total", "payment_id", "status", "created_at"}

func TestGormCreate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)
	order := sampleOrder()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(order.ID.String()))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), order))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCreate_Failure(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "orders"`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleOrder())
	assert.Error(t, err)
}

func TestGormFindByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows(orderColumns))

	o, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
	assert.Nil(t, o)
}

func TestGormFindByID_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)
	id := uuid.New()
	now := time.Now().UTC()

	rows := sqlmock.NewRows(orderColumns).
		AddRow(id.String(), "user-1", `[{"productId":"p1","quantity":2,"price":10}]`, "20.00", "PAY_1_abc", "confirmed", now)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).WillReturnRows(rows)

	o, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, o.ID)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("20").Equal(o.Total))
	assert.Equal(t, models.OrderStatusConfirmed, o.Status)
}

func TestGormFindByUserID_NewestFirst(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(orderColumns).
		AddRow(uuid.NewString(), "user-1", `[]`, "5.00", "PAY_2", "confirmed", now).
		AddRow(uuid.NewString(), "user-1", `[]`, "7.00", "PAY_1", "confirmed", now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" WHERE user_id = $1 ORDER BY created_at DESC`)).
		WithArgs("user-1").
		WillReturnRows(rows)

	orders, err := repo.FindByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "PAY_2", orders[0].PaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormFindByUserID_EmptyIsNotNil(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(orderColumns))

	orders, err := repo.FindByUserID(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestMemoryRepository(t *testing.T) {
	repo := repository.NewMemoryOrderRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, uid := range []string{"a", "b", "a", "a"} {
		o := sampleOrder()
		o.UserID = uid
		o.PaymentID = uuid.NewString()
		o.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, o))
	}

	orders, err := repo.FindByUserID(ctx, "a")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	for i := 1; i < len(orders); i++ {
		assert.True(t, orders[i-1].CreatedAt.After(orders[i].CreatedAt))
	}

	dup := sampleOrder()
	dup.PaymentID = orders[0].PaymentID
	assert.Error(t, repo.Create(ctx, dup), "one order per payment")

	got, err := repo.FindByID(ctx, orders[0].ID)
	require.NoError(t, err)
	assert.Equal(t, orders[0].PaymentID, got.PaymentID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestMemoryRepository_ReadsDoNotShareItems(t *testing.T) {
	repo := repository.NewMemoryOrderRepository()
	ctx := context.Background()
	o := sampleOrder()
	require.NoError(t, repo.Create(ctx, o))
	want := o.Items[0].ProductID

	got, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	got.Items[0].ProductID = "tampered"

	list, err := repo.FindByUserID(ctx, o.UserID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, want, list[0].Items[0].ProductID)
	list[0].Items[0].ProductID = "tampered"

	again, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, want, again.Items[0].ProductID)
}
