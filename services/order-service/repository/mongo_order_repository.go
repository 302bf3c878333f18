package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const OrdersCollection = "orders"

type lineItemDocument struct {
	ProductID string               `bson:"productId"`
	Quantity  int                  `bson:"quantity"`
	Price     primitive.Decimal128 `bson:"price"`
}

type orderDocument struct {
	ID        string               `bson:"_id"`
	UserID    string               `bson:"userId"`
	Items     []lineItemDocument   `bson:"items"`
	Total     primitive.Decimal128 `bson:"total"`
	PaymentID string               `bson:"paymentId"`
	Status    string               `bson:"status"`
	CreatedAt time.Time            `bson:"createdAt"`
}

// MongoOrderRepository keeps orders as documents keyed by the order id.
type MongoOrderRepository struct {
	coll *mongo.Collection
}

func NewMongoOrderRepository(coll *mongo.Collection) *MongoOrderRepository {
	return &MongoOrderRepository{coll: coll}
}

// EnsureIndexes creates the per-user listing index and the one-order-per-payment
// constraint.
func (r *MongoOrderRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "paymentId", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

func (r *MongoOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	doc, err := toDocument(order)
	if err != nil {
		return err
	}
	_, err = r.coll.InsertOne(ctx, doc)
	return err
}

func (r *MongoOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var doc orderDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromDocument(doc)
}

func (r *MongoOrderRepository) FindByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	orders := []models.Order{}
	for cur.Next(ctx) {
		var doc orderDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		o, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, cur.Err()
}

func toDocument(o *models.Order) (orderDocument, error) {
	total, err := primitive.ParseDecimal128(o.Total.String())
	if err != nil {
		return orderDocument{}, fmt.Errorf("encode total: %w", err)
	}
	items := make([]lineItemDocument, 0, len(o.Items))
	for _, it := range o.Items {
		price, err := primitive.ParseDecimal128(it.Price.String())
		if err != nil {
			return orderDocument{}, fmt.Errorf("encode price of %s: %w", it.ProductID, err)
		}
		items = append(items, lineItemDocument{ProductID: it.ProductID, Quantity: it.Quantity, Price: price})
	}
	return orderDocument{
		ID:        o.ID.String(),
		UserID:    o.UserID,
		Items:     items,
		Total:     total,
		PaymentID: o.PaymentID,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.UTC(),
	}, nil
}

func fromDocument(d orderDocument) (*models.Order, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("decode order id %q: %w", d.ID, err)
	}
	total, err := decimal.NewFromString(d.Total.String())
	if err != nil {
		return nil, fmt.Errorf("decode total: %w", err)
	}
	items := make(models.LineItems, 0, len(d.Items))
	for _, it := range d.Items {
		price, err := decimal.NewFromString(it.Price.String())
		if err != nil {
			return nil, fmt.Errorf("decode price: %w", err)
		}
		items = append(items, models.LineItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: price})
	}
	return &models.Order{
		ID:        id,
		UserID:    d.UserID,
		Items:     items,
		Total:     total,
		PaymentID: d.PaymentID,
		Status:    models.OrderStatus(d.Status),
		CreatedAt: d.CreatedAt,
	}, nil
}
