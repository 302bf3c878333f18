package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Money goes over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusFailed    OrderStatus = "failed"
)

// LineItem is one product line with the unit price captured when it was put
// in the cart.
type LineItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// LineItems is stored as a single JSONB column so an order is written in one
// statement and its items can never drift from its total.
type LineItems []LineItem

func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		l = LineItems{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *LineItems) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = LineItems{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for line items", src)
	}
	return json.Unmarshal(raw, l)
}

// Order is the durable record of a paid checkout.
type Order struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"_id"`
	UserID    string          `gorm:"type:varchar(128);not null;index:idx_orders_user_created,priority:1" json:"userId"`
	Items     LineItems       `gorm:"type:jsonb;not null" json:"items"`
	Total     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total"`
	PaymentID string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"paymentId"`
	Status    OrderStatus     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt time.Time       `gorm:"not null;index:idx_orders_user_created,priority:2,sort:desc" json:"createdAt"`
}

// MoneyScale is the number of decimal places money is stored with. Totals
// must stay below MaxTotal to fit the numeric(14,2) column.
const MoneyScale = 2

var MaxTotal = decimal.New(1, 12)

// HasMoneyScale reports whether d needs no more than MoneyScale decimal places.
func HasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// ComputeTotal sums unit price times quantity over items.
func ComputeTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// CartSnapshot is the cart as read once at the start of a checkout attempt.
type CartSnapshot struct {
	UserID string     `json:"userId"`
	Items  []LineItem `json:"items"`
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Freeze returns a copy of the items that later cart edits cannot reach.
func (s CartSnapshot) Freeze() LineItems {
	out := make(LineItems, len(s.Items))
	copy(out, s.Items)
	return out
}

// PaymentReceipt is what the payment processor hands back for a successful
// charge.
type PaymentReceipt struct {
	PaymentID string          `json:"paymentId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
}
