package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/models"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w, topic: "order-events"}

	evt := models.OrderEvent{
		Type:      models.EventOrderConfirmed,
		OrderID:   "o-1",
		UserID:    "u1",
		PaymentID: "PAY_1",
		Total:     decimal.RequireFromString("25.50"),
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, p.Publish(context.Background(), evt))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "u1", string(msg.Key))
	assert.Empty(t, msg.Topic, "topic belongs to the writer")
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, models.EventOrderConfirmed, string(msg.Headers[0].Value))

	var decoded models.OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "PAY_1", decoded.PaymentID)
	assert.True(t, decoded.Total.Equal(evt.Total))
}

func TestProducer_PublishError(t *testing.T) {
	p := &Producer{writer: &recordingWriter{err: errors.New("broker down")}, topic: "order-events"}

	err := p.Publish(context.Background(), models.OrderEvent{Type: models.EventOrderPersistFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order.persist_failed")
}

func TestProducer_Close(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w, topic: "order-events"}
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
