package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (s *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	if len(s.msgs) == 0 {
		s.mu.Unlock()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := s.msgs[0]
	s.msgs = s.msgs[1:]
	s.mu.Unlock()
	return m, nil
}

func (s *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

func (s *sliceReader) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *sliceReader) commits() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

func kafkaMessage(t *testing.T, offset int64, userID string) kafka.Message {
	t.Helper()
	return kafka.Message{Offset: offset, Value: encode(t, models.OrderEvent{Type: EventCartClearFailed, UserID: userID})}
}

// runUntil runs src until done holds, then cancels it.
func runUntil(t *testing.T, src *KafkaSource, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- src.Run(ctx) }()

	require.Eventually(t, done, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestKafkaSource_CommitsAfterHandling(t *testing.T) {
	carts := &fakeDeleter{}
	reader := &sliceReader{msgs: []kafka.Message{kafkaMessage(t, 7, "u1"), kafkaMessage(t, 8, "u2")}}
	src := &KafkaSource{reader: reader, rec: NewReconciler(carts), retryDelay: time.Millisecond}

	runUntil(t, src, func() bool { return len(reader.commits()) == 2 })

	assert.Equal(t, []int64{7, 8}, reader.commits())
	assert.Equal(t, []string{"u1", "u2"}, carts.calls)
	assert.True(t, reader.closed)
}

func TestKafkaSource_RetriesBeforeCommitting(t *testing.T) {
	carts := &fakeDeleter{failures: 2}
	reader := &sliceReader{msgs: []kafka.Message{kafkaMessage(t, 3, "u1")}}
	src := &KafkaSource{reader: reader, rec: NewReconciler(carts), retryDelay: time.Millisecond}

	runUntil(t, src, func() bool { return len(reader.commits()) == 1 })

	assert.Equal(t, 3, carts.callCount(), "two failures then a success")
	assert.Equal(t, []int64{3}, reader.commits())
}

func TestKafkaSource_CancelWhileFailingLeavesOffset(t *testing.T) {
	carts := &fakeDeleter{failures: 1 << 20}
	reader := &sliceReader{msgs: []kafka.Message{kafkaMessage(t, 5, "u1")}}
	src := &KafkaSource{reader: reader, rec: NewReconciler(carts), retryDelay: time.Millisecond}

	runUntil(t, src, func() bool { return carts.callCount() >= 2 })

	assert.Empty(t, reader.commits(), "a failed event is never committed")
}
