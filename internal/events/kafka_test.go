package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"justmatcha-backend/internal/model"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func TestKafkaPublish(t *testing.T) {
	w := new(mockWriter)
	order := &model.Order{ID: primitive.NewObjectID(), Status: model.StatusPending}
	evt := NewOrderEvent(OrderCreated, order)

	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 {
			return false
		}
		msg := msgs[0]
		var decoded Event
		if err := json.Unmarshal(msg.Value, &decoded); err != nil {
			return false
		}
		return msg.Topic == "orders" &&
			string(msg.Key) == order.ID.Hex() &&
			decoded.Type == OrderCreated &&
			decoded.Order.ID == order.ID
	})).Return(nil).Once()

	p := NewKafkaPublisher(w, "orders")
	require.NoError(t, p.Publish(context.Background(), evt))
	w.AssertExpectations(t)
}

func TestKafkaPublishError(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	p := NewKafkaPublisher(w, "orders")
	err := p.Publish(context.Background(), NewOrderEvent(OrderPaid, &model.Order{ID: primitive.NewObjectID()}))
	require.ErrorContains(t, err, "broker down")
}

func TestNewOrderEventIDs(t *testing.T) {
	a := NewOrderEvent(OrderPaid, &model.Order{})
	b := NewOrderEvent(OrderPaid, &model.Order{})
	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)
	require.False(t, a.OccurredAt.IsZero())
}

func TestKafkaWriterFlushesQuickly(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"})
	defer w.Close()
	require.LessOrEqual(t, w.BatchTimeout, 50*time.Millisecond)
	require.Positive(t, w.BatchTimeout)
	require.Equal(t, kafka.RequireAll, w.RequiredAcks)
}
