package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"medinexa/internal/domain"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	writer := &fakeWriter{}
	publisher := &kafkaPublisher{writer: writer}
	occurred := time.Date(2025, 5, 2, 9, 30, 0, 0, time.UTC)

	err := publisher.Publish(context.Background(), OrderEvent{
		Type:           OrderStatusChanged,
		OrderID:        "ORD-1A2B3C4D",
		UserID:         "user-1",
		Status:         domain.OrderStatusApproved,
		PreviousStatus: domain.OrderStatusPendingReview,
		ActorID:        "admin_1",
		OccurredAt:     occurred,
	})
	require.NoError(t, err)

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "ORD-1A2B3C4D", string(msg.Key))
	assert.Equal(t, occurred, msg.Time)
	assert.Equal(t, "order.status_changed", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "approved", decoded["status"])
	assert.Equal(t, "pending_review", decoded["previousStatus"])
	assert.Equal(t, "ORD-1A2B3C4D", decoded["orderId"])
}

func TestKafkaPublisher_PropagatesWriteErrors(t *testing.T) {
	publisher := &kafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}

	err := publisher.Publish(context.Background(), OrderEvent{OrderID: "x"})

	assert.ErrorContains(t, err, "broker down")
}

func TestKafkaPublisher_Close(t *testing.T) {
	writer := &fakeWriter{}
	require.NoError(t, (&kafkaPublisher{writer: writer}).Close())
	assert.True(t, writer.closed)
}

func TestNopPublisher(t *testing.T) {
	p := NewNopPublisher()
	assert.NoError(t, p.Publish(context.Background(), OrderEvent{}))
	assert.NoError(t, p.Close())
}
