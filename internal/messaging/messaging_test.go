package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/taller/internal/config"
)

func TestHeaderMap(t *testing.T) {
	assert.Nil(t, headerMap(nil))

	headers := headerMap([]kafka.Header{
		{Key: HeaderEventType, Value: []byte("order.approve")},
		{Key: "trace", Value: []byte("abc")},
	})
	assert.Equal(t, map[string]string{HeaderEventType: "order.approve", "trace": "abc"}, headers)

	msg := Message{Headers: headers}
	assert.Equal(t, "order.approve", msg.EventType())
	assert.Empty(t, Message{}.EventType())
}

func TestNewClientDisabledUsesNoop(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Messaging: config.Messaging{
		Enabled: false,
		Driver:  "kafka",
		Kafka:   config.Kafka{Topic: "orders.lifecycle"},
	}}

	client, err := NewClient(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "orders.lifecycle", client.Topic())
	assert.NoError(t, client.Publish(context.Background(), []byte("k"), []byte("v"), nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = client.Consume(ctx, func(context.Context, Message) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClientRejectsUnknownDriver(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{Messaging: config.Messaging{Enabled: true, Driver: "nats"}}

	_, err := NewClient(lc, cfg, zap.NewNop())
	assert.Error(t, err)
}
