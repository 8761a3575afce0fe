package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/Additional-Code/taller/internal/config"
	"github.com/Additional-Code/taller/internal/messaging"
)

type idleClient struct{}

func (idleClient) Publish(context.Context, []byte, []byte, map[string]string) error { return nil }
func (idleClient) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}
func (idleClient) Topic() string { return "orders.lifecycle" }

func message(eventType string) messaging.Message {
	return messaging.Message{
		Topic:   "orders.lifecycle",
		Value:   []byte(`{}`),
		Headers: map[string]string{messaging.HeaderEventType: eventType},
	}
}

func TestDispatchFiltersByEventType(t *testing.T) {
	var approvals, all int
	engine, err := NewEngine(Params{
		Client: idleClient{},
		Logger: zap.NewNop(),
		Registrations: []HandlerRegistration{
			{
				Topic:      "orders.lifecycle",
				EventTypes: []string{"order.approve"},
				Handler: func(context.Context, messaging.Message) error {
					approvals++
					return nil
				},
			},
			{
				Topic: "orders.lifecycle",
				Handler: func(context.Context, messaging.Message) error {
					all++
					return nil
				},
			},
			{Topic: "", Handler: func(context.Context, messaging.Message) error { return nil }},
		},
	})
	require.NoError(t, err)

	require.NoError(t, engine.Dispatch(context.Background(), message("order.approve")))
	require.NoError(t, engine.Dispatch(context.Background(), message("order.quote")))
	require.NoError(t, engine.Dispatch(context.Background(), messaging.Message{Topic: "other"}))

	assert.Equal(t, 1, approvals)
	assert.Equal(t, 2, all)
}

func TestDispatchRunsEveryHandlerAndJoinsErrors(t *testing.T) {
	first := errors.New("first")
	var ran int
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	engine, err := NewEngine(Params{
		Client: idleClient{},
		Meter:  provider.Meter("test"),
		Registrations: []HandlerRegistration{
			{Topic: "orders.lifecycle", Handler: func(context.Context, messaging.Message) error {
				ran++
				return first
			}},
			{Topic: "orders.lifecycle", Handler: func(context.Context, messaging.Message) error {
				ran++
				return nil
			}},
		},
	})
	require.NoError(t, err)

	err = engine.Dispatch(context.Background(), message("order.approve"))
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 2, ran)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	outcome, _ := sum.DataPoints[0].Attributes.Value("outcome")
	assert.Equal(t, "failed", outcome.AsString())
}

func TestStartIsNoopWhenDisabled(t *testing.T) {
	engine, err := NewEngine(Params{Client: idleClient{}, Config: config.Config{}})
	require.NoError(t, err)

	require.NoError(t, engine.start(context.Background()))
	assert.Nil(t, engine.cancel)
	require.NoError(t, engine.stop(context.Background()))
}

func TestStartAndStopConsumers(t *testing.T) {
	cfg := config.Config{Messaging: config.Messaging{
		Enabled: true,
		Workers: config.Worker{Enabled: true, Concurrency: 2},
	}}
	engine, err := NewEngine(Params{
		Client: idleClient{},
		Config: cfg,
		Registrations: []HandlerRegistration{
			{Topic: "orders.lifecycle", Handler: func(context.Context, messaging.Message) error { return nil }},
		},
	})
	require.NoError(t, err)

	require.NoError(t, engine.start(context.Background()))
	require.NotNil(t, engine.cancel)
	require.NoError(t, engine.stop(context.Background()))
}
