package order

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/taller/internal/config"
	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/messaging"
	"github.com/Additional-Code/taller/internal/service/audit"
	"github.com/Additional-Code/taller/internal/service/inventory"
	ordersvc "github.com/Additional-Code/taller/internal/service/order"
	"github.com/Additional-Code/taller/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/taller/worker/order")

// ApproveEvent is the event type published after an order reserves its stock.
const ApproveEvent = "order.approve"

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewLowStockHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewLowStockHandler sets up a worker handler that flags products left at or below their
// reorder level once an order reserves stock.
func NewLowStockHandler(logger *zap.Logger, cfg config.Config, stock *inventory.Service, recorder *audit.Recorder) worker.HandlerRegistration {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.low_stock", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.String("messaging.event_type", msg.EventType()),
		))
		defer span.End()

		var event ordersvc.LifecycleEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode lifecycle event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		if event.Status != entity.OrderStatusApproved || len(event.ProductIDs) == 0 {
			return nil
		}
		span.SetAttributes(attribute.Int64("order.id", event.OrderID))

		levels, err := stock.Check(ctx, event.ProductIDs)
		if err != nil {
			logger.Error("failed to check stock levels", zap.Int64("order_id", event.OrderID), zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "stock check error")
			return err
		}
		for _, level := range levels {
			logger.Warn("product at reorder level",
				zap.Int64("order_id", event.OrderID),
				zap.Int64("product_id", level.ProductID),
				zap.Int("on_hand", level.OnHand),
				zap.Int("reorder_level", level.ReorderLevel),
			)
			recorder.Record(ctx, audit.Record{
				Entity:   "product",
				EntityID: level.ProductID,
				Action:   "low_stock",
				Actor:    event.Actor,
				Description: fmt.Sprintf("%s quedó con %d unidades (mínimo %d) tras aprobar el pedido %d",
					level.Name, level.OnHand, level.ReorderLevel, event.OrderID),
				Level: entity.AuditLevelWarning,
			})
		}

		return nil
	}

	return worker.HandlerRegistration{
		Topic:      cfg.Messaging.Kafka.Topic,
		EventTypes: []string{ApproveEvent},
		Handler:    handler,
	}
}
