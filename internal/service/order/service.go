package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/taller/internal/cache"
	"github.com/Additional-Code/taller/internal/config"
	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/messaging"
	"github.com/Additional-Code/taller/internal/pricing"
	"github.com/Additional-Code/taller/internal/repository"
	"github.com/Additional-Code/taller/internal/service/audit"
	"github.com/Additional-Code/taller/internal/service/payment"
	"github.com/Additional-Code/taller/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/taller/service/order")

const (
	outcomeOK       = "ok"
	outcomeNoop     = "noop"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Service is the order lifecycle engine. Guards run on the loaded order before any
// transaction; ledger, stock and header writes of a transition share one unit of work.
type Service struct {
	uow         repository.UnitOfWork
	orders      repository.OrderRepository
	kardex      repository.KardexRepository
	stocks      repository.StockRepository
	products    repository.ProductRepository
	payments    *payment.Service
	calc        *pricing.Calculator
	audit       *audit.Recorder
	cache       cache.Store
	cacheTTL    time.Duration
	logger      *zap.Logger
	publisher   messaging.Client
	messaging   messagingConfig
	transitions metric.Int64Counter
	prefix      string
	clock       func() time.Time
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	UnitOfWork repository.UnitOfWork
	Orders     repository.OrderRepository
	Kardex     repository.KardexRepository
	Stocks     repository.StockRepository
	Products   repository.ProductRepository
	Payments   *payment.Service
	Calculator *pricing.Calculator
	Audit      *audit.Recorder
	Cache      cache.Store      `optional:"true"`
	Publisher  messaging.Client `optional:"true"`
	Meter      metric.Meter     `optional:"true"`
	Clock      func() time.Time `optional:"true"`
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) (*Service, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	prefix := p.Config.Orders.ReferencePrefix
	if prefix == "" {
		prefix = "PEDIDO"
	}

	svc := &Service{
		uow:       p.UnitOfWork,
		orders:    p.Orders,
		kardex:    p.Kardex,
		stocks:    p.Stocks,
		products:  p.Products,
		payments:  p.Payments,
		calc:      p.Calculator,
		audit:     p.Audit,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		prefix: prefix,
		clock:  clock,
	}

	if p.Meter != nil {
		counter, err := p.Meter.Int64Counter("orders.transitions",
			metric.WithDescription("Order lifecycle transitions by outcome"),
		)
		if err != nil {
			return nil, fmt.Errorf("create transitions counter: %w", err)
		}
		svc.transitions = counter
	}
	return svc, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return order, nil
}

func (s *Service) load(ctx context.Context, id int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorbank.Missing(fmt.Sprintf("pedido %d no encontrado", id))
		}
		return nil, errorbank.Internal("no se pudo cargar el pedido", errorbank.WithCause(err))
	}
	return order, nil
}

// begin validates the actor and loads the order a transition operates on.
func (s *Service) begin(ctx context.Context, id int64, actor string) (string, *entity.Order, error) {
	actor, err := requireActor(actor)
	if err != nil {
		return "", nil, err
	}
	order, err := s.load(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return actor, order, nil
}

// commit runs fn in one transaction. Errors are returned untouched; abort classifies them.
func (s *Service) commit(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.uow.RunInTx(ctx, fn)
}

func (s *Service) reject(ctx context.Context, span trace.Span, transition string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "guard rejected")
	s.count(ctx, transition, outcomeRejected)
	return err
}

// abort handles a rolled back transaction: it logs, writes a warning audit entry outside the
// transaction and surfaces the root cause.
func (s *Service) abort(ctx context.Context, span trace.Span, transition string, orderID int64, actor string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "transaction rolled back")
	s.count(ctx, transition, outcomeFailed)
	s.logger.Error("order transition rolled back",
		zap.Int64("order_id", orderID),
		zap.String("transition", transition),
		zap.Error(err),
	)
	s.audit.Record(ctx, audit.Record{
		Entity:      "order",
		EntityID:    orderID,
		Action:      transition,
		Actor:       actor,
		Description: fmt.Sprintf("operación revertida: %v", err),
		Level:       entity.AuditLevelWarning,
	})

	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return errorbank.TransactionFailure(fmt.Sprintf("no se pudo completar la operación: %v", err), err)
}

// done finishes a committed transition.
func (s *Service) done(ctx context.Context, order *entity.Order, transition, actor, message string) *Result {
	s.count(ctx, transition, outcomeOK)
	s.invalidate(ctx, order.ID)
	s.audit.Record(ctx, audit.Record{
		Entity:      "order",
		EntityID:    order.ID,
		Action:      transition,
		Actor:       actor,
		Description: message,
	})
	s.publish(ctx, order, transition, actor)
	return &Result{Order: order, Message: message, Changed: true}
}

func (s *Service) noop(ctx context.Context, order *entity.Order, transition, message string) *Result {
	s.count(ctx, transition, outcomeNoop)
	return &Result{Order: order, Message: message, Changed: false}
}

func (s *Service) count(ctx context.Context, transition, outcome string) {
	if s.transitions == nil {
		return
	}
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("transition", transition),
		attribute.String("outcome", outcome),
	))
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

func (s *Service) today() time.Time {
	return dateOf(s.now())
}

func (s *Service) reference(orderID int64) string {
	return entity.Reference(s.prefix, orderID)
}

func (s *Service) stamp(order *entity.Order, actor string) {
	order.UpdatedBy = actor
	order.UpdatedAt = s.now()
}

func (s *Service) publish(ctx context.Context, order *entity.Order, transition, actor string) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := LifecycleEvent{
		OrderID:    order.ID,
		Transition: transition,
		Status:     order.Status,
		Actor:      actor,
		Total:      order.Total,
		OccurredAt: s.now(),
	}
	for _, line := range order.Lines {
		event.ProductIDs = append(event.ProductIDs, line.ProductID)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal lifecycle event", zap.Error(err))
		return
	}
	headers := map[string]string{messaging.HeaderEventType: "order." + transition}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload, headers); err != nil {
		s.logger.Error("publish lifecycle event", zap.Int64("order_id", order.ID), zap.String("transition", transition), zap.Error(err))
	}
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	var order entity.Order
	if err := cache.GetJSON(ctx, s.cache, cache.OrderKey(id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return nil
	}
	return cache.SetJSON(ctx, s.cache, cache.OrderKey(order.ID), order, s.cacheTTL)
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.OrderKey(id)); err != nil {
		s.logger.Warn("orders cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}
}

func requireActor(actor string) (string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", errorbank.Validation("se requiere el usuario que realiza la operación")
	}
	return actor, nil
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
