package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/taller/internal/config"
	"github.com/Additional-Code/taller/internal/messaging"
)

const maxBackoff = 30 * time.Second

// HandlerRegistration binds a topic, optionally narrowed to some event types, to a handler.
// An empty EventTypes receives every message of the topic.
type HandlerRegistration struct {
	Topic      string
	EventTypes []string
	Handler    messaging.Handler
}

func (r HandlerRegistration) accepts(eventType string) bool {
	if len(r.EventTypes) == 0 {
		return true
	}
	for _, t := range r.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Meter         metric.Meter         `optional:"true"`
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine consumes the lifecycle topic and fans each message out to its handlers.
type Engine struct {
	client        messaging.Client
	logger        *zap.Logger
	cfg           config.Config
	registrations map[string][]HandlerRegistration
	processed     metric.Int64Counter
	cancel        context.CancelFunc
	wg            *sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) (*Engine, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := make(map[string][]HandlerRegistration, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		reg[r.Topic] = append(reg[r.Topic], r)
	}

	engine := &Engine{
		client:        p.Client,
		logger:        logger,
		cfg:           p.Config,
		registrations: reg,
	}
	if p.Meter != nil {
		counter, err := p.Meter.Int64Counter("worker.messages",
			metric.WithDescription("Messages handled by the worker engine by outcome"),
		)
		if err != nil {
			return nil, err
		}
		engine.processed = counter
	}
	return engine, nil
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

// Dispatch runs every handler registered for the message topic and event type. All handlers
// run even when one fails; the joined error makes the client skip the commit so the message
// is redelivered.
func (e *Engine) Dispatch(ctx context.Context, msg messaging.Message) error {
	handlers := e.registrations[msg.Topic]
	if len(handlers) == 0 {
		e.logger.Warn("no handler for topic", zap.String("topic", msg.Topic))
		e.count(ctx, msg, "unhandled")

		return nil
	}

	eventType := msg.EventType()
	var errs []error
	matched := 0
	for _, r := range handlers {
		if !r.accepts(eventType) {
			continue
		}
		matched++
		if err := r.Handler(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if matched == 0 {
		e.count(ctx, msg, "skipped")

		return nil
	}

	err := errors.Join(errs...)
	if err != nil {
		e.logger.Error("message handling failed",
			zap.String("topic", msg.Topic),
			zap.String("event_type", eventType),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		e.count(ctx, msg, "failed")

		return err
	}
	e.count(ctx, msg, "ok")

	return nil
}

func (e *Engine) count(ctx context.Context, msg messaging.Message, outcome string) {
	if e.processed == nil {
		return
	}
	e.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", msg.Topic),
		attribute.String("event_type", msg.EventType()),
		attribute.String("outcome", outcome),
	))
}

func (e *Engine) start(ctx context.Context) error {
	if !e.cfg.Messaging.Enabled || !e.cfg.Messaging.Workers.Enabled {
		e.logger.Info("worker engine disabled")

		return nil
	}
	if len(e.registrations) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")

		return nil
	}

	concurrency := e.cfg.Messaging.Workers.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	for i := 0; i < concurrency; i++ {
		workerID := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}()
	}

	e.logger.Info("worker engine started", zap.Int("workers", concurrency))

	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		if e.wg != nil {
			e.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")

		return nil
	}
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			e.logger.Debug("processing message",
				zap.String("topic", msg.Topic),
				zap.String("event_type", msg.EventType()),
				zap.Int("worker", workerID),
			)

			return e.Dispatch(msgCtx, msg)
		})

		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
