package order

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/pricing"
	"github.com/Additional-Code/taller/internal/service/payment"
	"github.com/Additional-Code/taller/pkg/errorbank"
)

func wrongState(action string, status entity.OrderStatus) error {
	return errorbank.GuardViolation(
		fmt.Sprintf("no se puede %s un pedido en estado %s", action, status),
		errorbank.WithDetail("status", status),
	)
}

func depositPending(order *entity.Order) error {
	return errorbank.GuardViolation(
		fmt.Sprintf("el pedido requiere un anticipo de Q%s pagado", order.MinimumDeposit.StringFixed(2)),
		errorbank.WithDetail("deposit_state", order.DepositState),
	)
}

// Quote moves a DRAFT order to QUOTED, pricing its lines at the base price.
func (s *Service) Quote(ctx context.Context, id int64, actor string) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Quote", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	actor, order, err := s.begin(ctx, id, actor)
	if err != nil {
		return nil, s.reject(ctx, span, transitionQuote, err)
	}
	switch order.Status {
	case entity.OrderStatusDraft:
	case entity.OrderStatusQuoted, entity.OrderStatusApproved, entity.OrderStatusInProduction,
		entity.OrderStatusCompleted, entity.OrderStatusDelivered, entity.OrderStatusCancelled, entity.OrderStatusRejected:
		return nil, s.reject(ctx, span, transitionQuote, wrongState("cotizar", order.Status))
	default:
		return nil, s.reject(ctx, span, transitionQuote, wrongState("cotizar", order.Status))
	}
	if len(order.Lines) == 0 {
		return nil, s.reject(ctx, span, transitionQuote, errorbank.GuardViolation("el pedido no tiene productos"))
	}

	totals := s.calc.Base(order.Lines)
	totals.Apply(order)
	order.DepositState = pricing.NextDepositState(order.DepositState, totals.Deposit)
	order.Status = entity.OrderStatusQuoted
	s.stamp(order, actor)

	err = s.commit(ctx, func(ctx context.Context) error {
		for i := range order.Lines {
			if err := s.orders.UpdateLine(ctx, &order.Lines[i]); err != nil {
				return fmt.Errorf("update line %d: %w", order.Lines[i].ID, err)
			}
		}
		return s.orders.UpdateHeader(ctx, order)
	})
	if err != nil {
		return nil, s.abort(ctx, span, transitionQuote, order.ID, actor, err)
	}
	return s.done(ctx, order, transitionQuote, actor,
		fmt.Sprintf("pedido cotizado por Q%s", order.Total.StringFixed(2))), nil
}

// Approve reserves stock for every line not reserved yet and moves the order to APPROVED.
// Approving an APPROVED order again only reserves what is still missing.
func (s *Service) Approve(ctx context.Context, id int64, actor string) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Approve", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	actor, order, err := s.begin(ctx, id, actor)
	if err != nil {
		return nil, s.reject(ctx, span, transitionApprove, err)
	}
	switch order.Status {
	case entity.OrderStatusDraft, entity.OrderStatusQuoted, entity.OrderStatusApproved:
	case entity.OrderStatusInProduction, entity.OrderStatusCompleted, entity.OrderStatusDelivered,
		entity.OrderStatusCancelled, entity.OrderStatusRejected:
		return nil, s.reject(ctx, span, transitionApprove, wrongState("aprobar", order.Status))
	default:
		return nil, s.reject(ctx, span, transitionApprove, wrongState("aprobar", order.Status))
	}
	if len(order.Lines) == 0 {
		return nil, s.reject(ctx, span, transitionApprove, errorbank.GuardViolation("el pedido no tiene productos"))
	}

	deposit := s.calc.DepositFor(order.Total)
	order.RequiresDeposit = deposit.Required
	order.MinimumDeposit = deposit.Minimum
	order.DepositState = pricing.NextDepositState(order.DepositState, deposit)
	if deposit.Required && order.DepositState != entity.DepositStatePaid {
		return nil, s.reject(ctx, span, transitionApprove, depositPending(order))
	}

	pending, err := s.unreserved(ctx, order)
	if err != nil {
		return nil, s.reject(ctx, span, transitionApprove, errorbank.Internal("no se pudo revisar el kardex", errorbank.WithCause(err)))
	}
	if order.Status == entity.OrderStatusApproved && len(pending) == 0 {
		return s.noop(ctx, order, transitionApprove, "el pedido ya estaba aprobado"), nil
	}
	short, err := s.shortfalls(ctx, pending)
	if err != nil {
		return nil, s.reject(ctx, span, transitionApprove, errorbank.Internal("no se pudo revisar el stock", errorbank.WithCause(err)))
	}
	if len(short) > 0 {
		return nil, s.reject(ctx, span, transitionApprove, insufficientStock(short))
	}

	order.Status = entity.OrderStatusApproved
	s.stamp(order, actor)
	err = s.commit(ctx, func(ctx context.Context) error {
		for _, line := range pending {
			if err := s.reserve(ctx, order, line, actor); err != nil {
				return err
			}
		}
		return s.orders.UpdateHeader(ctx, order)
	})
	if err != nil {
		return nil, s.abort(ctx, span, transitionApprove, order.ID, actor, err)
	}
	return s.done(ctx, order, transitionApprove, actor,
		fmt.Sprintf("pedido aprobado; %d producto(s) reservados", len(pending))), nil
}

// StartProduction moves an APPROVED order to IN_PRODUCTION.
func (s *Service) StartProduction(ctx context.Context, id int64, actor string) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.StartProduction", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	actor, order, err := s.begin(ctx, id, actor)
	if err != nil {
		return nil, s.reject(ctx, span, transitionStart, err)
	}
	switch order.Status {
	case entity.OrderStatusApproved:
	case entity.OrderStatusInProduction:
		return s.noop(ctx, order, transitionStart, "el pedido ya está en producción"), nil
	case entity.OrderStatusDraft, entity.OrderStatusQuoted, entity.OrderStatusCompleted,
		entity.OrderStatusDelivered, entity.OrderStatusCancelled, entity.OrderStatusRejected:
		return nil, s.reject(ctx, span, transitionStart, wrongState("iniciar producción de", order.Status))
	default:
		return nil, s.reject(ctx, span, transitionStart, wrongState("iniciar producción de", order.Status))
	}

	order.Status = entity.OrderStatusInProduction
	s.stamp(order, actor)
	err = s.commit(ctx, func(ctx context.Context) error {
		return s.orders.UpdateHeader(ctx, order)
	})
	if err != nil {
		return nil, s.abort(ctx, span, transitionStart, order.ID, actor, err)
	}
	return s.done(ctx, order, transitionStart, actor, "pedido en producción"), nil
}

// Finalize converts every reservation of an IN_PRODUCTION order into a consumption and moves
// it to COMPLETED. Stock was already taken at approval and is left untouched.
func (s *Service) Finalize(ctx context.Context, id int64, actor string) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Finalize", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	actor, order, err := s.begin(ctx, id, actor)
	if err != nil {
		return nil, s.reject(ctx, span, transitionFinalize, err)
	}
	switch order.Status {
	case entity.OrderStatusInProduction:
	case entity.OrderStatusDraft, entity.OrderStatusQuoted, entity.OrderStatusApproved, entity.OrderStatusCompleted,
		entity.OrderStatusDelivered, entity.OrderStatusCancelled, entity.OrderStatusRejected:
		return nil, s.reject(ctx, span, transitionFinalize, wrongState("finalizar", order.Status))
	default:
		return nil, s.reject(ctx, span, transitionFinalize, wrongState("finalizar", order.Status))
	}
	if order.RequiresDeposit && order.DepositState != entity.DepositStatePaid {
		return nil, s.reject(ctx, span, transitionFinalize, depositPending(order))
	}

	order.Status = entity.OrderStatusCompleted
	s.stamp(order, actor)
	err = s.commit(ctx, func(ctx context.Context) error {
		for _, line := range order.Lines {
			if err := s.consume(ctx, order, line, actor); err != nil {
				return err
			}
		}
		return s.orders.UpdateHeader(ctx, order)
	})
	if err != nil {
		return nil, s.abort(ctx, span, transitionFinalize, order.ID, actor, err)
	}
	return s.done(ctx, order, transitionFinalize, actor, "pedido finalizado"), nil
}

// Deliver settles the balance of a COMPLETED order and moves it to DELIVERED. A zero amount is
// accepted only when nothing is left to pay.
func (s *Service) Deliver(ctx context.Context, cmd DeliverCommand) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Deliver", trace.WithAttributes(attribute.Int64("order.id", cmd.OrderID)))
	defer span.End()

	actor, order, err := s.begin(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return nil, s.reject(ctx, span, transitionDeliver, err)
	}
	switch order.Status {
	case entity.OrderStatusCompleted:
	case entity.OrderStatusDraft, entity.OrderStatusQuoted, entity.OrderStatusApproved, entity.OrderStatusInProduction,
		entity.OrderStatusDelivered, entity.OrderStatusCancelled, entity.OrderStatusRejected:
		return nil, s.reject(ctx, span, transitionDeliver, wrongState("entregar", order.Status))
	default:
		return nil, s.reject(ctx, span, transitionDeliver, wrongState("entregar", order.Status))
	}
	if order.RequiresDeposit && order.DepositState != entity.DepositStatePaid {
		return nil, s.reject(ctx, span, transitionDeliver, depositPending(order))
	}

	outstanding, err := s.payments.Outstanding(ctx, order)
	if err != nil {
		return nil, s.reject(ctx, span, transitionDeliver, errorbank.Internal("no se pudo calcular el saldo pendiente", errorbank.WithCause(err)))
	}

	var tender *payment.Tender
	if cmd.Form.Amount.IsZero() {
		if outstanding.GreaterThan(s.payments.Tolerance()) {
			return nil, s.reject(ctx, span, transitionDeliver, errorbank.Validation(
				fmt.Sprintf("el monto debe ser mayor a cero; saldo pendiente Q%s", outstanding.StringFixed(2)),
			))
		}
	} else {
		prepared, err := s.payments.Prepare(ctx, cmd.Form)
		if err != nil {
			return nil, s.reject(ctx, span, transitionDeliver, err)
		}
		if err := s.payments.CheckAmount(prepared.Amount, outstanding); err != nil {
			return nil, s.reject(ctx, span, transitionDeliver, err)
		}
		tender = &prepared
	}

	order.Status = entity.OrderStatusDelivered
	if order.DeliveryDate == nil {
		today := s.today()
		order.DeliveryDate = &today
	}
	s.stamp(order, actor)

	var applied *payment.Applied
	err = s.commit(ctx, func(ctx context.Context) error {
		if tender != nil {
			var err error
			applied, err = s.payments.Apply(ctx, order, *tender, entity.PaymentConceptBalance, actor)
			if err != nil {
				return err
			}
		}
		return s.orders.UpdateHeader(ctx, order)
	})
	if err != nil {
		return nil, s.abort(ctx, span, transitionDeliver, order.ID, actor, err)
	}

	if applied != nil && applied.Movement == nil {
		s.payments.WarnNoSession(ctx, order.ID, actor)
	}
	remaining := outstanding
	if tender != nil {
		remaining = decimal.Max(outstanding.Sub(tender.Amount), decimal.Zero)
	}
	result := s.done(ctx, order, transitionDeliver, actor,
		fmt.Sprintf("pedido entregado; saldo pendiente Q%s", remaining.StringFixed(2)))
	result.Payment = applied
	return result, nil
}

// Cancel returns every reserved quantity of an APPROVED or IN_PRODUCTION order to stock and
// moves it to CANCELLED.
func (s *Service) Cancel(ctx context.Context, id int64, actor string) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	actor, order, err := s.begin(ctx, id, actor)
	if err != nil {
		return nil, s.reject(ctx, span, transitionCancel, err)
	}
	switch order.Status {
	case entity.OrderStatusApproved, entity.OrderStatusInProduction:
	case entity.OrderStatusDraft, entity.OrderStatusQuoted, entity.OrderStatusCompleted,
		entity.OrderStatusDelivered, entity.OrderStatusCancelled, entity.OrderStatusRejected:
		return nil, s.reject(ctx, span, transitionCancel, wrongState("cancelar", order.Status))
	default:
		return nil, s.reject(ctx, span, transitionCancel, wrongState("cancelar", order.Status))
	}

	order.Status = entity.OrderStatusCancelled
	s.stamp(order, actor)
	var released int
	err = s.commit(ctx, func(ctx context.Context) error {
		var err error
		if released, err = s.release(ctx, order, actor); err != nil {
			return err
		}
		return s.orders.UpdateHeader(ctx, order)
	})
	if err != nil {
		return nil, s.abort(ctx, span, transitionCancel, order.ID, actor, err)
	}
	return s.done(ctx, order, transitionCancel, actor,
		fmt.Sprintf("pedido cancelado; %d reserva(s) devueltas al stock", released)), nil
}

// Reject closes a QUOTED order the client turned down. Orders with a paid deposit cannot be
// rejected.
func (s *Service) Reject(ctx context.Context, id int64, actor string) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Reject", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	actor, order, err := s.begin(ctx, id, actor)
	if err != nil {
		return nil, s.reject(ctx, span, transitionReject, err)
	}
	switch order.Status {
	case entity.OrderStatusQuoted:
	case entity.OrderStatusDraft, entity.OrderStatusApproved, entity.OrderStatusInProduction,
		entity.OrderStatusCompleted, entity.OrderStatusDelivered, entity.OrderStatusCancelled, entity.OrderStatusRejected:
		return nil, s.reject(ctx, span, transitionReject, wrongState("rechazar", order.Status))
	default:
		return nil, s.reject(ctx, span, transitionReject, wrongState("rechazar", order.Status))
	}
	if order.DepositState == entity.DepositStatePaid {
		return nil, s.reject(ctx, span, transitionReject, errorbank.GuardViolation("no se puede rechazar un pedido con anticipo pagado"))
	}

	order.Status = entity.OrderStatusRejected
	s.stamp(order, actor)
	err = s.commit(ctx, func(ctx context.Context) error {
		return s.orders.UpdateHeader(ctx, order)
	})
	if err != nil {
		return nil, s.abort(ctx, span, transitionReject, order.ID, actor, err)
	}
	return s.done(ctx, order, transitionReject, actor, "pedido rechazado"), nil
}
