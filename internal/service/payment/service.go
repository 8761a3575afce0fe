// Package payment records deposits and balance payments against orders and reconciles what is
// still owed.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/taller/internal/cache"
	"github.com/Additional-Code/taller/internal/config"
	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/repository"
	"github.com/Additional-Code/taller/internal/service/audit"
	"github.com/Additional-Code/taller/pkg/errorbank"
)

// Module provides the payment service to Fx.
var Module = fx.Provide(NewService)

var serviceTracer = otel.Tracer("github.com/Additional-Code/taller/service/payment")

// Form is the payment as entered by the cashier.
type Form struct {
	MethodID int64
	Amount   decimal.Decimal
	// Received is the cash handed over. Ignored for non-cash methods.
	Received decimal.Decimal
}

// Tender is a validated Form with its method resolved and change computed.
type Tender struct {
	Method   entity.PaymentMethod
	Amount   decimal.Decimal
	Received decimal.Decimal
	Change   decimal.Decimal
}

// DepositCommand pays the minimum deposit of an order.
type DepositCommand struct {
	OrderID int64
	Actor   string
	Form    Form
}

// BalanceCommand pays part or all of the outstanding balance before delivery.
type BalanceCommand struct {
	OrderID int64
	Actor   string
	Form    Form
}

// Applied is the outcome of Apply. Movement is nil when the actor had no open register session.
type Applied struct {
	Receipt  entity.PaymentReceipt
	Movement *entity.CashMovement
}

// Statement summarises what an order owes.
type Statement struct {
	OrderID     int64                   `json:"order_id"`
	Total       decimal.Decimal         `json:"total"`
	DepositPaid decimal.Decimal         `json:"deposit_paid"`
	BalancePaid decimal.Decimal         `json:"balance_paid"`
	Outstanding decimal.Decimal         `json:"outstanding"`
	Receipts    []entity.PaymentReceipt `json:"receipts"`
}

// Service records payments. Apply is also used by the order lifecycle inside its own
// transaction when an order is delivered.
type Service struct {
	uow       repository.UnitOfWork
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	cash      repository.CashRepository
	audit     *audit.Recorder
	cache     cache.Store
	logger    *zap.Logger
	tolerance decimal.Decimal
	prefix    string
	clock     func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	UnitOfWork repository.UnitOfWork
	Orders     repository.OrderRepository
	Payments   repository.PaymentRepository
	Cash       repository.CashRepository
	Audit      *audit.Recorder
	Cache      cache.Store `optional:"true"`
	Config     config.Config
	Logger     *zap.Logger
	Clock      func() time.Time `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	tolerance := p.Config.Orders.PaymentTolerance
	if tolerance.IsZero() {
		tolerance = decimal.RequireFromString("0.01")
	}
	prefix := p.Config.Orders.ReferencePrefix
	if prefix == "" {
		prefix = "PEDIDO"
	}
	return &Service{
		uow:       p.UnitOfWork,
		orders:    p.Orders,
		payments:  p.Payments,
		cash:      p.Cash,
		audit:     p.Audit,
		cache:     p.Cache,
		logger:    logger,
		tolerance: tolerance,
		prefix:    prefix,
		clock:     clock,
	}
}

// Tolerance is the rounding slack accepted when comparing amounts.
func (s *Service) Tolerance() decimal.Decimal {
	return s.tolerance
}

// RecordDeposit registers the deposit of a DRAFT or QUOTED order whose deposit is pending.
func (s *Service) RecordDeposit(ctx context.Context, cmd DepositCommand) (*Applied, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.RecordDeposit", trace.WithAttributes(attribute.Int64("order.id", cmd.OrderID)))
	defer span.End()

	actor, err := requireActor(cmd.Actor)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case entity.OrderStatusDraft, entity.OrderStatusQuoted:
	case entity.OrderStatusApproved, entity.OrderStatusInProduction, entity.OrderStatusCompleted,
		entity.OrderStatusDelivered, entity.OrderStatusCancelled, entity.OrderStatusRejected:
		return nil, errorbank.GuardViolation(fmt.Sprintf("no se puede registrar anticipo en estado %s", order.Status))
	default:
		return nil, errorbank.GuardViolation(fmt.Sprintf("estado desconocido %q", order.Status))
	}
	if !order.RequiresDeposit || order.DepositState != entity.DepositStatePending {
		return nil, errorbank.GuardViolation("el pedido no tiene un anticipo pendiente")
	}

	tender, err := s.Prepare(ctx, cmd.Form)
	if err != nil {
		return nil, err
	}
	if tender.Amount.Sub(order.MinimumDeposit).Abs().GreaterThan(s.tolerance) {
		return nil, errorbank.Validation(
			fmt.Sprintf("el anticipo debe ser igual al mínimo requerido (Q%s)", order.MinimumDeposit.StringFixed(2)),
			errorbank.WithDetail("minimum_deposit", order.MinimumDeposit),
		)
	}

	var applied *Applied
	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		applied, err = s.Apply(ctx, order, tender, entity.PaymentConceptDeposit, actor)
		if err != nil {
			return err
		}
		order.DepositState = entity.DepositStatePaid
		order.DepositPaid = tender.Amount
		order.UpdatedBy = actor
		order.UpdatedAt = s.clock().UTC()
		return s.orders.UpdateHeader(ctx, order)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deposit failed")
		return nil, s.failed(ctx, order.ID, "deposit", actor, err)
	}

	s.invalidate(ctx, order.ID)
	s.recordApplied(ctx, order.ID, "deposit", actor, applied,
		fmt.Sprintf("anticipo de Q%s registrado", tender.Amount.StringFixed(2)))
	return applied, nil
}

// RecordBalance registers a payment towards the outstanding balance of an order in
// production flow.
func (s *Service) RecordBalance(ctx context.Context, cmd BalanceCommand) (*Applied, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.RecordBalance", trace.WithAttributes(attribute.Int64("order.id", cmd.OrderID)))
	defer span.End()

	actor, err := requireActor(cmd.Actor)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case entity.OrderStatusApproved, entity.OrderStatusInProduction, entity.OrderStatusCompleted:
	case entity.OrderStatusDraft, entity.OrderStatusQuoted, entity.OrderStatusDelivered,
		entity.OrderStatusCancelled, entity.OrderStatusRejected:
		return nil, errorbank.GuardViolation(fmt.Sprintf("no se pueden registrar abonos en estado %s", order.Status))
	default:
		return nil, errorbank.GuardViolation(fmt.Sprintf("estado desconocido %q", order.Status))
	}

	tender, err := s.Prepare(ctx, cmd.Form)
	if err != nil {
		return nil, err
	}
	outstanding, err := s.Outstanding(ctx, order)
	if err != nil {
		return nil, errorbank.Internal("no se pudo calcular el saldo pendiente", errorbank.WithCause(err))
	}
	if err := s.CheckAmount(tender.Amount, outstanding); err != nil {
		return nil, err
	}

	var applied *Applied
	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		applied, err = s.Apply(ctx, order, tender, entity.PaymentConceptBalance, actor)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "balance payment failed")
		return nil, s.failed(ctx, order.ID, "payment", actor, err)
	}

	s.invalidate(ctx, order.ID)
	s.recordApplied(ctx, order.ID, "payment", actor, applied,
		fmt.Sprintf("abono de Q%s registrado", tender.Amount.StringFixed(2)))
	return applied, nil
}

// Prepare validates a form and resolves its payment method without writing anything.
func (s *Service) Prepare(ctx context.Context, form Form) (Tender, error) {
	if !form.Amount.IsPositive() {
		return Tender{}, errorbank.Validation("el monto debe ser mayor a cero")
	}
	if form.MethodID <= 0 {
		return Tender{}, errorbank.Validation("seleccione un método de pago")
	}
	method, err := s.payments.GetMethod(ctx, form.MethodID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Tender{}, errorbank.Validation("método de pago inválido")
		}
		return Tender{}, errorbank.Internal("no se pudo cargar el método de pago", errorbank.WithCause(err))
	}
	if !method.Active {
		return Tender{}, errorbank.Validation(fmt.Sprintf("el método de pago %s está inactivo", method.Name))
	}

	amount := form.Amount.Round(2)
	tender := Tender{Method: *method, Amount: amount, Received: amount, Change: decimal.Zero}
	if method.IsCash {
		received := form.Received.Round(2)
		if received.LessThan(amount) {
			return Tender{}, errorbank.Validation(
				fmt.Sprintf("el efectivo recibido (Q%s) es menor al monto (Q%s)", received.StringFixed(2), amount.StringFixed(2)),
			)
		}
		tender.Received = received
		tender.Change = received.Sub(amount)
	}
	return tender, nil
}

// CheckAmount rejects amounts above the outstanding balance plus tolerance.
func (s *Service) CheckAmount(amount, outstanding decimal.Decimal) error {
	if amount.GreaterThan(outstanding.Add(s.tolerance)) {
		return errorbank.Validation(
			fmt.Sprintf("el monto (Q%s) excede el saldo pendiente (Q%s)", amount.StringFixed(2), outstanding.StringFixed(2)),
			errorbank.WithDetail("outstanding", outstanding),
		)
	}
	return nil
}

// Apply writes the receipt and, when the actor has an open register session, the matching cash
// movement. It must run inside the caller's transaction.
func (s *Service) Apply(ctx context.Context, order *entity.Order, tender Tender, concept entity.PaymentConcept, actor string) (*Applied, error) {
	now := s.clock().UTC()
	receipt := entity.PaymentReceipt{
		OrderID:   order.ID,
		MethodID:  tender.Method.ID,
		Concept:   concept,
		Amount:    tender.Amount,
		Received:  tender.Received,
		Change:    tender.Change,
		CreatedBy: actor,
		CreatedAt: now,
	}
	if err := s.payments.Insert(ctx, &receipt); err != nil {
		return nil, fmt.Errorf("insert receipt: %w", err)
	}

	applied := &Applied{Receipt: receipt}
	session, err := s.cash.ActiveSession(ctx, actor)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return applied, nil
		}
		return nil, fmt.Errorf("resolve cash session: %w", err)
	}
	movement := entity.CashMovement{
		SessionID: session.ID,
		Kind:      entity.CashMovementIncome,
		Amount:    tender.Amount,
		Reference: entity.Reference(s.prefix, order.ID),
		CreatedBy: actor,
		CreatedAt: now,
	}
	if err := s.cash.InsertMovement(ctx, &movement); err != nil {
		return nil, fmt.Errorf("insert cash movement: %w", err)
	}
	applied.Movement = &movement
	return applied, nil
}

// Outstanding is the total minus balance receipts minus the paid deposit, floored at zero.
func (s *Service) Outstanding(ctx context.Context, order *entity.Order) (decimal.Decimal, error) {
	paid, err := s.payments.SumByOrder(ctx, order.ID, entity.PaymentConceptBalance)
	if err != nil {
		return decimal.Zero, err
	}
	return outstanding(order, paid), nil
}

func outstanding(order *entity.Order, balancePaid decimal.Decimal) decimal.Decimal {
	remaining := order.Total.Sub(balancePaid)
	if order.DepositState == entity.DepositStatePaid {
		remaining = remaining.Sub(order.DepositPaid)
	}
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining.Round(2)
}

// Statement returns the receipts of an order together with its balance.
func (s *Service) Statement(ctx context.Context, orderID int64) (*Statement, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.Statement", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	receipts, err := s.payments.ListByOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("no se pudieron cargar los pagos", errorbank.WithCause(err))
	}

	balancePaid := decimal.Zero
	for _, receipt := range receipts {
		if receipt.Concept == entity.PaymentConceptBalance {
			balancePaid = balancePaid.Add(receipt.Amount)
		}
	}
	depositPaid := decimal.Zero
	if order.DepositState == entity.DepositStatePaid {
		depositPaid = order.DepositPaid
	}
	if receipts == nil {
		receipts = []entity.PaymentReceipt{}
	}
	return &Statement{
		OrderID:     order.ID,
		Total:       order.Total,
		DepositPaid: depositPaid,
		BalancePaid: balancePaid,
		Outstanding: outstanding(order, balancePaid),
		Receipts:    receipts,
	}, nil
}

func (s *Service) loadOrder(ctx context.Context, id int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorbank.Missing(fmt.Sprintf("pedido %d no encontrado", id))
		}
		return nil, errorbank.Internal("no se pudo cargar el pedido", errorbank.WithCause(err))
	}
	return order, nil
}

func (s *Service) failed(ctx context.Context, orderID int64, action, actor string, err error) error {
	s.logger.Error("payment rolled back", zap.Int64("order_id", orderID), zap.String("action", action), zap.Error(err))
	s.audit.Record(ctx, audit.Record{
		Entity:      "order",
		EntityID:    orderID,
		Action:      action,
		Actor:       actor,
		Description: fmt.Sprintf("pago revertido: %v", err),
		Level:       entity.AuditLevelWarning,
	})
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return errorbank.TransactionFailure(fmt.Sprintf("no se pudo registrar el pago: %v", err), err)
}

func (s *Service) recordApplied(ctx context.Context, orderID int64, action, actor string, applied *Applied, description string) {
	s.audit.Record(ctx, audit.Record{
		Entity:      "order",
		EntityID:    orderID,
		Action:      action,
		Actor:       actor,
		Description: description,
	})
	if applied != nil && applied.Movement == nil {
		s.WarnNoSession(ctx, orderID, actor)
	}
}

// WarnNoSession notes a payment taken while the actor had no open register session.
func (s *Service) WarnNoSession(ctx context.Context, orderID int64, actor string) {
	s.logger.Warn("payment recorded without cash session", zap.Int64("order_id", orderID), zap.String("actor", actor))
	s.audit.Record(ctx, audit.Record{
		Entity:      "order",
		EntityID:    orderID,
		Action:      "payment",
		Actor:       actor,
		Description: "pago registrado sin caja abierta",
		Level:       entity.AuditLevelWarning,
	})
}

func (s *Service) invalidate(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.OrderKey(orderID)); err != nil {
		s.logger.Warn("orders cache invalidation failed", zap.Int64("id", orderID), zap.Error(err))
	}
}

func requireActor(actor string) (string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", errorbank.Validation("se requiere el usuario que realiza la operación")
	}
	return actor, nil
}
