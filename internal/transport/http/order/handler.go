package order

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/taller/internal/config"
	"github.com/Additional-Code/taller/internal/dto"
	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/presentation/http/response"
	service "github.com/Additional-Code/taller/internal/service/order"
	"github.com/Additional-Code/taller/internal/service/payment"
	"github.com/Additional-Code/taller/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/taller/transport/http/order")

// ActorHeader names the request header identifying the acting user.
const ActorHeader = "X-Actor"

const dateLayout = "2006-01-02"

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc      *service.Service
	payments *payment.Service
	prefix   string
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, payments *payment.Service, cfg config.Config) *Handler {
	prefix := cfg.Orders.ReferencePrefix
	if prefix == "" {
		prefix = "PEDIDO"
	}
	return &Handler{svc: svc, payments: payments, prefix: prefix}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("/:id", h.getByID)
	g.POST("", h.create)
	g.PUT("/:id", h.edit)
	g.POST("/:id/quote", h.transition("orders.quote", (*service.Service).Quote))
	g.POST("/:id/approve", h.transition("orders.approve", (*service.Service).Approve))
	g.POST("/:id/start", h.transition("orders.start", (*service.Service).StartProduction))
	g.POST("/:id/finalize", h.transition("orders.finalize", (*service.Service).Finalize))
	g.POST("/:id/cancel", h.transition("orders.cancel", (*service.Service).Cancel))
	g.POST("/:id/reject", h.transition("orders.reject", (*service.Service).Reject))
	g.POST("/:id/deliver", h.deliver)
	g.POST("/:id/deposit", h.deposit)
	g.POST("/:id/payments", h.balance)
	g.GET("/:id/statement", h.statement)
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(h.toDTO(order)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.OrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	deliveryDate, err := parseDate(payload.DeliveryDate)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	span.SetAttributes(attribute.Int64("client.id", payload.ClientID))
	defer span.End()

	res, err := h.svc.Create(ctx, service.CreateCommand{
		Actor:        actorOf(c),
		ClientID:     payload.ClientID,
		DeliveryDate: deliveryDate,
		Notes:        payload.Notes,
		Lines:        toLines(payload.Lines),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return h.result(b.WithStatus(http.StatusCreated), res)
}

func (h *Handler) edit(c echo.Context) error {
	b := response.New(c)

	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.OrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	deliveryDate, err := parseDate(payload.DeliveryDate)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.edit", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := h.svc.Edit(ctx, service.EditCommand{
		OrderID:      id,
		Actor:        actorOf(c),
		ClientID:     payload.ClientID,
		DeliveryDate: deliveryDate,
		Notes:        payload.Notes,
		Lines:        toLines(payload.Lines),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return h.result(b, res)
}

func (h *Handler) transition(name string, op func(*service.Service, context.Context, int64, string) (*service.Result, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		b := response.New(c)

		id, err := orderID(c)
		if err != nil {
			return b.WithError(err).Build()
		}

		ctx, span := httpTracer.Start(c.Request().Context(), name, trace.WithAttributes(attribute.Int64("order.id", id)))
		defer span.End()

		res, err := op(h.svc, ctx, id, actorOf(c))
		if err != nil {
			return b.WithError(err).Build()
		}

		return h.result(b, res)
	}
}

func (h *Handler) deliver(c echo.Context) error {
	b := response.New(c)

	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.PaymentRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.deliver", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	res, err := h.svc.Deliver(ctx, service.DeliverCommand{
		OrderID: id,
		Actor:   actorOf(c),
		Form:    toForm(payload),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return h.result(b, res)
}

func (h *Handler) deposit(c echo.Context) error {
	b := response.New(c)

	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.PaymentRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.deposit", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	applied, err := h.payments.RecordDeposit(ctx, payment.DepositCommand{
		OrderID: id,
		Actor:   actorOf(c),
		Form:    toForm(payload),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toReceipt(applied)).WithMessage("anticipo registrado").Build()
}

func (h *Handler) balance(c echo.Context) error {
	b := response.New(c)

	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.PaymentRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.balance", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	applied, err := h.payments.RecordBalance(ctx, payment.BalanceCommand{
		OrderID: id,
		Actor:   actorOf(c),
		Form:    toForm(payload),
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toReceipt(applied)).WithMessage("abono registrado").Build()
}

func (h *Handler) statement(c echo.Context) error {
	b := response.New(c)

	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.statement", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	st, err := h.payments.Statement(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	receipts := make([]dto.ReceiptResponse, 0, len(st.Receipts))
	for _, receipt := range st.Receipts {
		receipts = append(receipts, receiptDTO(receipt, false))
	}
	return b.WithData(dto.StatementResponse{
		OrderID:     st.OrderID,
		Total:       st.Total.StringFixed(2),
		DepositPaid: st.DepositPaid.StringFixed(2),
		BalancePaid: st.BalancePaid.StringFixed(2),
		Outstanding: st.Outstanding.StringFixed(2),
		Receipts:    receipts,
	}).Build()
}

func (h *Handler) result(b *response.Builder, res *service.Result) error {
	b = b.WithData(h.toDTO(res.Order)).WithMessage(res.Message).WithMeta("changed", res.Changed)
	if res.Payment != nil {
		b = b.WithMeta("receipt", toReceipt(res.Payment))
	}
	return b.Build()
}

func orderID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithCause(err))
	}
	return id, nil
}

func actorOf(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(ActorHeader))
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, errorbank.Validation("fecha de entrega inválida, use AAAA-MM-DD", errorbank.WithCause(err))
	}
	return &date, nil
}

func toLines(lines []dto.LineRequest) []service.LineInput {
	out := make([]service.LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, service.LineInput{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return out
}

func toForm(p dto.PaymentRequest) payment.Form {
	return payment.Form{MethodID: p.MethodID, Amount: p.Amount, Received: p.Received}
}

func toReceipt(applied *payment.Applied) dto.ReceiptResponse {
	return receiptDTO(applied.Receipt, applied.Movement != nil)
}

func receiptDTO(r entity.PaymentReceipt, cashEntry bool) dto.ReceiptResponse {
	return dto.ReceiptResponse{
		ID:        r.ID,
		MethodID:  r.MethodID,
		Concept:   string(r.Concept),
		Amount:    r.Amount.StringFixed(2),
		Received:  r.Received.StringFixed(2),
		Change:    r.Change.StringFixed(2),
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
		CashEntry: cashEntry,
	}
}

func (h *Handler) toDTO(order *entity.Order) dto.OrderResponse {
	lines := make([]dto.OrderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, dto.OrderLineResponse{
			ID:        line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			Subtotal:  line.Subtotal.StringFixed(2),
		})
	}
	out := dto.OrderResponse{
		ID:              order.ID,
		Reference:       entity.Reference(h.prefix, order.ID),
		ClientID:        order.ClientID,
		Status:          string(order.Status),
		Notes:           order.Notes,
		Total:           order.Total.StringFixed(2),
		RequiresDeposit: order.RequiresDeposit,
		MinimumDeposit:  order.MinimumDeposit.StringFixed(2),
		DepositState:    string(order.DepositState),
		DepositPaid:     order.DepositPaid.StringFixed(2),
		Lines:           lines,
		CreatedBy:       order.CreatedBy,
		UpdatedBy:       order.UpdatedBy,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	if order.DeliveryDate != nil {
		out.DeliveryDate = order.DeliveryDate.Format(dateLayout)
	}
	return out
}
