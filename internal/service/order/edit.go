package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/pricing"
	"github.com/Additional-Code/taller/pkg/errorbank"
)

// Create opens a DRAFT order priced at the base price.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.Int64("client.id", cmd.ClientID)))
	defer span.End()

	actor, err := requireActor(cmd.Actor)
	if err != nil {
		return nil, s.reject(ctx, span, transitionCreate, err)
	}
	if cmd.ClientID <= 0 {
		return nil, s.reject(ctx, span, transitionCreate, errorbank.Validation("seleccione un cliente"))
	}
	deliveryDate, err := s.checkDeliveryDate(cmd.DeliveryDate)
	if err != nil {
		return nil, s.reject(ctx, span, transitionCreate, err)
	}
	lines, err := s.buildLines(ctx, cmd.Lines)
	if err != nil {
		return nil, s.reject(ctx, span, transitionCreate, err)
	}

	now := s.now()
	order := &entity.Order{
		ClientID:     cmd.ClientID,
		Status:       entity.OrderStatusDraft,
		Notes:        strings.TrimSpace(cmd.Notes),
		DeliveryDate: deliveryDate,
		DepositPaid:  decimal.Zero,
		CreatedBy:    actor,
		UpdatedBy:    actor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	totals := s.calc.Base(lines)
	totals.Apply(order)
	order.DepositState = pricing.NextDepositState(entity.DepositStateUnset, totals.Deposit)

	err = s.commit(ctx, func(ctx context.Context) error {
		return s.orders.Create(ctx, order)
	})
	if err != nil {
		return nil, s.abort(ctx, span, transitionCreate, order.ID, actor, err)
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))
	return s.done(ctx, order, transitionCreate, actor,
		fmt.Sprintf("pedido creado por Q%s", order.Total.StringFixed(2))), nil
}

// Edit replaces header and lines of a DRAFT or QUOTED order whose deposit is not paid. Lines
// are matched by product; totals are recomputed with the elaboration markup. Nothing is written
// when the result equals the stored order.
func (s *Service) Edit(ctx context.Context, cmd EditCommand) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Edit", trace.WithAttributes(attribute.Int64("order.id", cmd.OrderID)))
	defer span.End()

	actor, before, err := s.begin(ctx, cmd.OrderID, cmd.Actor)
	if err != nil {
		return nil, s.reject(ctx, span, transitionEdit, err)
	}
	if !before.Status.Editable() {
		return nil, s.reject(ctx, span, transitionEdit, wrongState("editar", before.Status))
	}
	if before.DepositState == entity.DepositStatePaid {
		return nil, s.reject(ctx, span, transitionEdit, errorbank.GuardViolation("no se puede editar un pedido con anticipo pagado"))
	}
	deliveryDate, err := s.checkDeliveryDate(cmd.DeliveryDate)
	if err != nil {
		return nil, s.reject(ctx, span, transitionEdit, err)
	}
	requested, err := s.buildLines(ctx, cmd.Lines)
	if err != nil {
		return nil, s.reject(ctx, span, transitionEdit, err)
	}

	after := before.Clone()
	if cmd.ClientID > 0 {
		after.ClientID = cmd.ClientID
	}
	after.Notes = strings.TrimSpace(cmd.Notes)
	after.DeliveryDate = deliveryDate

	merged, removed := mergeLines(before, requested)
	totals := s.calc.Elaborated(merged)
	totals.Apply(after)
	after.DepositState = pricing.NextDepositState(before.DepositState, totals.Deposit)

	if !headerChanged(before, after) && !linesChanged(before.Lines, after.Lines) && len(removed) == 0 {
		return s.noop(ctx, before, transitionEdit, "no hay cambios que guardar"), nil
	}

	s.stamp(after, actor)
	err = s.commit(ctx, func(ctx context.Context) error {
		for _, line := range removed {
			if err := s.orders.DeleteLine(ctx, line.ID); err != nil {
				return fmt.Errorf("delete line %d: %w", line.ID, err)
			}
		}
		for i := range after.Lines {
			line := &after.Lines[i]
			if line.ID == 0 {
				if err := s.orders.InsertLine(ctx, line); err != nil {
					return fmt.Errorf("insert line of product %d: %w", line.ProductID, err)
				}
				continue
			}
			if previous, ok := before.Line(line.ProductID); ok && sameLine(previous, *line) {
				continue
			}
			if err := s.orders.UpdateLine(ctx, line); err != nil {
				return fmt.Errorf("update line %d: %w", line.ID, err)
			}
		}
		return s.orders.UpdateHeader(ctx, after)
	})
	if err != nil {
		return nil, s.abort(ctx, span, transitionEdit, after.ID, actor, err)
	}
	return s.done(ctx, after, transitionEdit, actor,
		fmt.Sprintf("pedido actualizado; total Q%s", after.Total.StringFixed(2))), nil
}

func (s *Service) checkDeliveryDate(date *time.Time) (*time.Time, error) {
	if date == nil || date.IsZero() {
		return nil, errorbank.GuardViolation("la fecha de entrega es obligatoria")
	}
	day := dateOf(*date)
	if day.Before(s.today()) {
		return nil, errorbank.GuardViolation("la fecha de entrega no puede ser anterior a hoy")
	}
	return &day, nil
}

// buildLines validates requested lines against the catalog and fills missing prices.
func (s *Service) buildLines(ctx context.Context, inputs []LineInput) ([]entity.OrderLine, error) {
	if len(inputs) == 0 {
		return nil, errorbank.Validation("el pedido debe tener al menos un producto")
	}
	seen := make(map[int64]struct{}, len(inputs))
	ids := make([]int64, 0, len(inputs))
	for _, input := range inputs {
		if input.ProductID <= 0 {
			return nil, errorbank.Validation("producto inválido")
		}
		if _, dup := seen[input.ProductID]; dup {
			return nil, errorbank.Validation(fmt.Sprintf("el producto %d aparece más de una vez", input.ProductID))
		}
		seen[input.ProductID] = struct{}{}
		if input.Quantity <= 0 {
			return nil, errorbank.Validation(fmt.Sprintf("la cantidad del producto %d debe ser mayor a cero", input.ProductID))
		}
		if input.UnitPrice != nil && input.UnitPrice.IsNegative() {
			return nil, errorbank.Validation(fmt.Sprintf("el precio del producto %d no puede ser negativo", input.ProductID))
		}
		ids = append(ids, input.ProductID)
	}

	products, err := s.products.ListByIDs(ctx, ids)
	if err != nil {
		return nil, errorbank.Internal("no se pudieron cargar los productos", errorbank.WithCause(err))
	}
	lines := make([]entity.OrderLine, 0, len(inputs))
	for _, input := range inputs {
		product, ok := products[input.ProductID]
		if !ok {
			return nil, errorbank.Missing(fmt.Sprintf("producto %d no encontrado", input.ProductID))
		}
		if !product.Active {
			return nil, errorbank.Validation(fmt.Sprintf("el producto %s está inactivo", product.Name))
		}
		price := product.UnitPrice
		if input.UnitPrice != nil {
			price = *input.UnitPrice
		}
		lines = append(lines, entity.OrderLine{
			ProductID: input.ProductID,
			Quantity:  input.Quantity,
			UnitPrice: price.Round(2),
		})
	}
	return lines, nil
}

// mergeLines keys the requested lines by product onto the stored ones: matches keep their id,
// new products get id 0 and stored products absent from the request are returned as removed.
func mergeLines(order *entity.Order, requested []entity.OrderLine) ([]entity.OrderLine, []entity.OrderLine) {
	merged := make([]entity.OrderLine, 0, len(requested))
	keep := make(map[int64]struct{}, len(requested))
	for _, line := range requested {
		line.OrderID = order.ID
		if existing, ok := order.Line(line.ProductID); ok {
			line.ID = existing.ID
		}
		keep[line.ProductID] = struct{}{}
		merged = append(merged, line)
	}
	var removed []entity.OrderLine
	for _, line := range order.Lines {
		if _, ok := keep[line.ProductID]; !ok {
			removed = append(removed, line)
		}
	}
	return merged, removed
}

func headerChanged(before, after *entity.Order) bool {
	return before.ClientID != after.ClientID ||
		before.Notes != after.Notes ||
		!sameDate(before.DeliveryDate, after.DeliveryDate) ||
		!before.Total.Equal(after.Total) ||
		before.RequiresDeposit != after.RequiresDeposit ||
		!before.MinimumDeposit.Equal(after.MinimumDeposit) ||
		before.DepositState != after.DepositState
}

func linesChanged(before, after []entity.OrderLine) bool {
	if len(before) != len(after) {
		return true
	}
	byProduct := make(map[int64]entity.OrderLine, len(before))
	for _, line := range before {
		byProduct[line.ProductID] = line
	}
	for _, line := range after {
		previous, ok := byProduct[line.ProductID]
		if !ok || !sameLine(previous, line) {
			return true
		}
	}
	return false
}

func sameLine(a, b entity.OrderLine) bool {
	return a.ID == b.ID &&
		a.Quantity == b.Quantity &&
		a.UnitPrice.Equal(b.UnitPrice) &&
		a.Subtotal.Equal(b.Subtotal)
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return dateOf(*a).Equal(dateOf(*b))
}
