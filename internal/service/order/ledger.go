package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/repository"
	"github.com/Additional-Code/taller/pkg/errorbank"
)

// unreserved returns the lines that have no RESERVE entry under the order reference yet.
func (s *Service) unreserved(ctx context.Context, order *entity.Order) ([]entity.OrderLine, error) {
	reference := s.reference(order.ID)
	var pending []entity.OrderLine
	for _, line := range order.Lines {
		_, err := s.kardex.Find(ctx, line.ProductID, reference, entity.MovementReserve)
		switch {
		case err == nil:
			continue
		case errors.Is(err, repository.ErrNotFound):
			pending = append(pending, line)
		default:
			return nil, fmt.Errorf("find reservation of product %d: %w", line.ProductID, err)
		}
	}
	return pending, nil
}

// shortfalls lists every line whose quantity exceeds the stock on hand.
func (s *Service) shortfalls(ctx context.Context, lines []entity.OrderLine) ([]Shortfall, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.products.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	var short []Shortfall
	for _, line := range lines {
		available := 0
		stock, err := s.stocks.Get(ctx, line.ProductID)
		switch {
		case err == nil:
			available = stock.OnHand
		case errors.Is(err, repository.ErrNotFound):
		default:
			return nil, fmt.Errorf("load stock of product %d: %w", line.ProductID, err)
		}
		if available >= line.Quantity {
			continue
		}
		name := products[line.ProductID].Name
		if name == "" {
			name = fmt.Sprintf("producto %d", line.ProductID)
		}
		short = append(short, Shortfall{
			ProductID: line.ProductID,
			Name:      name,
			Available: available,
			Required:  line.Quantity,
		})
	}
	return short, nil
}

func insufficientStock(short []Shortfall) error {
	parts := make([]string, 0, len(short))
	for _, item := range short {
		parts = append(parts, fmt.Sprintf("%s (Disp: %d, Requerido: %d)", item.Name, item.Available, item.Required))
	}
	return errorbank.InsufficientStock(
		"stock insuficiente: "+strings.Join(parts, ", "),
		errorbank.WithDetail("shortfalls", short),
	)
}

// reserve writes a RESERVE entry for the line and takes its quantity off the stock.
func (s *Service) reserve(ctx context.Context, order *entity.Order, line entity.OrderLine, actor string) error {
	stock, err := s.stocks.Get(ctx, line.ProductID)
	if err != nil {
		return fmt.Errorf("load stock of product %d: %w", line.ProductID, err)
	}
	if stock.OnHand < line.Quantity {
		return insufficientStock([]Shortfall{{
			ProductID: line.ProductID,
			Name:      fmt.Sprintf("producto %d", line.ProductID),
			Available: stock.OnHand,
			Required:  line.Quantity,
		}})
	}

	now := s.now()
	entry := &entity.KardexEntry{
		ProductID:  line.ProductID,
		OccurredAt: now,
		Kind:       entity.MovementReserve,
		Quantity:   line.Quantity,
		UnitCost:   line.UnitPrice,
		Reference:  s.reference(order.ID),
		CreatedBy:  actor,
		CreatedAt:  now,
	}
	if err := s.kardex.Insert(ctx, entry); err != nil {
		return fmt.Errorf("insert reservation of product %d: %w", line.ProductID, err)
	}

	stock.OnHand -= line.Quantity
	stock.UpdatedBy = actor
	stock.UpdatedAt = now
	if err := s.stocks.Save(ctx, stock); err != nil {
		return fmt.Errorf("save stock of product %d: %w", line.ProductID, err)
	}
	return nil
}

// consume turns the line's reservation into a consumption in place, or records a new
// consumption when nothing was reserved. Stock is never touched.
func (s *Service) consume(ctx context.Context, order *entity.Order, line entity.OrderLine, actor string) error {
	reference := s.reference(order.ID)
	now := s.now()

	entry, err := s.kardex.Find(ctx, line.ProductID, reference, entity.MovementReserve)
	switch {
	case err == nil:
		entry.Kind = entity.MovementConsume
		entry.UnitCost = line.UnitPrice
		entry.OccurredAt = now
		entry.UpdatedBy = actor
		entry.UpdatedAt = now
		if err := s.kardex.Update(ctx, entry); err != nil {
			return fmt.Errorf("convert reservation of product %d: %w", line.ProductID, err)
		}
		return nil
	case errors.Is(err, repository.ErrNotFound):
		entry = &entity.KardexEntry{
			ProductID:  line.ProductID,
			OccurredAt: now,
			Kind:       entity.MovementConsume,
			Quantity:   line.Quantity,
			UnitCost:   line.UnitPrice,
			Reference:  reference,
			CreatedBy:  actor,
			CreatedAt:  now,
		}
		if err := s.kardex.Insert(ctx, entry); err != nil {
			return fmt.Errorf("insert consumption of product %d: %w", line.ProductID, err)
		}
		return nil
	default:
		return fmt.Errorf("find reservation of product %d: %w", line.ProductID, err)
	}
}

// release puts every reserved quantity of the order back on stock and deletes the entries.
func (s *Service) release(ctx context.Context, order *entity.Order, actor string) (int, error) {
	entries, err := s.kardex.ListByReference(ctx, s.reference(order.ID), entity.MovementReserve)
	if err != nil {
		return 0, fmt.Errorf("list reservations: %w", err)
	}
	now := s.now()
	for _, entry := range entries {
		stock, err := s.stocks.Get(ctx, entry.ProductID)
		if err != nil {
			return 0, fmt.Errorf("load stock of product %d: %w", entry.ProductID, err)
		}
		stock.OnHand += entry.Quantity
		stock.UpdatedBy = actor
		stock.UpdatedAt = now
		if err := s.stocks.Save(ctx, stock); err != nil {
			return 0, fmt.Errorf("save stock of product %d: %w", entry.ProductID, err)
		}
		if err := s.kardex.Delete(ctx, entry.ID); err != nil {
			return 0, fmt.Errorf("delete reservation %d: %w", entry.ID, err)
		}
	}
	return len(entries), nil
}
