// Package inventory answers stock and kardex queries.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/repository"
	"github.com/Additional-Code/taller/pkg/errorbank"
)

// Module provides the inventory service to Fx.
var Module = fx.Provide(NewService)

var serviceTracer = otel.Tracer("github.com/Additional-Code/taller/service/inventory")

const defaultKardexLimit = 100

// Level is the stock position of one product.
type Level struct {
	ProductID    int64  `json:"product_id"`
	Name         string `json:"name"`
	OnHand       int    `json:"on_hand"`
	ReorderLevel int    `json:"reorder_level"`
}

// Service reads stock records and ledger entries.
type Service struct {
	kardex   repository.KardexRepository
	stocks   repository.StockRepository
	products repository.ProductRepository
}

// NewService wires a new Service instance.
func NewService(kardex repository.KardexRepository, stocks repository.StockRepository, products repository.ProductRepository) *Service {
	return &Service{kardex: kardex, stocks: stocks, products: products}
}

// Kardex returns the newest ledger entries of a product.
func (s *Service) Kardex(ctx context.Context, productID int64, limit int) ([]entity.KardexEntry, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.Kardex", trace.WithAttributes(attribute.Int64("product.id", productID)))
	defer span.End()

	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorbank.Missing(fmt.Sprintf("producto %d no encontrado", productID))
		}
		return nil, errorbank.Internal("no se pudo cargar el producto", errorbank.WithCause(err))
	}
	if limit <= 0 {
		limit = defaultKardexLimit
	}
	entries, err := s.kardex.ListByProduct(ctx, productID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("no se pudo cargar el kardex", errorbank.WithCause(err))
	}
	if entries == nil {
		entries = []entity.KardexEntry{}
	}
	return entries, nil
}

// Low lists every product at or below its reorder level.
func (s *Service) Low(ctx context.Context) ([]Level, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.Low")
	defer span.End()

	stocks, err := s.stocks.ListBelowReorder(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("no se pudo cargar el stock", errorbank.WithCause(err))
	}
	return s.levels(ctx, stocks)
}

// Check returns the products among ids that are at or below their reorder level.
func (s *Service) Check(ctx context.Context, ids []int64) ([]Level, error) {
	ctx, span := serviceTracer.Start(ctx, "InventoryService.Check", trace.WithAttributes(attribute.Int("product.count", len(ids))))
	defer span.End()

	var low []entity.Stock
	for _, id := range ids {
		stock, err := s.stocks.Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			span.RecordError(err)
			return nil, fmt.Errorf("load stock of product %d: %w", id, err)
		}
		if stock.BelowReorder() {
			low = append(low, *stock)
		}
	}
	return s.levels(ctx, low)
}

func (s *Service) levels(ctx context.Context, stocks []entity.Stock) ([]Level, error) {
	levels := make([]Level, 0, len(stocks))
	if len(stocks) == 0 {
		return levels, nil
	}
	ids := make([]int64, 0, len(stocks))
	for _, stock := range stocks {
		ids = append(ids, stock.ProductID)
	}
	products, err := s.products.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	for _, stock := range stocks {
		levels = append(levels, Level{
			ProductID:    stock.ProductID,
			Name:         products[stock.ProductID].Name,
			OnHand:       stock.OnHand,
			ReorderLevel: stock.ReorderLevel,
		})
	}
	return levels, nil
}
