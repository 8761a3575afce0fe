// Package product reads the product catalog with bun.
package product

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"

	"github.com/Additional-Code/taller/internal/database"
	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/taller/repository/product")

// Module provides the product repository to Fx.
var Module = fx.Provide(
	fx.Annotate(NewRepository, fx.As(new(repository.ProductRepository))),
)

// Repository reads products.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository on the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// GetByID loads one product.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.GetByID")
	span.SetAttributes(attribute.Int64("product.id", id))
	defer span.End()

	product := new(entity.Product)
	err := database.Executor(ctx, r.reader).NewSelect().Model(product).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return product, nil
}

// ListByIDs loads the products with the given ids, keyed by id. Missing ids are absent.
func (r *Repository) ListByIDs(ctx context.Context, ids []int64) (map[int64]entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.ListByIDs")
	span.SetAttributes(attribute.Int("product.count", len(ids)))
	defer span.End()

	out := make(map[int64]entity.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var products []entity.Product
	err := database.Executor(ctx, r.reader).NewSelect().Model(&products).Where("id IN (?)", bun.In(ids)).Scan(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}
