// Package stock persists per-product stock records with bun.
package stock

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/taller/internal/database"
	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/taller/repository/stock")

// Module provides the stock repository to Fx.
var Module = fx.Provide(
	fx.Annotate(NewRepository, fx.As(new(repository.StockRepository))),
)

// Repository reads and writes stock records.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Get loads the stock record of a product. Inside a transaction the row stays locked until
// commit on dialects that support SELECT ... FOR UPDATE.
func (r *Repository) Get(ctx context.Context, productID int64) (*entity.Stock, error) {
	ctx, span := repoTracer.Start(ctx, "StockRepository.Get", trace.WithAttributes(attribute.Int64("product.id", productID)))
	defer span.End()

	stock := new(entity.Stock)
	q := database.Executor(ctx, r.reader).NewSelect().Model(stock).Where("product_id = ?", productID)
	if database.InTx(ctx) && r.writer.Dialect().Name() != dialect.SQLite {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return stock, nil
}

// Save writes the on-hand quantity of an existing record.
func (r *Repository) Save(ctx context.Context, stock *entity.Stock) error {
	ctx, span := repoTracer.Start(ctx, "StockRepository.Save", trace.WithAttributes(
		attribute.Int64("product.id", stock.ProductID),
		attribute.Int("stock.on_hand", stock.OnHand),
	))
	defer span.End()

	res, err := database.Executor(ctx, r.writer).NewUpdate().Model(stock).
		Column("on_hand", "updated_by", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListBelowReorder returns records at or below their reorder level.
func (r *Repository) ListBelowReorder(ctx context.Context) ([]entity.Stock, error) {
	ctx, span := repoTracer.Start(ctx, "StockRepository.ListBelowReorder")
	defer span.End()

	var stocks []entity.Stock
	err := database.Executor(ctx, r.reader).NewSelect().Model(&stocks).
		Where("on_hand <= reorder_level").
		Order("product_id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return stocks, nil
}
