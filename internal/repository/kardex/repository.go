// Package kardex persists ledger entries with bun.
package kardex

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/taller/internal/database"
	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/taller/repository/kardex")

// Module provides the kardex repository to Fx.
var Module = fx.Provide(
	fx.Annotate(NewRepository, fx.As(new(repository.KardexRepository))),
)

// Repository reads and writes kardex entries.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Insert appends an entry.
func (r *Repository) Insert(ctx context.Context, entry *entity.KardexEntry) error {
	ctx, span := repoTracer.Start(ctx, "KardexRepository.Insert", trace.WithAttributes(
		attribute.Int64("product.id", entry.ProductID),
		attribute.String("kardex.kind", string(entry.Kind)),
	))
	defer span.End()

	if _, err := database.Executor(ctx, r.writer).NewInsert().Model(entry).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Update rewrites the kind, cost and timestamps of an entry.
func (r *Repository) Update(ctx context.Context, entry *entity.KardexEntry) error {
	ctx, span := repoTracer.Start(ctx, "KardexRepository.Update", trace.WithAttributes(attribute.Int64("kardex.id", entry.ID)))
	defer span.End()

	res, err := database.Executor(ctx, r.writer).NewUpdate().Model(entry).
		Column("kind", "unit_cost", "occurred_at", "updated_by", "updated_at").
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

// Delete removes an entry.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "KardexRepository.Delete", trace.WithAttributes(attribute.Int64("kardex.id", id)))
	defer span.End()

	if _, err := database.Executor(ctx, r.writer).NewDelete().Model((*entity.KardexEntry)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	return nil
}

// Find returns the oldest entry of kind for a product and reference.
func (r *Repository) Find(ctx context.Context, productID int64, reference string, kind entity.Movement) (*entity.KardexEntry, error) {
	ctx, span := repoTracer.Start(ctx, "KardexRepository.Find", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.String("kardex.reference", reference),
	))
	defer span.End()

	entry := new(entity.KardexEntry)
	err := database.Executor(ctx, r.reader).NewSelect().Model(entry).
		Where("product_id = ?", productID).
		Where("reference = ?", reference).
		Where("kind = ?", kind).
		Order("id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return entry, nil
}

// ListByReference returns all entries of kind tied to reference.
func (r *Repository) ListByReference(ctx context.Context, reference string, kind entity.Movement) ([]entity.KardexEntry, error) {
	ctx, span := repoTracer.Start(ctx, "KardexRepository.ListByReference", trace.WithAttributes(attribute.String("kardex.reference", reference)))
	defer span.End()

	var entries []entity.KardexEntry
	err := database.Executor(ctx, r.reader).NewSelect().Model(&entries).
		Where("reference = ?", reference).
		Where("kind = ?", kind).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return entries, nil
}

// ListByProduct returns the newest entries of a product.
func (r *Repository) ListByProduct(ctx context.Context, productID int64, limit int) ([]entity.KardexEntry, error) {
	ctx, span := repoTracer.Start(ctx, "KardexRepository.ListByProduct", trace.WithAttributes(attribute.Int64("product.id", productID)))
	defer span.End()

	var entries []entity.KardexEntry
	q := database.Executor(ctx, r.reader).NewSelect().Model(&entries).
		Where("product_id = ?", productID).
		Order("occurred_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return entries, nil
}
