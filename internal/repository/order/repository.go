package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/taller/internal/database"
	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/taller/repository/order")

// Repository encapsulates read/write access for orders and their lines.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order header followed by its lines.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.Int64("order.client_id", order.ClientID)))
	defer span.End()

	db := database.Executor(ctx, r.writer)
	if _, err := db.NewInsert().Model(order).Exec(ctx); err != nil {
		return spanError(span, "insert order failed", err)
	}
	for i := range order.Lines {
		order.Lines[i].OrderID = order.ID
		if _, err := db.NewInsert().Model(&order.Lines[i]).Exec(ctx); err != nil {
			return spanError(span, "insert line failed", err)
		}
	}
	return nil
}

// GetByID loads an order and its lines. Inside a transaction the transaction is used so
// guards read their own writes; otherwise the read replica serves the query.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	db := database.Executor(ctx, r.reader)
	order := new(entity.Order)
	err := db.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, spanError(span, "select failed", err)
	}

	if err := db.NewSelect().Model(&order.Lines).Where("order_id = ?", id).Order("id ASC").Scan(ctx); err != nil {
		return nil, spanError(span, "select lines failed", err)
	}
	return order, nil
}

// UpdateHeader writes every header column of the order.
func (r *Repository) UpdateHeader(ctx context.Context, order *entity.Order) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateHeader", trace.WithAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.String("order.status", string(order.Status)),
	))
	defer span.End()

	res, err := database.Executor(ctx, r.writer).NewUpdate().Model(order).WherePK().Exec(ctx)
	if err != nil {
		return spanError(span, "update failed", err)
	}
	return requireAffected(res)
}

// InsertLine adds a line to an existing order.
func (r *Repository) InsertLine(ctx context.Context, line *entity.OrderLine) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.InsertLine", trace.WithAttributes(attribute.Int64("order.id", line.OrderID)))
	defer span.End()

	if _, err := database.Executor(ctx, r.writer).NewInsert().Model(line).Exec(ctx); err != nil {
		return spanError(span, "insert line failed", err)
	}
	return nil
}

// UpdateLine rewrites quantity, price and subtotal of a line.
func (r *Repository) UpdateLine(ctx context.Context, line *entity.OrderLine) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateLine", trace.WithAttributes(attribute.Int64("order_line.id", line.ID)))
	defer span.End()

	res, err := database.Executor(ctx, r.writer).NewUpdate().Model(line).
		Column("quantity", "unit_price", "subtotal").
		WherePK().
		Exec(ctx)
	if err != nil {
		return spanError(span, "update line failed", err)
	}
	return requireAffected(res)
}

// DeleteLine removes a line.
func (r *Repository) DeleteLine(ctx context.Context, lineID int64) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.DeleteLine", trace.WithAttributes(attribute.Int64("order_line.id", lineID)))
	defer span.End()

	_, err := database.Executor(ctx, r.writer).NewDelete().Model((*entity.OrderLine)(nil)).Where("id = ?", lineID).Exec(ctx)
	if err != nil {
		return spanError(span, "delete line failed", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func spanError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}
