// Package payment persists payment receipts and methods with bun.
package payment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"
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

var repoTracer = otel.Tracer("github.com/Additional-Code/taller/repository/payment")

// Module provides the payment repository to Fx.
var Module = fx.Provide(
	fx.Annotate(NewRepository, fx.As(new(repository.PaymentRepository))),
)

// Repository reads and writes receipts.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Insert records a receipt.
func (r *Repository) Insert(ctx context.Context, receipt *entity.PaymentReceipt) error {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.Insert", trace.WithAttributes(
		attribute.Int64("order.id", receipt.OrderID),
		attribute.String("payment.concept", string(receipt.Concept)),
	))
	defer span.End()

	if _, err := database.Executor(ctx, r.writer).NewInsert().Model(receipt).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// ListByOrder returns the receipts of an order, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]entity.PaymentReceipt, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.ListByOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var receipts []entity.PaymentReceipt
	if err := database.Executor(ctx, r.reader).NewSelect().Model(&receipts).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return receipts, nil
}

// SumByOrder adds up the receipts of one concept for an order.
func (r *Repository) SumByOrder(ctx context.Context, orderID int64, concept entity.PaymentConcept) (decimal.Decimal, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.SumByOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var sum decimal.NullDecimal
	err := database.Executor(ctx, r.reader).NewSelect().
		Model((*entity.PaymentReceipt)(nil)).
		ColumnExpr("SUM(amount)").
		Where("order_id = ?", orderID).
		Where("concept = ?", concept).
		Scan(ctx, &sum)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sum failed")
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// GetMethod loads a payment method.
func (r *Repository) GetMethod(ctx context.Context, id int64) (*entity.PaymentMethod, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.GetMethod", trace.WithAttributes(attribute.Int64("payment_method.id", id)))
	defer span.End()

	method := new(entity.PaymentMethod)
	err := database.Executor(ctx, r.reader).NewSelect().Model(method).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return method, nil
}
