// Package cash persists register sessions and movements with bun.
package cash

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"

	"github.com/Additional-Code/taller/internal/database"
	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/taller/repository/cash")

// Module provides the cash repository to Fx.
var Module = fx.Provide(
	fx.Annotate(NewRepository, fx.As(new(repository.CashRepository))),
)

// Repository reads sessions and writes movements.
type Repository struct {
	writer *bun.DB
}

// NewRepository wires a repository on the writer connection; session lookups must see
// sessions opened moments ago.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer}
}

// ActiveSession returns the newest open session opened by actor.
func (r *Repository) ActiveSession(ctx context.Context, actor string) (*entity.CashSession, error) {
	ctx, span := repoTracer.Start(ctx, "CashRepository.ActiveSession")
	span.SetAttributes(attribute.String("cash.actor", actor))
	defer span.End()

	session := new(entity.CashSession)
	err := database.Executor(ctx, r.writer).NewSelect().Model(session).
		Where("opened_by = ?", actor).
		Where("closed_at IS NULL").
		Order("opened_at DESC").
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
	return session, nil
}

// InsertMovement records a register movement.
func (r *Repository) InsertMovement(ctx context.Context, movement *entity.CashMovement) error {
	ctx, span := repoTracer.Start(ctx, "CashRepository.InsertMovement")
	span.SetAttributes(attribute.Int64("cash.session_id", movement.SessionID))
	defer span.End()

	if _, err := database.Executor(ctx, r.writer).NewInsert().Model(movement).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}
