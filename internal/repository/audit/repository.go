// Package audit persists audit entries with bun.
package audit

import (
	"context"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/Additional-Code/taller/internal/database"
	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/repository"
)

// Module provides the audit repository to Fx.
var Module = fx.Provide(
	fx.Annotate(NewRepository, fx.As(new(repository.AuditRepository))),
)

// Repository appends audit entries.
type Repository struct {
	writer *bun.DB
}

// NewRepository wires a repository on the writer connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer}
}

// Append always writes outside any transaction in ctx so entries survive rollbacks.
func (r *Repository) Append(ctx context.Context, entry *entity.AuditEntry) error {
	_, err := r.writer.NewInsert().Model(entry).Exec(ctx)
	return err
}
