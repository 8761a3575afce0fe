// Package audit writes the business audit trail.
package audit

import (
	"context"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/repository"
)

// Module provides the recorder to Fx.
var Module = fx.Provide(NewRecorder)

// Record describes one audited action.
type Record struct {
	Entity      string
	EntityID    int64
	Action      string
	Actor       string
	Description string
	Level       entity.AuditLevel
}

// Recorder appends audit entries. Append failures are logged and never reach the caller.
type Recorder struct {
	repo   repository.AuditRepository
	logger *zap.Logger
	clock  func() time.Time
}

// NewRecorder builds a Recorder backed by repo.
func NewRecorder(repo repository.AuditRepository, logger *zap.Logger) *Recorder {
	return NewRecorderWithClock(repo, logger, time.Now)
}

// NewRecorderWithClock builds a Recorder with an explicit clock.
func NewRecorderWithClock(repo repository.AuditRepository, logger *zap.Logger, clock func() time.Time) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{repo: repo, logger: logger, clock: clock}
}

// Record persists the entry, logging rather than returning any failure.
func (r *Recorder) Record(ctx context.Context, record Record) {
	if r == nil || r.repo == nil {
		return
	}
	level := record.Level
	if level == "" {
		level = entity.AuditLevelInfo
	}
	entry := &entity.AuditEntry{
		Entity:      strings.TrimSpace(record.Entity),
		EntityID:    record.EntityID,
		Action:      strings.TrimSpace(record.Action),
		Actor:       strings.TrimSpace(record.Actor),
		Description: record.Description,
		Level:       level,
		CreatedAt:   r.clock().UTC(),
	}
	if err := r.repo.Append(ctx, entry); err != nil {
		r.logger.Warn("audit append failed",
			zap.String("entity", entry.Entity),
			zap.Int64("entity_id", entry.EntityID),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}
