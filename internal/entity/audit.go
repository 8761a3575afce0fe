package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditLevel grades an audit entry.
type AuditLevel string

const (
	AuditLevelInfo    AuditLevel = "info"
	AuditLevelWarning AuditLevel = "warning"
)

// AuditEntry is an append-only trail of business actions.
type AuditEntry struct {
	bun.BaseModel `bun:"table:audit_entries"`

	ID          int64      `bun:",pk,autoincrement" json:"id"`
	Entity      string     `bun:"entity,notnull" json:"entity"`
	EntityID    int64      `bun:"entity_id" json:"entity_id"`
	Action      string     `bun:"action,notnull" json:"action"`
	Actor       string     `bun:"actor" json:"actor"`
	Description string     `bun:"description" json:"description"`
	Level       AuditLevel `bun:"level,notnull" json:"level"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}
