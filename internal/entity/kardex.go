package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// KardexEntry is a stock movement of one product. Entries are append-only except for the
// in-place conversion of a reservation into a consumption.
type KardexEntry struct {
	bun.BaseModel `bun:"table:kardex_entries"`

	ID         int64           `bun:",pk,autoincrement" json:"id"`
	ProductID  int64           `bun:"product_id,notnull" json:"product_id"`
	OccurredAt time.Time       `bun:"occurred_at,notnull" json:"occurred_at"`
	Kind       Movement        `bun:"kind,notnull" json:"kind"`
	Quantity   int             `bun:"quantity,notnull" json:"quantity"`
	UnitCost   decimal.Decimal `bun:"unit_cost,type:numeric(12,2),notnull" json:"unit_cost"`
	Reference  string          `bun:"reference,notnull" json:"reference"`
	CreatedBy  string          `bun:"created_by" json:"created_by"`
	UpdatedBy  string          `bun:"updated_by" json:"updated_by"`
	CreatedAt  time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time       `bun:"updated_at,nullzero" json:"updated_at"`
}
