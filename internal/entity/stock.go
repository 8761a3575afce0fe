package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Product is a catalog item that can be ordered.
type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID        int64           `bun:",pk,autoincrement" json:"id"`
	Name      string          `bun:"name,notnull" json:"name"`
	UnitPrice decimal.Decimal `bun:"unit_price,type:numeric(12,2),notnull" json:"unit_price"`
	Active    bool            `bun:"active,notnull" json:"active"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Stock is the on-hand quantity of a product. It only changes together with a kardex entry.
type Stock struct {
	bun.BaseModel `bun:"table:stocks"`

	ProductID    int64     `bun:"product_id,pk" json:"product_id"`
	OnHand       int       `bun:"on_hand,notnull" json:"on_hand"`
	ReorderLevel int       `bun:"reorder_level,notnull" json:"reorder_level"`
	UpdatedBy    string    `bun:"updated_by" json:"updated_by"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}

// BelowReorder reports whether the product needs restocking.
func (s Stock) BelowReorder() bool {
	return s.OnHand <= s.ReorderLevel
}
