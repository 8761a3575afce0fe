package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order is a customer order with its lines, totals and deposit tracking.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              int64           `bun:",pk,autoincrement" json:"id"`
	ClientID        int64           `bun:"client_id,notnull" json:"client_id"`
	Status          OrderStatus     `bun:"status,notnull" json:"status"`
	Notes           string          `bun:"notes" json:"notes"`
	DeliveryDate    *time.Time      `bun:"delivery_date" json:"delivery_date,omitempty"`
	RequiresDeposit bool            `bun:"requires_deposit,notnull" json:"requires_deposit"`
	MinimumDeposit  decimal.Decimal `bun:"minimum_deposit,type:numeric(12,2),notnull" json:"minimum_deposit"`
	DepositState    DepositState    `bun:"deposit_state" json:"deposit_state"`
	DepositPaid     decimal.Decimal `bun:"deposit_paid,type:numeric(12,2),notnull" json:"deposit_paid"`
	Total           decimal.Decimal `bun:"total,type:numeric(12,2),notnull" json:"total"`
	CreatedBy       string          `bun:"created_by" json:"created_by"`
	UpdatedBy       string          `bun:"updated_by" json:"updated_by"`
	CreatedAt       time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time       `bun:"updated_at,nullzero" json:"updated_at"`

	Lines []OrderLine `bun:"-" json:"lines"`
}

// OrderLine is one product of an order. A product appears at most once per order.
type OrderLine struct {
	bun.BaseModel `bun:"table:order_lines"`

	ID        int64           `bun:",pk,autoincrement" json:"id"`
	OrderID   int64           `bun:"order_id,notnull" json:"order_id"`
	ProductID int64           `bun:"product_id,notnull" json:"product_id"`
	Quantity  int             `bun:"quantity,notnull" json:"quantity"`
	UnitPrice decimal.Decimal `bun:"unit_price,type:numeric(12,2),notnull" json:"unit_price"`
	Subtotal  decimal.Decimal `bun:"subtotal,type:numeric(12,2),notnull" json:"subtotal"`
}

// Reference ties kardex entries and cash movements back to an order.
func Reference(prefix string, orderID int64) string {
	return fmt.Sprintf("%s-%d", prefix, orderID)
}

// Line returns the line for productID, if present.
func (o *Order) Line(productID int64) (OrderLine, bool) {
	for _, line := range o.Lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return OrderLine{}, false
}

// Clone returns a deep copy suitable for pre-edit snapshots.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	if o.DeliveryDate != nil {
		d := *o.DeliveryDate
		cp.DeliveryDate = &d
	}
	cp.Lines = append([]OrderLine(nil), o.Lines...)
	return &cp
}
