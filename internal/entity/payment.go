package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// PaymentConcept distinguishes deposits from balance payments.
type PaymentConcept string

const (
	PaymentConceptDeposit PaymentConcept = "DEPOSIT"
	PaymentConceptBalance PaymentConcept = "BALANCE"
)

// PaymentMethod is a way of paying (cash, card, transfer).
type PaymentMethod struct {
	bun.BaseModel `bun:"table:payment_methods"`

	ID     int64  `bun:",pk,autoincrement" json:"id"`
	Name   string `bun:"name,notnull" json:"name"`
	IsCash bool   `bun:"is_cash,notnull" json:"is_cash"`
	Active bool   `bun:"active,notnull" json:"active"`
}

// PaymentReceipt is an immutable record of money received for an order.
type PaymentReceipt struct {
	bun.BaseModel `bun:"table:payment_receipts"`

	ID        int64           `bun:",pk,autoincrement" json:"id"`
	OrderID   int64           `bun:"order_id,notnull" json:"order_id"`
	MethodID  int64           `bun:"method_id,notnull" json:"method_id"`
	Concept   PaymentConcept  `bun:"concept,notnull" json:"concept"`
	Amount    decimal.Decimal `bun:"amount,type:numeric(12,2),notnull" json:"amount"`
	Received  decimal.Decimal `bun:"received,type:numeric(12,2),notnull" json:"received"`
	Change    decimal.Decimal `bun:"change_given,type:numeric(12,2),notnull" json:"change"`
	CreatedBy string          `bun:"created_by" json:"created_by"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

// CashMovementKind is the direction of a cash register movement.
type CashMovementKind string

const CashMovementIncome CashMovementKind = "INCOME"

// CashSession is a bounded period of register activity.
type CashSession struct {
	bun.BaseModel `bun:"table:cash_sessions"`

	ID       int64      `bun:",pk,autoincrement" json:"id"`
	OpenedBy string     `bun:"opened_by,notnull" json:"opened_by"`
	OpenedAt time.Time  `bun:"opened_at,notnull" json:"opened_at"`
	ClosedAt *time.Time `bun:"closed_at" json:"closed_at,omitempty"`
}

// CashMovement is a register entry written alongside a receipt when a session is open.
type CashMovement struct {
	bun.BaseModel `bun:"table:cash_movements"`

	ID        int64            `bun:",pk,autoincrement" json:"id"`
	SessionID int64            `bun:"session_id,notnull" json:"session_id"`
	Kind      CashMovementKind `bun:"kind,notnull" json:"kind"`
	Amount    decimal.Decimal  `bun:"amount,type:numeric(12,2),notnull" json:"amount"`
	Reference string           `bun:"reference" json:"reference"`
	CreatedBy string           `bun:"created_by" json:"created_by"`
	CreatedAt time.Time        `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}
