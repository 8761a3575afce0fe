package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID              int64               `json:"id"`
	Reference       string              `json:"reference"`
	ClientID        int64               `json:"client_id"`
	Status          string              `json:"status"`
	Notes           string              `json:"notes,omitempty"`
	DeliveryDate    string              `json:"delivery_date,omitempty"`
	Total           string              `json:"total"`
	RequiresDeposit bool                `json:"requires_deposit"`
	MinimumDeposit  string              `json:"minimum_deposit"`
	DepositState    string              `json:"deposit_state,omitempty"`
	DepositPaid     string              `json:"deposit_paid"`
	Lines           []OrderLineResponse `json:"lines"`
	CreatedBy       string              `json:"created_by"`
	UpdatedBy       string              `json:"updated_by"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// OrderLineResponse is one line of an order.
type OrderLineResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

// LineRequest is one requested order line. A missing unit_price takes the catalog price.
type LineRequest struct {
	ProductID int64            `json:"product_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// OrderRequest carries the header and lines of a create or edit call. Dates use YYYY-MM-DD.
type OrderRequest struct {
	ClientID     int64         `json:"client_id"`
	DeliveryDate string        `json:"delivery_date"`
	Notes        string        `json:"notes"`
	Lines        []LineRequest `json:"lines"`
}

// PaymentRequest describes money handed over for an order.
type PaymentRequest struct {
	MethodID int64           `json:"method_id"`
	Amount   decimal.Decimal `json:"amount"`
	Received decimal.Decimal `json:"received"`
}

// ReceiptResponse is a recorded payment.
type ReceiptResponse struct {
	ID        int64     `json:"id"`
	MethodID  int64     `json:"method_id"`
	Concept   string    `json:"concept"`
	Amount    string    `json:"amount"`
	Received  string    `json:"received"`
	Change    string    `json:"change"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	CashEntry bool      `json:"cash_entry"`
}

// StatementResponse summarises what an order has paid and still owes.
type StatementResponse struct {
	OrderID     int64             `json:"order_id"`
	Total       string            `json:"total"`
	DepositPaid string            `json:"deposit_paid"`
	BalancePaid string            `json:"balance_paid"`
	Outstanding string            `json:"outstanding"`
	Receipts    []ReceiptResponse `json:"receipts"`
}

// KardexEntryResponse is one stock movement of a product.
type KardexEntryResponse struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	Kind       string    `json:"kind"`
	Quantity   int       `json:"quantity"`
	UnitCost   string    `json:"unit_cost"`
	Reference  string    `json:"reference"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedBy  string    `json:"created_by"`
	UpdatedBy  string    `json:"updated_by,omitempty"`
}

// StockLevelResponse is the stock position of a product at or below its reorder level.
type StockLevelResponse struct {
	ProductID    int64  `json:"product_id"`
	Name         string `json:"name"`
	OnHand       int    `json:"on_hand"`
	ReorderLevel int    `json:"reorder_level"`
}
