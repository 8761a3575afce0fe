package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/service/payment"
)

// LineInput is one requested line. A nil UnitPrice takes the catalog price.
type LineInput struct {
	ProductID int64
	Quantity  int
	UnitPrice *decimal.Decimal
}

// CreateCommand opens a new DRAFT order.
type CreateCommand struct {
	Actor        string
	ClientID     int64
	DeliveryDate *time.Time
	Notes        string
	Lines        []LineInput
}

// EditCommand replaces the header and lines of a DRAFT or QUOTED order. A zero ClientID keeps
// the current client.
type EditCommand struct {
	OrderID      int64
	Actor        string
	ClientID     int64
	DeliveryDate *time.Time
	Notes        string
	Lines        []LineInput
}

// DeliverCommand hands over a completed order, settling the balance with Form.
type DeliverCommand struct {
	OrderID int64
	Actor   string
	Form    payment.Form
}

// Result is the outcome of a lifecycle operation. Changed is false for reported no-ops.
type Result struct {
	Order   *entity.Order
	Message string
	Changed bool
	Payment *payment.Applied
}

// Shortfall is a product without enough stock to be reserved.
type Shortfall struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Available int    `json:"available"`
	Required  int    `json:"required"`
}

// LifecycleEvent is published after every committed transition.
type LifecycleEvent struct {
	OrderID    int64              `json:"order_id"`
	Transition string             `json:"transition"`
	Status     entity.OrderStatus `json:"status"`
	Actor      string             `json:"actor"`
	Total      decimal.Decimal    `json:"total"`
	ProductIDs []int64            `json:"product_ids"`
	OccurredAt time.Time          `json:"occurred_at"`
}

const (
	transitionCreate   = "create"
	transitionQuote    = "quote"
	transitionApprove  = "approve"
	transitionStart    = "start_production"
	transitionFinalize = "finalize"
	transitionDeliver  = "deliver"
	transitionCancel   = "cancel"
	transitionReject   = "reject"
	transitionEdit     = "edit"
)
