// Package pricing derives order totals and deposit requirements.
package pricing

import (
	"github.com/shopspring/decimal"
	"go.uber.org/fx"

	"github.com/Additional-Code/taller/internal/config"
	"github.com/Additional-Code/taller/internal/entity"
)

// Module provides the calculator to Fx.
var Module = fx.Provide(New)

const moneyPlaces = 2

// Rules are the business constants behind the calculation.
type Rules struct {
	DepositThreshold  decimal.Decimal
	DepositRate       decimal.Decimal
	ElaborationMarkup decimal.Decimal
}

// DefaultRules mirrors the configuration defaults.
func DefaultRules() Rules {
	return Rules{
		DepositThreshold:  decimal.NewFromInt(300),
		DepositRate:       decimal.RequireFromString("0.25"),
		ElaborationMarkup: decimal.NewFromInt(2),
	}
}

// Deposit is the prepayment requirement for a total.
type Deposit struct {
	Required bool
	Minimum  decimal.Decimal
}

// Totals is the result of pricing a set of lines.
type Totals struct {
	Lines   []entity.OrderLine
	Total   decimal.Decimal
	Deposit Deposit
}

// Calculator is a pure function of its rules; it never touches storage.
type Calculator struct {
	rules Rules
}

// New builds a Calculator from the order rules in configuration.
func New(cfg config.Config) *Calculator {
	return NewWithRules(Rules{
		DepositThreshold:  cfg.Orders.DepositThreshold,
		DepositRate:       cfg.Orders.DepositRate,
		ElaborationMarkup: cfg.Orders.ElaborationMarkup,
	})
}

// NewWithRules builds a Calculator with explicit rules.
func NewWithRules(rules Rules) *Calculator {
	return &Calculator{rules: rules}
}

// Rules returns the calculator rules.
func (c *Calculator) Rules() Rules {
	return c.rules
}

// Base prices lines at their unit price. Used when quoting and creating orders.
func (c *Calculator) Base(lines []entity.OrderLine) Totals {
	return c.compute(lines, decimal.NewFromInt(1))
}

// Elaborated prices lines with the elaboration markup applied. Used when saving edits.
func (c *Calculator) Elaborated(lines []entity.OrderLine) Totals {
	return c.compute(lines, c.rules.ElaborationMarkup)
}

// DepositFor derives the deposit requirement of a total without repricing lines.
func (c *Calculator) DepositFor(total decimal.Decimal) Deposit {
	if total.LessThan(c.rules.DepositThreshold) {
		return Deposit{Required: false, Minimum: decimal.Zero}
	}
	return Deposit{Required: true, Minimum: total.Mul(c.rules.DepositRate).Round(moneyPlaces)}
}

func (c *Calculator) compute(lines []entity.OrderLine, markup decimal.Decimal) Totals {
	priced := make([]entity.OrderLine, len(lines))
	sum := decimal.Zero
	for i, line := range lines {
		line.Subtotal = Subtotal(line.Quantity, line.UnitPrice, markup)
		priced[i] = line
		sum = sum.Add(line.Subtotal)
	}
	total := sum.Round(moneyPlaces)
	return Totals{
		Lines:   priced,
		Total:   total,
		Deposit: c.DepositFor(total),
	}
}

// Subtotal is round(quantity * unitPrice * markup, 2).
func Subtotal(quantity int, unitPrice, markup decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(quantity)).Mul(unitPrice).Mul(markup).Round(moneyPlaces)
}

// Apply copies totals onto the order: line subtotals, total, and deposit fields.
func (t Totals) Apply(order *entity.Order) {
	order.Lines = t.Lines
	order.Total = t.Total
	order.RequiresDeposit = t.Deposit.Required
	order.MinimumDeposit = t.Deposit.Minimum
}

// NextDepositState re-derives the deposit state after totals change.
// A paid deposit is never reset by this function.
func NextDepositState(current entity.DepositState, deposit Deposit) entity.DepositState {
	if !deposit.Required {
		if current == entity.DepositStatePaid {
			return current
		}
		return entity.DepositStateNotApplicable
	}
	switch current {
	case entity.DepositStatePaid, entity.DepositStatePending:
		return current
	case entity.DepositStateNotApplicable, entity.DepositStateUnset:
		return entity.DepositStatePending
	default:
		return entity.DepositStatePending
	}
}
