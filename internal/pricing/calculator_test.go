package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/taller/internal/entity"
)

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestBaseScenarioTwoLinesReachThreshold(t *testing.T) {
	calc := NewWithRules(DefaultRules())

	totals := calc.Base([]entity.OrderLine{
		{ProductID: 1, Quantity: 3, UnitPrice: money("50")},
		{ProductID: 2, Quantity: 1, UnitPrice: money("150")},
	})

	require.Len(t, totals.Lines, 2)
	assert.True(t, totals.Lines[0].Subtotal.Equal(money("150")))
	assert.True(t, totals.Lines[1].Subtotal.Equal(money("150")))
	assert.True(t, totals.Total.Equal(money("300")))
	assert.True(t, totals.Deposit.Required)
	assert.Equal(t, "75.00", totals.Deposit.Minimum.StringFixed(2))
}

func TestDepositFor(t *testing.T) {
	calc := NewWithRules(DefaultRules())

	tests := []struct {
		name     string
		total    string
		required bool
		minimum  string
	}{
		{"below threshold", "299.99", false, "0"},
		{"at threshold", "300", true, "75"},
		{"rounds to cents", "333.33", true, "83.33"},
		{"rounds half up", "300.10", true, "75.03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dep := calc.DepositFor(money(tt.total))
			assert.Equal(t, tt.required, dep.Required)
			assert.True(t, dep.Minimum.Equal(money(tt.minimum)), "got %s", dep.Minimum)
		})
	}
}

func TestTotalEqualsSumOfSubtotals(t *testing.T) {
	calc := NewWithRules(DefaultRules())
	lines := []entity.OrderLine{
		{ProductID: 1, Quantity: 3, UnitPrice: money("0.333")},
		{ProductID: 2, Quantity: 7, UnitPrice: money("12.125")},
		{ProductID: 3, Quantity: 1, UnitPrice: money("0.005")},
	}

	for _, totals := range []Totals{calc.Base(lines), calc.Elaborated(lines)} {
		sum := decimal.Zero
		for _, line := range totals.Lines {
			sum = sum.Add(line.Subtotal)
		}
		assert.True(t, totals.Total.Equal(sum.Round(2)))
	}
}

func TestElaboratedDoublesSubtotals(t *testing.T) {
	calc := NewWithRules(DefaultRules())
	lines := []entity.OrderLine{{ProductID: 1, Quantity: 2, UnitPrice: money("80")}}

	base := calc.Base(lines)
	elaborated := calc.Elaborated(lines)

	assert.True(t, base.Total.Equal(money("160")))
	assert.False(t, base.Deposit.Required)
	assert.True(t, elaborated.Total.Equal(money("320")))
	assert.True(t, elaborated.Deposit.Required)
	assert.True(t, elaborated.Deposit.Minimum.Equal(money("80")))
	assert.True(t, lines[0].Subtotal.IsZero(), "input lines must not be mutated")
}

func TestApplyCopiesTotals(t *testing.T) {
	calc := NewWithRules(DefaultRules())
	order := &entity.Order{Lines: []entity.OrderLine{{ProductID: 1, Quantity: 4, UnitPrice: money("100")}}}

	calc.Base(order.Lines).Apply(order)

	assert.True(t, order.Total.Equal(money("400")))
	assert.True(t, order.RequiresDeposit)
	assert.True(t, order.MinimumDeposit.Equal(money("100")))
	assert.True(t, order.Lines[0].Subtotal.Equal(money("400")))
}

func TestNextDepositState(t *testing.T) {
	required := Deposit{Required: true, Minimum: money("75")}
	notRequired := Deposit{}

	tests := []struct {
		name    string
		current entity.DepositState
		deposit Deposit
		want    entity.DepositState
	}{
		{"blank becomes pending", entity.DepositStateUnset, required, entity.DepositStatePending},
		{"not applicable becomes pending", entity.DepositStateNotApplicable, required, entity.DepositStatePending},
		{"pending stays pending", entity.DepositStatePending, required, entity.DepositStatePending},
		{"paid stays paid", entity.DepositStatePaid, required, entity.DepositStatePaid},
		{"pending no longer required", entity.DepositStatePending, notRequired, entity.DepositStateNotApplicable},
		{"blank not required", entity.DepositStateUnset, notRequired, entity.DepositStateNotApplicable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextDepositState(tt.current, tt.deposit))
		})
	}
}
