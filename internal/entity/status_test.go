package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatusIgnoresCase(t *testing.T) {
	status, err := ParseOrderStatus(" in_production ")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusInProduction, status)

	_, err = ParseOrderStatus("shipped")
	assert.Error(t, err)
}

func TestOrderStatusClassification(t *testing.T) {
	tests := []struct {
		status   OrderStatus
		terminal bool
		editable bool
		reserved bool
	}{
		{OrderStatusDraft, false, true, false},
		{OrderStatusQuoted, false, true, false},
		{OrderStatusApproved, false, false, true},
		{OrderStatusInProduction, false, false, true},
		{OrderStatusCompleted, false, false, false},
		{OrderStatusDelivered, true, false, false},
		{OrderStatusCancelled, true, false, false},
		{OrderStatusRejected, true, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.Terminal())
			assert.Equal(t, tt.editable, tt.status.Editable())
			assert.Equal(t, tt.reserved, tt.status.HoldsReservation())
		})
	}
}

func TestParseDepositState(t *testing.T) {
	state, err := ParseDepositState("")
	require.NoError(t, err)
	assert.Equal(t, DepositStateUnset, state)

	state, err = ParseDepositState("paid")
	require.NoError(t, err)
	assert.Equal(t, DepositStatePaid, state)

	_, err = ParseDepositState("partial")
	assert.Error(t, err)
}

func TestParseMovementAcceptsOut(t *testing.T) {
	kind, err := ParseMovement("out")
	require.NoError(t, err)
	assert.Equal(t, MovementConsume, kind)

	kind, err = ParseMovement("Reserve")
	require.NoError(t, err)
	assert.Equal(t, MovementReserve, kind)
}

func TestOrderCloneIsDeep(t *testing.T) {
	order := &Order{ID: 7, Lines: []OrderLine{{ProductID: 1, Quantity: 2}}}

	cp := order.Clone()
	cp.Lines[0].Quantity = 9

	assert.Equal(t, 2, order.Lines[0].Quantity)
	line, ok := order.Line(1)
	assert.True(t, ok)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "PEDIDO-7", Reference("PEDIDO", order.ID))
}
