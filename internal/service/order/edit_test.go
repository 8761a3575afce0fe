package order

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/pkg/errorbank"
)

func (f *fixture) edit(orderID int64, notes string, lines ...LineInput) (*Result, error) {
	return f.svc.Edit(context.Background(), EditCommand{
		OrderID:      orderID,
		Actor:        testActor,
		DeliveryDate: tomorrow(),
		Notes:        notes,
		Lines:        lines,
	})
}

func TestEditAppliesElaborationMarkup(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, LineInput{ProductID: productCake, Quantity: 4})
	require.Equal(t, "200.00", order.Total.StringFixed(2))
	require.Equal(t, entity.DepositStateNotApplicable, order.DepositState)

	res, err := f.edit(order.ID, "sin nueces", LineInput{ProductID: productCake, Quantity: 4})
	require.NoError(t, err)
	assert.True(t, res.Changed)

	stored := f.reload(t, order.ID)
	assert.Equal(t, "400.00", stored.Total.StringFixed(2))
	assert.True(t, stored.RequiresDeposit)
	assert.Equal(t, "100.00", stored.MinimumDeposit.StringFixed(2))
	assert.Equal(t, entity.DepositStatePending, stored.DepositState)
	assert.Equal(t, "sin nueces", stored.Notes)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, "400.00", stored.Lines[0].Subtotal.StringFixed(2))
	assert.Equal(t, order.Lines[0].ID, stored.Lines[0].ID)
}

func TestEditWithoutChangesIsNoop(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, LineInput{ProductID: productCake, Quantity: 4})
	_, err := f.edit(order.ID, "", LineInput{ProductID: productCake, Quantity: 4})
	require.NoError(t, err)
	commits := f.store.Commits
	events := len(f.publisher.transitions())

	res, err := f.edit(order.ID, "", LineInput{ProductID: productCake, Quantity: 4})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, commits, f.store.Commits)
	assert.Len(t, f.publisher.transitions(), events)
}

func TestEditUpsertsLinesByProduct(t *testing.T) {
	f := newFixture(t)
	order := f.create(t,
		LineInput{ProductID: productCake, Quantity: 2},
		LineInput{ProductID: productCookies, Quantity: 1},
	)
	cakeLine, ok := order.Line(productCake)
	require.True(t, ok)

	_, err := f.edit(order.ID, "",
		LineInput{ProductID: productCake, Quantity: 3},
		LineInput{ProductID: productSnacks, Quantity: 1},
	)
	require.NoError(t, err)

	stored := f.reload(t, order.ID)
	require.Len(t, stored.Lines, 2)
	cake, ok := stored.Line(productCake)
	require.True(t, ok)
	assert.Equal(t, cakeLine.ID, cake.ID)
	assert.Equal(t, 3, cake.Quantity)
	assert.Equal(t, "300.00", cake.Subtotal.StringFixed(2))

	snacks, ok := stored.Line(productSnacks)
	require.True(t, ok)
	assert.Equal(t, order.ID, snacks.OrderID)
	assert.Equal(t, "300.00", snacks.Subtotal.StringFixed(2))

	_, ok = stored.Line(productCookies)
	assert.False(t, ok)
	assert.Equal(t, "600.00", stored.Total.StringFixed(2))
	assert.Equal(t, "150.00", stored.MinimumDeposit.StringFixed(2))
}

func TestEditClearsDepositWhenNoLongerRequired(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, LineInput{ProductID: productCake, Quantity: 8})
	require.Equal(t, entity.DepositStatePending, order.DepositState)

	_, err := f.edit(order.ID, "", LineInput{ProductID: productCake, Quantity: 1})
	require.NoError(t, err)

	stored := f.reload(t, order.ID)
	assert.Equal(t, "100.00", stored.Total.StringFixed(2))
	assert.False(t, stored.RequiresDeposit)
	assert.True(t, stored.MinimumDeposit.IsZero())
	assert.Equal(t, entity.DepositStateNotApplicable, stored.DepositState)
}

func TestEditGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	approved := f.create(t, LineInput{ProductID: productCake, Quantity: 1})
	_, err := f.svc.Approve(ctx, approved.ID, testActor)
	require.NoError(t, err)
	_, err = f.edit(approved.ID, "", LineInput{ProductID: productCake, Quantity: 2})
	assert.Equal(t, errorbank.ReasonGuardViolation, errorbank.ReasonOf(err))

	paid := f.seed(t, entity.Order{
		ClientID:        1,
		Status:          entity.OrderStatusQuoted,
		Total:           dec("400"),
		RequiresDeposit: true,
		MinimumDeposit:  dec("100"),
		DepositState:    entity.DepositStatePaid,
	})
	_, err = f.edit(paid.ID, "", LineInput{ProductID: productCake, Quantity: 2})
	assert.Equal(t, errorbank.ReasonGuardViolation, errorbank.ReasonOf(err))

	draft := f.create(t, LineInput{ProductID: productCake, Quantity: 1})
	yesterday := fixedNow.AddDate(0, 0, -1)
	_, err = f.svc.Edit(ctx, EditCommand{
		OrderID:      draft.ID,
		Actor:        testActor,
		DeliveryDate: &yesterday,
		Lines:        []LineInput{{ProductID: productCake, Quantity: 1}},
	})
	assert.Equal(t, errorbank.ReasonGuardViolation, errorbank.ReasonOf(err))

	_, err = f.svc.Edit(ctx, EditCommand{
		OrderID: draft.ID,
		Actor:   testActor,
		Lines:   []LineInput{{ProductID: productCake, Quantity: 1}},
	})
	assert.Equal(t, errorbank.ReasonGuardViolation, errorbank.ReasonOf(err))
}

func TestEditRollsBack(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, LineInput{ProductID: productCake, Quantity: 1})
	f.store.FailOn("orders.InsertLine", errors.New("constraint violation"))

	_, err := f.edit(order.ID, "",
		LineInput{ProductID: productCake, Quantity: 2},
		LineInput{ProductID: productSnacks, Quantity: 1},
	)
	require.Error(t, err)
	assert.Equal(t, errorbank.ReasonTransactionFailure, errorbank.ReasonOf(err))

	stored := f.reload(t, order.ID)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, 1, stored.Lines[0].Quantity)
	assert.Equal(t, "50.00", stored.Total.StringFixed(2))
}

func TestLinesChanged(t *testing.T) {
	base := []entity.OrderLine{
		{ID: 1, ProductID: productCake, Quantity: 2, UnitPrice: dec("50"), Subtotal: dec("100")},
	}
	same := []entity.OrderLine{
		{ID: 1, ProductID: productCake, Quantity: 2, UnitPrice: dec("50.00"), Subtotal: dec("100.00")},
	}
	moreQty := []entity.OrderLine{
		{ID: 1, ProductID: productCake, Quantity: 3, UnitPrice: dec("50"), Subtotal: dec("150")},
	}
	swapped := []entity.OrderLine{
		{ProductID: productSnacks, Quantity: 2, UnitPrice: dec("50"), Subtotal: dec("100")},
	}

	assert.False(t, linesChanged(base, same))
	assert.True(t, linesChanged(base, moreQty))
	assert.True(t, linesChanged(base, swapped))
	assert.True(t, linesChanged(base, nil))
}
