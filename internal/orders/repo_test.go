package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func processingOrder() Order {
	return Order{
		ID:     42,
		Status: StatusProcessing,
		LineItems: []LineItem{
			{ID: id64(9), ProductID: 5, Quantity: 2},
			{ID: id64(10), ProductID: 6, Quantity: 1},
		},
		FeeLines: []FeeLine{{ID: id64(3), Name: DeliveryFeeName}},
	}
}

func TestUpdateOrder_DemotesBeforePatchAndRestores(t *testing.T) {
	api := newFakeAPI(processingOrder())
	repo := NewRepo(api, nil, quietLog())

	got, err := repo.UpdateOrder(context.Background(), 42, Patch{
		Items: []ItemInput{{ProductID: 5, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)

	calls := api.updateCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, OrderPatch{Status: StatusPending}, calls[0].Patch)
	assert.Empty(t, calls[1].Patch.Status)
	assert.Equal(t, []LineItemPatch{
		{ID: id64(9), ProductID: 5, Quantity: 3},
		{ID: id64(10), ProductID: 6, Quantity: 0},
	}, calls[1].Patch.LineItems)
	assert.Equal(t, processingOrder().FeeLines, calls[1].Patch.FeeLines)
	assert.Equal(t, OrderPatch{Status: StatusProcessing}, calls[2].Patch)

	final := api.order(42)
	require.Len(t, final.LineItems, 1)
	assert.Equal(t, 3, final.LineItems[0].Quantity)
}

func TestUpdateOrder_PendingIsNotRestored(t *testing.T) {
	o := processingOrder()
	o.Status = StatusPending
	api := newFakeAPI(o)
	repo := NewRepo(api, nil, quietLog())

	got, err := repo.UpdateOrder(context.Background(), 42, Patch{})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Len(t, api.updateCalls(), 2)
}

func TestUpdateOrder_PatchFailureLeavesPending(t *testing.T) {
	api := newFakeAPI(processingOrder())
	api.failOn[2] = errRemote
	journal := NewMemoryJournal()
	repo := NewRepo(api, journal, quietLog())

	_, err := repo.UpdateOrder(context.Background(), 42, Patch{Items: []ItemInput{{ProductID: 7, Quantity: 1}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpdateFailed)
	assert.ErrorIs(t, err, errRemote)

	assert.Equal(t, StatusPending, api.order(42).Status)
	assert.Len(t, api.updateCalls(), 2)

	unfinished, err := journal.Unfinished(context.Background())
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	assert.Equal(t, StepFailed, unfinished[0].Step)
	assert.Equal(t, StatusProcessing, unfinished[0].OriginalStatus)
}

func TestUpdateOrder_DemoteFailureStopsEarly(t *testing.T) {
	api := newFakeAPI(processingOrder())
	api.failOn[1] = errRemote
	repo := NewRepo(api, nil, quietLog())

	_, err := repo.UpdateOrder(context.Background(), 42, Patch{})
	require.ErrorIs(t, err, errRemote)
	assert.NotErrorIs(t, err, ErrUpdateFailed)
	assert.Len(t, api.updateCalls(), 1)
	assert.Equal(t, StatusProcessing, api.order(42).Status)
}

func TestUpdateOrder_SameItemsTwiceIsStable(t *testing.T) {
	api := newFakeAPI(processingOrder())
	repo := NewRepo(api, nil, quietLog())
	want := []ItemInput{{ProductID: 5, Quantity: 1}, {ProductID: 8, Quantity: 2}}

	_, err := repo.UpdateOrder(context.Background(), 42, Patch{Items: want})
	require.NoError(t, err)
	first := api.order(42).LineItems

	_, err = repo.UpdateOrder(context.Background(), 42, Patch{Items: want})
	require.NoError(t, err)
	second := api.order(42).LineItems

	assert.Equal(t, first, second)
	assert.Len(t, second, 2)
}

func TestUpdateOrder_NilItemsKeepLines(t *testing.T) {
	api := newFakeAPI(processingOrder())
	repo := NewRepo(api, nil, quietLog())

	_, err := repo.UpdateOrder(context.Background(), 42, Patch{Billing: &Billing{FirstName: "Ala"}})
	require.NoError(t, err)
	assert.Equal(t, processingOrder().LineItems, api.order(42).LineItems)
	assert.Equal(t, "Ala", api.order(42).Billing.FirstName)
}

func TestUpdateOrder_NotFound(t *testing.T) {
	repo := NewRepo(newFakeAPI(), nil, quietLog())
	_, err := repo.UpdateOrder(context.Background(), 1, Patch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOrder_JournalReachesDone(t *testing.T) {
	api := newFakeAPI(processingOrder())
	journal := NewMemoryJournal()
	repo := NewRepo(api, journal, quietLog())

	_, err := repo.UpdateOrder(context.Background(), 42, Patch{})
	require.NoError(t, err)
	unfinished, err := journal.Unfinished(context.Background())
	require.NoError(t, err)
	assert.Empty(t, unfinished)
}

func TestCreateOrder_ConsolidatesItems(t *testing.T) {
	api := newFakeAPI()
	repo := NewRepo(api, nil, quietLog())

	o, err := repo.CreateOrder(context.Background(), NewOrder{
		LineItems: []LineItemPatch{{ProductID: 1, Quantity: 1}, {ProductID: 1, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Len(t, o.LineItems, 1)
	assert.Equal(t, 3, o.LineItems[0].Quantity)
}

func TestSetStatus_RejectsUnknown(t *testing.T) {
	repo := NewRepo(newFakeAPI(processingOrder()), nil, quietLog())
	_, err := repo.SetStatus(context.Background(), 42, Status("shipped"))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}
