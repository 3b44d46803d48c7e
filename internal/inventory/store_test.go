package inventory_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory_reports/internal/inventory"
	"inventory_reports/internal/testsupport"
	"inventory_reports/platform/apperr"
	"inventory_reports/platform/logger"
	"inventory_reports/platform/validator"
)

func newStore(t *testing.T) (*inventory.Store, *testsupport.ReportService) {
	t.Helper()
	svc := testsupport.StartReportService(t)
	client := inventory.NewClient(svc.URL(), 5*time.Second)
	return inventory.NewStore(client, validator.New(), logger.Discard()), svc
}

func TestStore_RefreshAndGrandTotal(t *testing.T) {
	store, svc := newStore(t)
	svc.Seed(testsupport.Item{ID: 1, Name: "Widget", Quantity: 3, Price: 2.50})

	require.NoError(t, store.Refresh(context.Background()))

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, "Widget", items[0].Name)
	assert.Equal(t, inventory.Money(750), items[0].Total())
	assert.Equal(t, "7.50", store.GrandTotal().String())
	assert.True(t, store.Loaded())
}

func TestStore_FetchFailureKeepsStaleSnapshot(t *testing.T) {
	store, svc := newStore(t)
	svc.Seed(testsupport.Item{ID: 1, Name: "Widget", Quantity: 3, Price: 2.50})
	require.NoError(t, store.Refresh(context.Background()))

	svc.FailWith("items", http.StatusServiceUnavailable)
	err := store.Refresh(context.Background())

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStoreFetch))
	assert.Len(t, store.Items(), 1, "stale snapshot is kept")
}

func TestStore_FetchFailureBeforeFirstLoadIsEmpty(t *testing.T) {
	store, svc := newStore(t)
	svc.FailWith("items", http.StatusInternalServerError)

	err := store.Refresh(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindStoreFetch))
	assert.Empty(t, store.Items())
	assert.False(t, store.Loaded())
	assert.Equal(t, inventory.Money(0), store.GrandTotal())
}

func TestStore_AddValidatesBeforePosting(t *testing.T) {
	store, svc := newStore(t)

	cases := []inventory.NewItem{
		{Name: "  ", Quantity: 1, Price: 1},
		{Name: "Bolt", Quantity: 0, Price: 1},
		{Name: "Bolt", Quantity: 1, Price: 0},
	}
	for _, in := range cases {
		err := store.Add(context.Background(), in)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "%+v", in)
	}
	assert.Empty(t, svc.Requests())
}

func TestStore_AddRefreshesSnapshot(t *testing.T) {
	store, svc := newStore(t)

	require.NoError(t, store.Add(context.Background(), inventory.NewItem{Name: " <i>Gadget</i>\n", Quantity: 2, Price: 4.25}))

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Gadget", items[0].Name)
	assert.Equal(t, "8.50", store.GrandTotal().String())
	assert.Len(t, svc.Items(), 1)
}

func TestStore_MutationFailureLeavesSnapshotUntouched(t *testing.T) {
	store, svc := newStore(t)
	svc.Seed(testsupport.Item{ID: 1, Name: "Widget", Quantity: 3, Price: 2.50})
	require.NoError(t, store.Refresh(context.Background()))

	svc.FailWith("items", http.StatusInternalServerError)
	err := store.Add(context.Background(), inventory.NewItem{Name: "Gadget", Quantity: 1, Price: 1})
	assert.True(t, apperr.Is(err, apperr.KindStoreMutation))

	err = store.Remove(context.Background(), 1)
	assert.True(t, apperr.Is(err, apperr.KindStoreMutation))

	assert.Len(t, store.Items(), 1)
}

func TestStore_RemoveAcceptsNoContent(t *testing.T) {
	store, svc := newStore(t)
	svc.Seed(
		testsupport.Item{ID: 1, Name: "Widget", Quantity: 3, Price: 2.50},
		testsupport.Item{ID: 2, Name: "Gadget", Quantity: 1, Price: 1.00},
	)
	require.NoError(t, store.Refresh(context.Background()))

	require.NoError(t, store.Remove(context.Background(), 2))
	assert.Len(t, store.Items(), 1)
	assert.Equal(t, "7.50", store.GrandTotal().String())
}

func TestStore_GetAndUpdate(t *testing.T) {
	store, svc := newStore(t)
	svc.Seed(testsupport.Item{ID: 7, Name: "Widget", Quantity: 3, Price: 2.50})

	item, err := store.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Widget", item.Name)

	_, err = store.Get(context.Background(), 99)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, store.Update(context.Background(), 7, inventory.NewItem{Name: "Widget", Quantity: 4, Price: 2.50}))
	assert.Equal(t, "10.00", store.GrandTotal().String())

	err = store.Update(context.Background(), 99, inventory.NewItem{Name: "X", Quantity: 1, Price: 1})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "0.00", inventory.Money(0).String())
	assert.Equal(t, "0.05", inventory.Money(5).String())
	assert.Equal(t, "-1.20", inventory.Money(-120).String())
	assert.Equal(t, inventory.Money(1), inventory.MoneyFromFloat(0.01))
	assert.Equal(t, inventory.Money(30), inventory.MoneyFromFloat(0.1+0.2))
}
