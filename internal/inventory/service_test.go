package inventory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
)

type fakeCatalog struct {
	mu       sync.Mutex
	products []orders.Product
	lists    int
	err      error
}

func (c *fakeCatalog) ListProducts(_ context.Context, _ string) ([]orders.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists++
	return append([]orders.Product(nil), c.products...), c.err
}

func (c *fakeCatalog) UpdateProductStock(_ context.Context, id int64, status orders.StockStatus) (orders.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return orders.Product{}, c.err
	}
	for i := range c.products {
		if c.products[i].ID == id {
			c.products[i].StockStatus = status
			return c.products[i], nil
		}
	}
	return orders.Product{}, orders.ErrNotFound
}

func (c *fakeCatalog) ListCategories(context.Context) ([]orders.Category, error) {
	return []orders.Category{{ID: 15, Name: "Obiady"}}, nil
}

type memCache struct {
	m       map[string][]orders.Product
	cleared int
}

func (c *memCache) Get(_ context.Context, cat string) ([]orders.Product, bool, error) {
	ps, ok := c.m[cat]
	return ps, ok, nil
}

func (c *memCache) Set(_ context.Context, cat string, ps []orders.Product) error {
	c.m[cat] = ps
	return nil
}

func (c *memCache) Clear(context.Context) error {
	c.m = map[string][]orders.Product{}
	c.cleared++
	return nil
}

type staticSettings struct{ s settings.Store }

func (s staticSettings) Store(context.Context) (settings.Store, error) { return s.s, nil }

type pubRecorder struct{ events []orders.Envelope }

func (p *pubRecorder) Publish(_ context.Context, _ []byte, env orders.Envelope) error {
	p.events = append(p.events, env)
	return nil
}

func product(id, cat int64, stock orders.StockStatus) orders.Product {
	return orders.Product{ID: id, Name: "P", Price: decimal.NewFromInt(20), StockStatus: stock, Categories: []orders.CategoryRef{{ID: cat}}}
}

func newService(cat string, ps ...orders.Product) (*Service, *fakeCatalog, *memCache, *pubRecorder) {
	c := &fakeCatalog{products: ps}
	cache := &memCache{m: map[string][]orders.Product{}}
	pub := &pubRecorder{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(c, cache, staticSettings{settings.Store{PreferredCategory: cat}}, pub, "staff-api/a", log), c, cache, pub
}

func TestMenu_FiltersAndCaches(t *testing.T) {
	s, cat, _, _ := newService("15", product(1, 15, orders.InStock), product(2, 16, orders.InStock))
	ctx := context.Background()

	ps, err := s.Menu(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, int64(1), ps[0].ID)

	_, err = s.Menu(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cat.lists)
}

func TestMenu_NoCategoryOrProducts(t *testing.T) {
	s, _, _, _ := newService("")
	_, err := s.Menu(context.Background())
	assert.ErrorIs(t, err, orders.ErrNoCategory)

	s, _, _, _ = newService("15", product(2, 16, orders.InStock))
	_, err = s.Menu(context.Background())
	assert.ErrorIs(t, err, orders.ErrNoProducts)
}

func TestMenu_RemoteErrorPassesThrough(t *testing.T) {
	s, cat, _, _ := newService("15")
	cat.err = errors.New("store down")
	_, err := s.Menu(context.Background())
	assert.EqualError(t, err, "store down")
}

func TestSetStock_ClearsCacheAndPublishes(t *testing.T) {
	s, _, cache, pub := newService("15", product(1, 15, orders.InStock))
	ctx := orders.WithActor(context.Background(), "owner")
	_, err := s.Menu(ctx)
	require.NoError(t, err)

	p, err := s.SetStock(ctx, 1, orders.OutOfStock)
	require.NoError(t, err)
	assert.Equal(t, orders.OutOfStock, p.StockStatus)
	assert.Equal(t, 1, cache.cleared)
	assert.Empty(t, cache.m)

	require.Len(t, pub.events, 1)
	assert.Equal(t, orders.EventProductStockChanged, pub.events[0].EventType)
	assert.Equal(t, "1", pub.events[0].CorrelationID)

	_, err = s.SetStock(ctx, 1, orders.StockStatus("onbackorder"))
	assert.ErrorIs(t, err, orders.ErrInvalidDraft)
}

func TestHandleStockChanged(t *testing.T) {
	s, _, cache, _ := newService("15")
	require.NoError(t, s.HandleStockChanged(context.Background(), orders.Envelope{EventType: orders.EventOrderCreated}))
	assert.Zero(t, cache.cleared)
	require.NoError(t, s.HandleStockChanged(context.Background(), orders.Envelope{EventType: orders.EventProductStockChanged}))
	assert.Equal(t, 1, cache.cleared)
}
