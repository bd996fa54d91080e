package woo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
)

type staticCreds struct {
	s   settings.Store
	err error
}

func (c staticCreds) Store(context.Context) (settings.Store, error) { return c.s, c.err }

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	creds := staticCreds{s: settings.Store{StoreURL: srv.URL + "/", ConsumerKey: "ck", ConsumerSecret: "cs"}}
	return New(creds, srv.Client(), slog.New(slog.NewTextHandler(io.Discard, nil))), srv
}

func TestListOrders_Query(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ck", user)
		assert.Equal(t, "cs", pass)
		assert.Equal(t, "/wp-json/wc/v3/orders", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "50", q.Get("per_page"))
		assert.Equal(t, "date", q.Get("orderby"))
		assert.Equal(t, "desc", q.Get("order"))
		assert.Equal(t, "processing,pending", q.Get("status"))
		assert.Equal(t, "2024-05-01T00:00:00", q.Get("after"))
		_, _ = w.Write([]byte(`[{"id":7,"status":"pending","total":"42.50","line_items":[{"id":3,"product_id":5,"quantity":2,"total":"40.00"}],"meta_data":[{"id":1,"key":"data_unix","value":"1715335200"}]}]`))
	})

	list, err := c.ListOrders(context.Background(), orders.Filter{
		Statuses: orders.BucketQueued.Statuses(),
		Params:   map[string]string{"after": "2024-05-01T00:00:00", "per_page": "5"},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(7), list[0].ID)
	assert.True(t, decimal.RequireFromString("42.5").Equal(list[0].Total))
	require.NotNil(t, list[0].LineItems[0].ID)
	assert.Equal(t, int64(3), *list[0].LineItems[0].ID)
	at, ok := list[0].ScheduledAt()
	require.True(t, ok)
	assert.Equal(t, int64(1715335200), at.Unix())
}

func TestGetOrder_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"woocommerce_rest_shop_order_invalid_id","message":"Invalid ID.","data":{"status":404}}`))
	})
	_, err := c.GetOrder(context.Background(), 99)
	assert.ErrorIs(t, err, orders.ErrNotFound)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "woocommerce_rest_shop_order_invalid_id", ae.Code)
}

func TestUpdateOrder_ValidationMessagePassesThrough(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pending", body["status"])
		assert.NotContains(t, body, "line_items")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"woocommerce_rest_invalid_status","message":"Nieprawidłowy status."}`))
	})
	_, err := c.UpdateOrder(context.Background(), 1, orders.OrderPatch{Status: orders.StatusPending})
	require.Error(t, err)
	assert.Equal(t, "Nieprawidłowy status.", err.Error())
	assert.True(t, IsClientError(err))
	assert.NotErrorIs(t, err, orders.ErrNotFound)
}

func TestPlainTextError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	_, err := c.ListOrders(context.Background(), orders.Filter{})
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadGateway, ae.StatusCode)
	assert.Equal(t, "upstream down", ae.Message)
	assert.False(t, IsClientError(err))
}

func TestNetworkError(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()
	_, err := c.ListOrders(context.Background(), orders.Filter{})
	var ne *NetworkError
	assert.ErrorAs(t, err, &ne)
}

func TestNotConfigured(t *testing.T) {
	c := New(staticCreds{err: settings.ErrNotConfigured}, nil, nil)
	_, err := c.ListOrders(context.Background(), orders.Filter{})
	assert.ErrorIs(t, err, settings.ErrNotConfigured)
}

func TestCreateOrder_Body(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body orders.NewOrder
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cod", body.PaymentMethod)
		assert.False(t, body.SetPaid)
		require.Len(t, body.LineItems, 1)
		assert.Nil(t, body.LineItems[0].ID)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":501,"status":"pending","total":"30.00"}`))
	})
	o, err := c.CreateOrder(context.Background(), orders.NewOrder{
		PaymentMethod: "cod",
		LineItems:     []orders.LineItemPatch{{ProductID: 5, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(501), o.ID)
}

func TestListProducts_EmptyPrice(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/products", r.URL.Path)
		assert.Equal(t, "17", r.URL.Query().Get("category"))
		_, _ = w.Write([]byte(`[{"id":1,"name":"Margherita","price":"32.00","stock_status":"instock","categories":[{"id":17,"name":"Pizza"}]},{"id":2,"name":"Zestaw","price":"","stock_status":"outofstock","categories":[{"id":17}]}]`))
	})
	ps, err := c.ListProducts(context.Background(), "17")
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.True(t, decimal.NewFromInt(32).Equal(ps[0].Price))
	assert.True(t, ps[1].Price.IsZero())
	assert.True(t, ps[0].InCategory("17"))
	assert.Equal(t, orders.OutOfStock, ps[1].StockStatus)
}

func TestUpdateProductStock(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "outofstock", body["stock_status"])
		_, _ = w.Write([]byte(`{"id":1,"name":"Margherita","price":"32.00","stock_status":"outofstock"}`))
	})
	p, err := c.UpdateProductStock(context.Background(), 1, orders.OutOfStock)
	require.NoError(t, err)
	assert.Equal(t, orders.OutOfStock, p.StockStatus)

	_, err = c.UpdateProductStock(context.Background(), 1, "onbackorder")
	assert.Error(t, err)
}

func TestVerifyCredentials_UsesGivenSettings(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, _, _ := r.BasicAuth()
		if user != "new" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"woocommerce_rest_cannot_view","message":"Sorry, you cannot list resources."}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	ok := settings.Store{StoreURL: srv.URL, ConsumerKey: "new", ConsumerSecret: "x"}
	assert.NoError(t, c.VerifyCredentials(context.Background(), ok))

	bad := ok
	bad.ConsumerKey = "old"
	err := c.VerifyCredentials(context.Background(), bad)
	assert.True(t, IsClientError(err))
	assert.False(t, errors.Is(err, orders.ErrNotFound))
}

func TestStoreName(t *testing.T) {
	assert.Equal(t, "pizzeria.example", StoreName(settings.Store{StoreURL: "https://pizzeria.example/shop"}))
}
