package woo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
)

const catalogPageSize = 100

// wireProduct differs from orders.Product only in price: the store sends ""
// for products without a price.
type wireProduct struct {
	ID          int64                `json:"id"`
	Name        string               `json:"name"`
	Price       string               `json:"price"`
	StockStatus orders.StockStatus   `json:"stock_status"`
	Categories  []orders.CategoryRef `json:"categories"`
}

func (w wireProduct) product() orders.Product {
	price, err := decimal.NewFromString(strings.TrimSpace(w.Price))
	if err != nil {
		price = decimal.Zero
	}
	return orders.Product{
		ID:          w.ID,
		Name:        w.Name,
		Price:       price,
		StockStatus: w.StockStatus,
		Categories:  w.Categories,
	}
}

// ListProducts returns products, limited to one category when category is set.
func (c *Client) ListProducts(ctx context.Context, category string) ([]orders.Product, error) {
	q := url.Values{"per_page": {strconv.Itoa(catalogPageSize)}}
	if category != "" {
		q.Set("category", category)
	}
	var wire []wireProduct
	if err := c.do(ctx, http.MethodGet, "/products", q, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]orders.Product, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.product())
	}
	return out, nil
}

func (c *Client) UpdateProductStock(ctx context.Context, id int64, status orders.StockStatus) (orders.Product, error) {
	if status != orders.InStock && status != orders.OutOfStock {
		return orders.Product{}, fmt.Errorf("unknown stock status %q", status)
	}
	var w wireProduct
	body := map[string]string{"stock_status": string(status)}
	if err := c.do(ctx, http.MethodPut, "/products/"+strconv.FormatInt(id, 10), nil, body, &w); err != nil {
		return orders.Product{}, err
	}
	return w.product(), nil
}

func (c *Client) ListCategories(ctx context.Context) ([]orders.Category, error) {
	q := url.Values{"per_page": {strconv.Itoa(catalogPageSize)}}
	var out []orders.Category
	if err := c.do(ctx, http.MethodGet, "/products/categories", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyCredentials makes one cheap authenticated call with s instead of the
// saved settings. It is used before new settings are stored.
func (c *Client) VerifyCredentials(ctx context.Context, s settings.Store) error {
	q := url.Values{"per_page": {"1"}}
	var out []orders.Category
	return c.doWith(ctx, s, http.MethodGet, "/products/categories", q, nil, &out)
}

// StoreName is how the store is labelled in the client: its hostname.
func StoreName(s settings.Store) string {
	u, err := url.Parse(s.StoreURL)
	if err != nil || u.Hostname() == "" {
		return s.StoreURL
	}
	return u.Hostname()
}
