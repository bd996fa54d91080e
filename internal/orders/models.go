package orders

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Meta keys the store plugins write on every order.
const (
	MetaScheduledAt = "data_unix"
	MetaMethod      = "exwfood_order_method"
	MetaNote        = "order_note"
)

// DeliveryFeeName is the fee line carrying the delivery cost.
const DeliveryFeeName = "Koszt dowozu"

type Method string

const (
	MethodDelivery Method = "delivery"
	MethodPickup   Method = "pickup"
)

type Order struct {
	ID          int64           `json:"id"`
	Status      Status          `json:"status"`
	Billing     Billing         `json:"billing"`
	LineItems   []LineItem      `json:"line_items"`
	FeeLines    []FeeLine       `json:"fee_lines"`
	MetaData    []MetaData      `json:"meta_data"`
	Total       decimal.Decimal `json:"total"`
	DateCreated string          `json:"date_created,omitempty"`
}

type Billing struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone"`
	Address1  string `json:"address_1"`
	City      string `json:"city"`
}

// LineItem is a persisted order line. ID is nil until the store assigns one.
type LineItem struct {
	ID        *int64          `json:"id,omitempty"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name,omitempty"`
	Total     decimal.Decimal `json:"total"`
}

type FeeLine struct {
	ID    *int64          `json:"id,omitempty"`
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total"`
}

// MetaData values are usually strings, but plugins also write numbers.
type MetaData struct {
	ID    *int64 `json:"id,omitempty"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type StockStatus string

const (
	InStock    StockStatus = "instock"
	OutOfStock StockStatus = "outofstock"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	StockStatus StockStatus     `json:"stock_status"`
	Categories  []CategoryRef   `json:"categories"`
}

type CategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// InCategory reports whether the product is listed under the category id.
// The id comes from settings, where it is kept as a string.
func (p Product) InCategory(id string) bool {
	for _, c := range p.Categories {
		if strconv.FormatInt(c.ID, 10) == id {
			return true
		}
	}
	return false
}

func (o Order) Meta(key string) (string, bool) {
	for _, m := range o.MetaData {
		if m.Key == key {
			return metaString(m.Value), true
		}
	}
	return "", false
}

// ScheduledAt returns the pickup/delivery time stored under data_unix.
func (o Order) ScheduledAt() (time.Time, bool) {
	v, ok := o.Meta(MetaScheduledAt)
	if !ok || strings.TrimSpace(v) == "" {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if ferr != nil {
			return time.Time{}, false
		}
		sec = int64(f)
	}
	return time.Unix(sec, 0), true
}

func (o Order) Method() Method {
	if v, _ := o.Meta(MetaMethod); Method(v) == MethodDelivery {
		return MethodDelivery
	}
	return MethodPickup
}

func (o Order) Note() string {
	v, _ := o.Meta(MetaNote)
	return v
}

// DeliveryFee returns the delivery cost fee line, matched by name.
func (o Order) DeliveryFee() (FeeLine, bool) {
	for _, f := range o.FeeLines {
		if f.Name == DeliveryFeeName {
			return f, true
		}
	}
	return FeeLine{}, false
}

func metaString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}
