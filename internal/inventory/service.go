// Package inventory serves the menu: products of the preferred category and
// their stock switch.
package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
)

type Catalog interface {
	ListProducts(ctx context.Context, category string) ([]orders.Product, error)
	UpdateProductStock(ctx context.Context, id int64, status orders.StockStatus) (orders.Product, error)
	ListCategories(ctx context.Context) ([]orders.Category, error)
}

// Cache holds product lists per category. redisx.MenuCache implements it.
type Cache interface {
	Get(ctx context.Context, category string) ([]orders.Product, bool, error)
	Set(ctx context.Context, category string, ps []orders.Product) error
	Clear(ctx context.Context) error
}

type SettingsSource interface {
	Store(ctx context.Context) (settings.Store, error)
}

type Service struct {
	Catalog     Catalog
	Cache       Cache
	Settings    SettingsSource
	Events      orders.Publisher
	ServiceName string
	Log         *slog.Logger
}

func NewService(c Catalog, cache Cache, src SettingsSource, events orders.Publisher, service string, log *slog.Logger) *Service {
	if events == nil {
		events = orders.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{Catalog: c, Cache: cache, Settings: src, Events: events, ServiceName: service, Log: log}
}

// Menu lists products of the preferred category, from cache when possible.
func (s *Service) Menu(ctx context.Context) ([]orders.Product, error) {
	st, err := s.Settings.Store(ctx)
	if err != nil {
		return nil, err
	}
	cat := st.PreferredCategory
	if cat == "" {
		return nil, orders.ErrNoCategory
	}

	if s.Cache != nil {
		ps, ok, err := s.Cache.Get(ctx, cat)
		if err != nil {
			s.Log.Warn("menu cache read", "category", cat, "error", err)
		} else if ok {
			return ps, nil
		}
	}

	all, err := s.Catalog.ListProducts(ctx, cat)
	if err != nil {
		return nil, err
	}
	ps := make([]orders.Product, 0, len(all))
	for _, p := range all {
		if p.InCategory(cat) {
			ps = append(ps, p)
		}
	}
	if len(ps) == 0 {
		return nil, orders.ErrNoProducts
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, cat, ps); err != nil {
			s.Log.Warn("menu cache write", "category", cat, "error", err)
		}
	}
	return ps, nil
}

func (s *Service) Categories(ctx context.Context) ([]orders.Category, error) {
	return s.Catalog.ListCategories(ctx)
}

// SetStock flips a product between instock and outofstock.
func (s *Service) SetStock(ctx context.Context, id int64, status orders.StockStatus) (orders.Product, error) {
	if status != orders.InStock && status != orders.OutOfStock {
		return orders.Product{}, fmt.Errorf("%w: stock status %q", orders.ErrInvalidDraft, status)
	}
	p, err := s.Catalog.UpdateProductStock(ctx, id, status)
	if err != nil {
		return orders.Product{}, err
	}
	s.Invalidate(ctx)

	env, err := orders.NewEnvelope(orders.EventProductStockChanged, s.ServiceName, id, orders.ProductStockChangedPayload{
		ProductID: id, StockStatus: p.StockStatus, By: orders.ActorFrom(ctx),
	})
	if err != nil {
		s.Log.Error("build event", "event_type", orders.EventProductStockChanged, "product_id", id, "error", err)
		return p, nil
	}
	if err := s.Events.Publish(ctx, orders.PartitionKey(id), env); err != nil {
		s.Log.Warn("publish event", "event_type", orders.EventProductStockChanged, "product_id", id, "error", err)
	}
	return p, nil
}

// Invalidate drops every cached menu.
func (s *Service) Invalidate(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Clear(ctx); err != nil {
		s.Log.Warn("menu cache clear", "error", err)
	}
}

// HandleStockChanged is the event handler for stock changes made on other
// instances.
func (s *Service) HandleStockChanged(ctx context.Context, env orders.Envelope) error {
	if env.EventType != orders.EventProductStockChanged {
		return nil
	}
	s.Invalidate(ctx)
	return nil
}
