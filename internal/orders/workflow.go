package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Invalidator forces the order snapshot to refetch.
type Invalidator interface {
	Invalidate()
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate() {}

type actorKey struct{}

// WithActor records who is performing a mutation, for events and logs.
func WithActor(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, actorKey{}, name)
}

func ActorFrom(ctx context.Context) string {
	s, _ := ctx.Value(actorKey{}).(string)
	return s
}

// Workflows are the staff actions on orders. Each one validates, calls the
// repository once, then refreshes the snapshot and announces the change.
// Nothing here is retried.
type Workflows struct {
	Repo     *Repo
	Cache    Invalidator
	Events   Publisher
	Service  string
	Location *time.Location
	Now      func() time.Time
	Log      *slog.Logger
}

func NewWorkflows(repo *Repo, cache Invalidator, events Publisher, service string, loc *time.Location, log *slog.Logger) *Workflows {
	if cache == nil {
		cache = nopInvalidator{}
	}
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Workflows{Repo: repo, Cache: cache, Events: events, Service: service, Location: loc, Now: time.Now, Log: log}
}

// Accept moves a freshly placed order into the queue.
func (w *Workflows) Accept(ctx context.Context, id int64) (Order, error) {
	cur, err := w.Repo.FetchOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !CanAccept(cur.Status) {
		return Order{}, fmt.Errorf("%w: cannot accept order in status %q", ErrInvalidTransition, cur.Status)
	}
	o, err := w.Repo.SetStatus(ctx, id, StatusProcessing)
	if err != nil {
		return Order{}, err
	}
	w.done(ctx, EventOrderAccepted, id, StatusChangedPayload{
		OrderID: id, From: cur.Status, To: o.Status, By: ActorFrom(ctx),
	})
	return o, nil
}

// ChangeStatus sets any status staff may pick. Choosing the current status
// returns the order untouched.
func (w *Workflows) ChangeStatus(ctx context.Context, id int64, to Status) (Order, error) {
	if !to.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	cur, err := w.Repo.FetchOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if cur.Status == to {
		return cur, nil
	}
	if !CanTransition(cur.Status, to) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, to)
	}
	o, err := w.Repo.SetStatus(ctx, id, to)
	if err != nil {
		return Order{}, err
	}
	w.done(ctx, EventOrderStatusChanged, id, StatusChangedPayload{
		OrderID: id, From: cur.Status, To: o.Status, By: ActorFrom(ctx),
	})
	return o, nil
}

// Edit rewrites customer, schedule and optionally items of an order.
// Finished orders cannot be edited.
func (w *Workflows) Edit(ctx context.Context, id int64, e Edit) (Order, error) {
	cur, err := w.Repo.FetchOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if err := e.Validate(w.Location, cur); err != nil {
		return Order{}, err
	}
	if cur.Status.Terminal() {
		return Order{}, fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, id, cur.Status)
	}
	o, err := w.Repo.UpdateOrder(ctx, id, e.Patch(cur))
	if err != nil {
		// A failed patch leaves the order pending remotely; show that.
		w.Cache.Invalidate()
		return Order{}, err
	}
	w.done(ctx, EventOrderUpdated, id, OrderUpdatedPayload{
		OrderID: id, Status: o.Status, LineItems: len(o.LineItems), By: ActorFrom(ctx),
	})
	return o, nil
}

func (w *Workflows) Create(ctx context.Context, d Draft) (Order, error) {
	if err := d.Validate(w.now(), w.Location); err != nil {
		return Order{}, err
	}
	o, err := w.Repo.CreateOrder(ctx, d.NewOrder())
	if err != nil {
		return Order{}, err
	}
	w.done(ctx, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID: o.ID, Items: ItemsOf(o), Total: o.Total, By: ActorFrom(ctx),
	})
	return o, nil
}

func (w *Workflows) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

// done runs after a successful mutation. Publishing is best effort.
func (w *Workflows) done(ctx context.Context, eventType string, id int64, payload any) {
	w.Cache.Invalidate()
	env, err := NewEnvelope(eventType, w.Service, id, payload)
	if err != nil {
		w.Log.Error("build event", "event_type", eventType, "order_id", id, "error", err)
		return
	}
	if err := w.Events.Publish(ctx, PartitionKey(id), env); err != nil {
		w.Log.Warn("publish event", "event_type", eventType, "order_id", id, "error", err)
	}
}
