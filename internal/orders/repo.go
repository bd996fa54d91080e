package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PageSize is enough for a single location; the store is never paged further.
const PageSize = 50

// Filter narrows the order list. Statuses are sent comma-joined; Params are
// passed as extra query constraints.
type Filter struct {
	Statuses []Status
	Params   map[string]string
}

// OrderPatch is the body of a PUT /orders/{id}. Empty parts are omitted.
type OrderPatch struct {
	Status    Status          `json:"status,omitempty"`
	Billing   *Billing        `json:"billing,omitempty"`
	LineItems []LineItemPatch `json:"line_items,omitempty"`
	FeeLines  []FeeLine       `json:"fee_lines,omitempty"`
	MetaData  []MetaData      `json:"meta_data,omitempty"`
}

// NewOrder is the body of a POST /orders.
type NewOrder struct {
	PaymentMethod      string          `json:"payment_method"`
	PaymentMethodTitle string          `json:"payment_method_title"`
	SetPaid            bool            `json:"set_paid"`
	Billing            Billing         `json:"billing"`
	LineItems          []LineItemPatch `json:"line_items"`
	FeeLines           []FeeLine       `json:"fee_lines"`
	MetaData           []MetaData      `json:"meta_data"`
}

// API is the remote order resource.
type API interface {
	ListOrders(ctx context.Context, f Filter) ([]Order, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	UpdateOrder(ctx context.Context, id int64, p OrderPatch) (Order, error)
	CreateOrder(ctx context.Context, o NewOrder) (Order, error)
}

// Patch is the caller's desired state for UpdateOrder. Nil Items keeps the
// current lines; nil FeeLines keeps the current fee lines.
type Patch struct {
	Billing  *Billing
	Items    []ItemInput
	FeeLines []FeeLine
	MetaData []MetaData
}

type Repo struct {
	API     API
	Journal Journal
	Log     *slog.Logger
	Now     func() time.Time
}

func NewRepo(api API, journal Journal, log *slog.Logger) *Repo {
	if journal == nil {
		journal = NopJournal{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Repo{API: api, Journal: journal, Log: log, Now: time.Now}
}

func (r *Repo) FetchOrders(ctx context.Context, f Filter) ([]Order, error) {
	return r.API.ListOrders(ctx, f)
}

func (r *Repo) FetchOrder(ctx context.Context, id int64) (Order, error) {
	return r.API.GetOrder(ctx, id)
}

func (r *Repo) SetStatus(ctx context.Context, id int64, status Status) (Order, error) {
	if !status.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	return r.API.UpdateOrder(ctx, id, OrderPatch{Status: status})
}

// CreateOrder sends a new order; line items are consolidated by product first.
func (r *Repo) CreateOrder(ctx context.Context, o NewOrder) (Order, error) {
	items := make([]ItemInput, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, ItemInput{ProductID: li.ProductID, Quantity: li.Quantity})
	}
	o.LineItems = BuildLineItemPatch(nil, items)
	return r.API.CreateOrder(ctx, o)
}

// UpdateOrder rewrites billing, line items, fee lines and meta data of an order.
//
// The store only applies line item changes safely while an order is pending,
// and it matches lines by id rather than by product. The update therefore runs
// as: read current order, demote to pending, send one combined patch, restore
// the original status. The sequence is not atomic. If the patch fails the
// order is left pending and ErrUpdateFailed is returned.
func (r *Repo) UpdateOrder(ctx context.Context, id int64, p Patch) (Order, error) {
	current, err := r.API.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	original := current.Status

	desired := p.Items
	if desired == nil {
		desired = ItemsOf(current)
	}
	body := OrderPatch{
		Billing:   p.Billing,
		LineItems: BuildLineItemPatch(current.LineItems, desired),
		FeeLines:  p.FeeLines,
		MetaData:  p.MetaData,
	}
	if body.FeeLines == nil {
		body.FeeLines = current.FeeLines
	}

	entry := JournalEntry{
		ID:             uuid.New(),
		OrderID:        id,
		OriginalStatus: original,
		Step:           StepBegun,
		StartedAt:      r.Now(),
	}
	log := r.Log.With("order_id", id, "journal_id", entry.ID, "original_status", original)
	r.record(ctx, log, func() error { return r.Journal.Begin(ctx, entry) })

	// Step 1: demote.
	log.Info("update: forcing pending")
	if _, err := r.API.UpdateOrder(ctx, id, OrderPatch{Status: StatusPending}); err != nil {
		log.Error("update: demote failed", "error", err)
		r.record(ctx, log, func() error { return r.Journal.Fail(ctx, entry.ID, err.Error()) })
		return Order{}, err
	}
	r.advance(ctx, log, entry.ID, StepDemoted)

	// Step 2: patch.
	log.Info("update: sending patch", "line_items", len(body.LineItems))
	updated, err := r.API.UpdateOrder(ctx, id, body)
	if err != nil {
		log.Error("update: patch failed, order left pending", "error", err)
		r.record(ctx, log, func() error { return r.Journal.Fail(ctx, entry.ID, err.Error()) })
		return Order{}, errors.Join(ErrUpdateFailed, err)
	}
	r.advance(ctx, log, entry.ID, StepPatched)

	// Step 3: restore.
	if original != StatusPending {
		log.Info("update: restoring status")
		restored, err := r.API.UpdateOrder(ctx, id, OrderPatch{Status: original})
		if err != nil {
			// The journal stays at "patched" so Recover can finish the restore.
			log.Error("update: restore failed", "error", err)
			return Order{}, err
		}
		updated = restored
	}
	r.advance(ctx, log, entry.ID, StepDone)
	return updated, nil
}

func (r *Repo) advance(ctx context.Context, log *slog.Logger, id uuid.UUID, step Step) {
	r.record(ctx, log, func() error { return r.Journal.Advance(ctx, id, step) })
}

// Journal writes never block an update.
func (r *Repo) record(ctx context.Context, log *slog.Logger, fn func() error) {
	if err := fn(); err != nil {
		log.Warn("update journal write failed", "error", err)
	}
}
