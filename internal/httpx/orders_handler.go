package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/poller"
	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
)

const dateLayout = "2006-01-02"

type OrderListResp struct {
	Orders       []orders.OrderView `json:"orders"`
	FetchedAt    time.Time          `json:"fetched_at"`
	Version      uint64             `json:"version"`
	PendingBadge int                `json:"pending_badge"`
	Error        string             `json:"error,omitempty"`
}

type OrderResp struct {
	orders.OrderView
	Customer  orders.Customer `json:"customer"`
	TimeLabel string          `json:"time_label,omitempty"`
}

// DraftReq is the create/edit form. The schedule is given either as date and
// slot or as scheduled_at.
type DraftReq struct {
	Customer    orders.Customer    `json:"customer"`
	Method      orders.Method      `json:"method"`
	Date        string             `json:"date,omitempty"`
	Slot        string             `json:"slot,omitempty"`
	ScheduledAt *time.Time         `json:"scheduled_at,omitempty"`
	Items       []orders.ItemInput `json:"items"`
	DeliveryFee *decimal.Decimal   `json:"delivery_fee,omitempty"`
	Note        string             `json:"note"`
}

type StatusReq struct {
	Status orders.Status `json:"status"`
}

func (a *API) snapshot(w http.ResponseWriter, r *http.Request) (poller.Snapshot, bool) {
	if !a.Settings.Configured(r.Context()) {
		a.writeErr(w, r, settings.ErrNotConfigured)
		return poller.Snapshot{}, false
	}
	return a.Orders.Snapshot(), true
}

func snapshotError(s poller.Snapshot) string {
	if s.Err == nil {
		return ""
	}
	code, body := errorResponse(s.Err)
	if code == http.StatusInternalServerError {
		return s.Err.Error()
	}
	return body.Error
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.snapshot(w, r)
	if !ok {
		return
	}
	var f orders.ViewFilter
	if b := r.URL.Query().Get("bucket"); b != "" {
		bucket, ok := orders.ParseBucket(b)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown bucket " + strconv.Quote(b)})
			return
		}
		f.Bucket = bucket
	}
	if d := r.URL.Query().Get("date"); d != "" {
		day, err := a.parseDay(d)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "date must be YYYY-MM-DD"})
			return
		}
		f.Day = day
	}
	writeJSON(w, http.StatusOK, OrderListResp{
		Orders:       nonNil(a.View.List(snap.Orders, f)),
		FetchedAt:    snap.FetchedAt,
		Version:      snap.Version,
		PendingBadge: a.View.PendingBadge(snap.Orders),
		Error:        snapshotError(snap),
	})
}

func (a *API) kitchenOrders(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, OrderListResp{
		Orders:       nonNil(a.View.Kitchen(snap.Orders)),
		FetchedAt:    snap.FetchedAt,
		Version:      snap.Version,
		PendingBadge: a.View.PendingBadge(snap.Orders),
		Error:        snapshotError(snap),
	})
}

func (a *API) pendingBadge(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": a.View.PendingBadge(snap.Orders)})
}

func (a *API) dateChoices(w http.ResponseWriter, r *http.Request) {
	days := a.View.DateChoices()
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.Format(dateLayout))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"today": a.View.Clock().Format(dateLayout),
		"dates": out,
	})
}

func (a *API) deliverySlots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"slots":        orders.DeliverySlots(),
		"booking_days": orders.BookingDays,
	})
}

func (a *API) refreshOrders(w http.ResponseWriter, r *http.Request) {
	a.Orders.Invalidate()
	w.WriteHeader(http.StatusAccepted)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	o, err := a.Workflows.Repo.FetchOrder(r.Context(), id)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.orderResp(o))
}

func (a *API) acceptOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	o, err := a.Workflows.Accept(r.Context(), id)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.orderResp(o))
}

func (a *API) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req StatusReq
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := a.Workflows.ChangeStatus(r.Context(), id, orders.Status(strings.TrimSpace(string(req.Status))))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.orderResp(o))
}

func (a *API) editOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req DraftReq
	if !decodeJSON(w, r, &req) {
		return
	}
	at, err := a.scheduledAt(req)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	o, err := a.Workflows.Edit(r.Context(), id, orders.Edit{
		Customer:    req.Customer,
		Method:      req.Method,
		ScheduledAt: at,
		Note:        req.Note,
		Items:       req.Items,
		DeliveryFee: req.DeliveryFee,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.orderResp(o))
}

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	var req DraftReq
	if !decodeJSON(w, r, &req) {
		return
	}
	at, err := a.scheduledAt(req)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	d := orders.Draft{
		Customer:    req.Customer,
		Method:      req.Method,
		ScheduledAt: at,
		Items:       req.Items,
		Note:        req.Note,
	}
	if req.DeliveryFee != nil {
		d.DeliveryFee = *req.DeliveryFee
	}
	o, err := a.Workflows.Create(r.Context(), d)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.orderResp(o))
}

func (a *API) orderResp(o orders.Order) OrderResp {
	v := a.View.View(o)
	resp := OrderResp{OrderView: v, Customer: orders.CustomerOf(o)}
	if v.ScheduledAt != nil {
		resp.TimeLabel = orders.TimeLabel(*v.ScheduledAt, a.View.Clock())
	}
	return resp
}

func (a *API) scheduledAt(req DraftReq) (time.Time, error) {
	if req.ScheduledAt != nil {
		return req.ScheduledAt.In(a.location()), nil
	}
	if req.Date == "" && req.Slot == "" {
		return time.Time{}, nil
	}
	day, err := a.parseDay(req.Date)
	if err != nil {
		return time.Time{}, &orders.DraftError{Fields: map[string]string{"scheduled_at": "date must be YYYY-MM-DD"}}
	}
	at, err := orders.SlotTime(day, req.Slot, a.location())
	if err != nil {
		return time.Time{}, &orders.DraftError{Fields: map[string]string{"scheduled_at": err.Error()}}
	}
	return at, nil
}

func (a *API) parseDay(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, a.location())
}

func (a *API) location() *time.Location {
	if a.View.Location != nil {
		return a.View.Location
	}
	return time.Local
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
