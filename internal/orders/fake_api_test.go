package orders

import (
	"context"
	"errors"
	"sync"
)

type apiCall struct {
	Op    string
	ID    int64
	Patch OrderPatch
}

// fakeAPI mimics the store: line items are matched by id, a line without id
// is always appended and quantity 0 with an id removes the line.
type fakeAPI struct {
	mu     sync.Mutex
	orders map[int64]Order
	nextID int64
	calls  []apiCall
	// failOn makes the n-th UpdateOrder call (1-based) fail.
	failOn  map[int]error
	updates int
	listErr error
}

func newFakeAPI(orders ...Order) *fakeAPI {
	f := &fakeAPI{orders: map[int64]Order{}, nextID: 1000, failOn: map[int]error{}}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeAPI) ListOrders(_ context.Context, flt Filter) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, apiCall{Op: "list"})
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []Order
	for _, o := range f.orders {
		if len(flt.Statuses) == 0 || containsStatus(flt.Statuses, o.Status) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeAPI) GetOrder(_ context.Context, id int64) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, apiCall{Op: "get", ID: id})
	o, ok := f.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (f *fakeAPI) UpdateOrder(_ context.Context, id int64, p OrderPatch) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	f.calls = append(f.calls, apiCall{Op: "update", ID: id, Patch: p})
	if err, ok := f.failOn[f.updates]; ok {
		return Order{}, err
	}
	o, ok := f.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if p.Status != "" {
		o.Status = p.Status
	}
	if p.Billing != nil {
		o.Billing = *p.Billing
	}
	if p.LineItems != nil {
		o.LineItems = f.applyLines(o.LineItems, p.LineItems)
	}
	if p.FeeLines != nil {
		o.FeeLines = p.FeeLines
	}
	for _, m := range p.MetaData {
		o.MetaData = setMeta(o.MetaData, m)
	}
	f.orders[id] = o
	return o, nil
}

func (f *fakeAPI) CreateOrder(_ context.Context, n NewOrder) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, apiCall{Op: "create"})
	f.nextID++
	o := Order{
		ID:       f.nextID,
		Status:   StatusPending,
		Billing:  n.Billing,
		FeeLines: n.FeeLines,
		MetaData: n.MetaData,
	}
	o.LineItems = f.applyLines(nil, n.LineItems)
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeAPI) applyLines(cur []LineItem, patch []LineItemPatch) []LineItem {
	out := append([]LineItem(nil), cur...)
	for _, p := range patch {
		if p.ID == nil {
			f.nextID++
			id := f.nextID
			out = append(out, LineItem{ID: &id, ProductID: p.ProductID, Quantity: p.Quantity})
			continue
		}
		for i := range out {
			if out[i].ID != nil && *out[i].ID == *p.ID {
				out[i].Quantity = p.Quantity
			}
		}
	}
	kept := out[:0]
	for _, li := range out {
		if li.Quantity > 0 {
			kept = append(kept, li)
		}
	}
	return kept
}

func (f *fakeAPI) order(id int64) Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id]
}

func (f *fakeAPI) updateCalls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Op == "update" {
			out = append(out, c)
		}
	}
	return out
}

func setMeta(list []MetaData, m MetaData) []MetaData {
	for i := range list {
		if list[i].Key == m.Key {
			list[i].Value = m.Value
			return list
		}
	}
	return append(list, m)
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var errRemote = errors.New("remote: 400 invalid product")

func id64(v int64) *int64 { return &v }
