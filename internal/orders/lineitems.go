package orders

import "sort"

// ItemInput is a desired quantity for one product, as sent by the client.
type ItemInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// LineItemPatch is the wire shape the store expects on update and create.
// A missing id means "create a new line"; quantity 0 with an id deletes it.
type LineItemPatch struct {
	ID        *int64 `json:"id,omitempty"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Consolidate merges duplicate products by summing their quantities.
// The first occurrence decides the position in the result.
func Consolidate(items []ItemInput) []ItemInput {
	out := make([]ItemInput, 0, len(items))
	idx := make(map[int64]int, len(items))
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}

type currentLine struct {
	id       *int64
	quantity int
	// extra holds ids of duplicate lines for the same product.
	extra []int64
}

func indexCurrent(items []LineItem) (map[int64]*currentLine, []int64) {
	byProduct := make(map[int64]*currentLine, len(items))
	order := make([]int64, 0, len(items))
	for _, it := range items {
		c, ok := byProduct[it.ProductID]
		if !ok {
			byProduct[it.ProductID] = &currentLine{id: it.ID, quantity: it.Quantity}
			order = append(order, it.ProductID)
			continue
		}
		c.quantity += it.Quantity
		if it.ID == nil {
			continue
		}
		if c.id == nil {
			c.id = it.ID
		} else {
			c.extra = append(c.extra, *it.ID)
		}
	}
	return byProduct, order
}

// BuildLineItemPatch turns the desired product quantities into the list the
// store needs: updates keep the existing line id, new products carry no id and
// every product no longer wanted is sent with quantity 0.
func BuildLineItemPatch(current []LineItem, desired []ItemInput) []LineItemPatch {
	cur, curOrder := indexCurrent(current)
	want := Consolidate(desired)

	wanted := make(map[int64]int, len(want))
	out := make([]LineItemPatch, 0, len(want)+len(cur))
	for _, it := range want {
		wanted[it.ProductID] = it.Quantity
		if it.Quantity <= 0 {
			continue
		}
		p := LineItemPatch{ProductID: it.ProductID, Quantity: it.Quantity}
		if c, ok := cur[it.ProductID]; ok && c.id != nil {
			id := *c.id
			p.ID = &id
		}
		out = append(out, p)
	}

	for _, pid := range curOrder {
		c := cur[pid]
		if q, ok := wanted[pid]; (!ok || q <= 0) && c.id != nil {
			id := *c.id
			out = append(out, LineItemPatch{ID: &id, ProductID: pid, Quantity: 0})
		}
		// Duplicate lines on the store side are folded into the first one.
		for _, dup := range c.extra {
			id := dup
			out = append(out, LineItemPatch{ID: &id, ProductID: pid, Quantity: 0})
		}
	}
	return out
}

// ItemsOf returns the current lines of an order as desired quantities.
func ItemsOf(o Order) []ItemInput {
	out := make([]ItemInput, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		out = append(out, ItemInput{ProductID: li.ProductID, Quantity: li.Quantity})
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
