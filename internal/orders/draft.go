package orders

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	PaymentMethod      = "cod"
	PaymentMethodTitle = "Płatność przy odbiorze"

	MaxNoteLength = 600
	// BookingDays is how far ahead a new order may be scheduled, today included.
	BookingDays = 10
)

// Delivery slots run every 15 minutes from 11:00 to 18:00.
const (
	firstSlotHour = 11
	slotCount     = 29
	slotStep      = 15 * time.Minute
)

type Customer struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Street string `json:"street,omitempty"`
	Number string `json:"number,omitempty"`
	Flat   string `json:"flat,omitempty"`
	City   string `json:"city,omitempty"`
}

func (c Customer) billing(m Method) Billing {
	b := Billing{FirstName: strings.TrimSpace(c.Name), Phone: strings.TrimSpace(c.Phone)}
	if m == MethodDelivery {
		b.Address1 = FormatAddress(c.Street, c.Number, c.Flat)
		b.City = strings.TrimSpace(c.City)
	}
	return b
}

func (c Customer) validate(m Method, errs map[string]string) {
	if strings.TrimSpace(c.Name) == "" {
		errs["name"] = "required"
	}
	if strings.TrimSpace(c.Phone) == "" {
		errs["phone"] = "required"
	}
	if m != MethodDelivery {
		return
	}
	if strings.TrimSpace(c.Street) == "" {
		errs["street"] = "required for delivery"
	}
	if strings.TrimSpace(c.Number) == "" {
		errs["number"] = "required for delivery"
	}
	if strings.TrimSpace(c.City) == "" {
		errs["city"] = "required for delivery"
	}
}

// CustomerOf reads the customer back from an order's billing block.
func CustomerOf(o Order) Customer {
	street, number, flat := ParseAddress(o.Billing.Address1)
	return Customer{
		Name:   o.Billing.FirstName,
		Phone:  o.Billing.Phone,
		Street: street,
		Number: number,
		Flat:   flat,
		City:   o.Billing.City,
	}
}

// Draft is a new order entered by staff.
type Draft struct {
	Customer    Customer        `json:"customer"`
	Method      Method          `json:"method"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	Items       []ItemInput     `json:"items"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Note        string          `json:"note,omitempty"`
}

// Validate checks the draft against the booking rules. now and loc decide
// which days are bookable.
func (d Draft) Validate(now time.Time, loc *time.Location) error {
	errs := map[string]string{}
	m := normalizeMethod(d.Method, errs)
	d.Customer.validate(m, errs)

	total := 0
	for _, it := range Consolidate(d.Items) {
		if it.Quantity < 0 {
			errs["items"] = fmt.Sprintf("negative quantity for product %d", it.ProductID)
		}
		if it.Quantity > 0 {
			total += it.Quantity
		}
	}
	if _, bad := errs["items"]; !bad && total == 0 {
		errs["items"] = "at least one product required"
	}
	if d.DeliveryFee.IsNegative() {
		errs["delivery_fee"] = "must not be negative"
	}
	validateNote(d.Note, errs)
	validateSlot(d.ScheduledAt, loc, errs)
	if _, bad := errs["scheduled_at"]; !bad && !Bookable(d.ScheduledAt, now, loc) {
		errs["scheduled_at"] = fmt.Sprintf("must be within the next %d days", BookingDays)
	}
	return draftErr(errs)
}

// NewOrder builds the create request. Call Validate first.
func (d Draft) NewOrder() NewOrder {
	m := d.Method
	if m != MethodDelivery {
		m = MethodPickup
	}
	items := make([]LineItemPatch, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, LineItemPatch{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	o := NewOrder{
		PaymentMethod:      PaymentMethod,
		PaymentMethodTitle: PaymentMethodTitle,
		SetPaid:            false,
		Billing:            d.Customer.billing(m),
		LineItems:          items,
		FeeLines:           []FeeLine{},
		MetaData:           orderMeta(m, d.ScheduledAt),
	}
	if n := strings.TrimSpace(d.Note); n != "" {
		o.MetaData = append(o.MetaData, MetaData{Key: MetaNote, Value: n})
	}
	if m == MethodDelivery {
		o.FeeLines = append(o.FeeLines, FeeLine{Name: DeliveryFeeName, Total: d.DeliveryFee})
	}
	return o
}

// Edit is a change to an existing order. Nil Items keeps the current lines;
// nil DeliveryFee keeps the current fee lines.
type Edit struct {
	Customer    Customer         `json:"customer"`
	Method      Method           `json:"method"`
	ScheduledAt time.Time        `json:"scheduled_at"`
	Note        string           `json:"note"`
	Items       []ItemInput      `json:"items,omitempty"`
	DeliveryFee *decimal.Decimal `json:"delivery_fee,omitempty"`
}

// Validate checks the edit against current. An unchanged scheduled time is
// accepted even when it lies off the slot grid.
func (e Edit) Validate(loc *time.Location, current Order) error {
	errs := map[string]string{}
	m := normalizeMethod(e.Method, errs)
	e.Customer.validate(m, errs)
	for _, it := range e.Items {
		if it.Quantity < 0 {
			errs["items"] = fmt.Sprintf("negative quantity for product %d", it.ProductID)
		}
	}
	if e.DeliveryFee != nil && e.DeliveryFee.IsNegative() {
		errs["delivery_fee"] = "must not be negative"
	}
	validateNote(e.Note, errs)
	if at, ok := current.ScheduledAt(); !ok || e.ScheduledAt.IsZero() || !at.Equal(e.ScheduledAt) {
		validateSlot(e.ScheduledAt, loc, errs)
	}
	return draftErr(errs)
}

// Patch turns the edit into the repository's update input for current.
func (e Edit) Patch(current Order) Patch {
	m := e.Method
	if m != MethodDelivery {
		m = MethodPickup
	}
	b := e.Customer.billing(m)
	p := Patch{
		Billing:  &b,
		Items:    e.Items,
		// an empty note is written too, so clearing it sticks
		MetaData: append(orderMeta(m, e.ScheduledAt),
			MetaData{Key: MetaNote, Value: strings.TrimSpace(e.Note)}),
	}
	if e.DeliveryFee != nil {
		p.FeeLines = withDeliveryFee(current.FeeLines, *e.DeliveryFee)
	}
	return p
}

// withDeliveryFee replaces the delivery fee total, keeping its line id.
func withDeliveryFee(lines []FeeLine, total decimal.Decimal) []FeeLine {
	out := make([]FeeLine, 0, len(lines)+1)
	found := false
	for _, f := range lines {
		if f.Name == DeliveryFeeName {
			f.Total = total
			found = true
		}
		out = append(out, f)
	}
	if !found {
		out = append(out, FeeLine{Name: DeliveryFeeName, Total: total})
	}
	return out
}

func orderMeta(m Method, at time.Time) []MetaData {
	return []MetaData{
		{Key: MetaMethod, Value: string(m)},
		{Key: MetaScheduledAt, Value: strconv.FormatInt(at.Unix(), 10)},
	}
}

func normalizeMethod(m Method, errs map[string]string) Method {
	switch m {
	case MethodDelivery, MethodPickup:
		return m
	case "":
		return MethodPickup
	}
	errs["method"] = "must be delivery or pickup"
	return MethodPickup
}

func validateNote(note string, errs map[string]string) {
	if utf8.RuneCountInString(strings.TrimSpace(note)) > MaxNoteLength {
		errs["note"] = fmt.Sprintf("at most %d characters", MaxNoteLength)
	}
}

func validateSlot(at time.Time, loc *time.Location, errs map[string]string) {
	if at.IsZero() {
		errs["scheduled_at"] = "required"
		return
	}
	if !IsSlot(at, loc) {
		errs["scheduled_at"] = "not a delivery slot"
	}
}

func draftErr(errs map[string]string) error {
	if len(errs) == 0 {
		return nil
	}
	return &DraftError{Fields: errs}
}

// DeliverySlots lists the bookable times of day as "HH:MM".
func DeliverySlots() []string {
	out := make([]string, 0, slotCount)
	for i := 0; i < slotCount; i++ {
		d := time.Duration(firstSlotHour)*time.Hour + time.Duration(i)*slotStep
		out = append(out, fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60))
	}
	return out
}

// SlotTime combines a calendar day and an "HH:MM" slot in loc.
func SlotTime(day time.Time, slot string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.Parse("15:04", slot)
	if err != nil {
		return time.Time{}, fmt.Errorf("slot %q: %w", slot, err)
	}
	day = day.In(loc)
	at := time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	if !IsSlot(at, loc) {
		return time.Time{}, fmt.Errorf("slot %q is outside delivery hours", slot)
	}
	return at, nil
}

func IsSlot(at time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	at = at.In(loc)
	if at.Second() != 0 || at.Nanosecond() != 0 {
		return false
	}
	hm := at.Format("15:04")
	for _, s := range DeliverySlots() {
		if s == hm {
			return true
		}
	}
	return false
}

// Bookable reports whether at falls on today or one of the following
// BookingDays-1 days.
func Bookable(at, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	first := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	last := first.AddDate(0, 0, BookingDays)
	return !at.Before(first) && at.Before(last)
}

// FormatAddress renders "street number" or "street number/flat".
func FormatAddress(street, number, flat string) string {
	addr := strings.TrimSpace(street) + " " + strings.TrimSpace(number)
	if f := strings.TrimSpace(flat); f != "" {
		addr += "/" + f
	}
	return strings.TrimSpace(addr)
}

// ParseAddress splits an address written by FormatAddress. The last word is
// the number, optionally with "/flat".
func ParseAddress(addr string) (street, number, flat string) {
	fields := strings.Fields(addr)
	if len(fields) == 0 {
		return "", "", ""
	}
	last := fields[len(fields)-1]
	street = strings.Join(fields[:len(fields)-1], " ")
	number, flat, _ = strings.Cut(last, "/")
	return street, number, flat
}
