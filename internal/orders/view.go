package orders

import (
	"fmt"
	"sort"
	"time"
)

type Urgency string

const (
	UrgencyNormal  Urgency = "normal"
	UrgencyWarning Urgency = "warning"
	UrgencyUrgent  Urgency = "urgent"
)

// Thresholds in whole minutes until the scheduled time.
const (
	urgentWithin  = 30
	warningWithin = 60
)

// ViewFilter is the UI filter state. A zero Day disables the date filter.
type ViewFilter struct {
	Bucket Bucket
	Day    time.Time
}

type OrderView struct {
	Order
	Bucket       Bucket     `json:"bucket"`
	Method       Method     `json:"method"`
	Note         string     `json:"note,omitempty"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	MinutesUntil *int       `json:"minutes_until,omitempty"`
	Urgency      Urgency    `json:"urgency"`
}

// ViewModel derives display lists from a raw order snapshot. Calendar days
// are taken in Location.
type ViewModel struct {
	Location *time.Location
	Now      func() time.Time
}

func NewViewModel(loc *time.Location) ViewModel {
	if loc == nil {
		loc = time.Local
	}
	return ViewModel{Location: loc, Now: time.Now}
}

func (v ViewModel) now() time.Time {
	if v.Now == nil {
		return time.Now().In(v.loc())
	}
	return v.Now().In(v.loc())
}

func (v ViewModel) loc() *time.Location {
	if v.Location == nil {
		return time.Local
	}
	return v.Location
}

// DayBounds returns local midnight of t's day and the last nanosecond of it.
func (v ViewModel) DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.In(v.loc())
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, v.loc())
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

func (v ViewModel) onDay(o Order, day time.Time) bool {
	at, ok := o.ScheduledAt()
	if !ok {
		return false
	}
	start, end := v.DayBounds(day)
	return !at.Before(start) && !at.After(end)
}

// List applies the bucket and date filters and sorts the result: pending
// first, then by scheduled time ascending. Ties keep snapshot order.
func (v ViewModel) List(all []Order, f ViewFilter) []OrderView {
	out := make([]OrderView, 0, len(all))
	for _, o := range all {
		if f.Bucket != "" && !f.Bucket.Contains(o.Status) {
			continue
		}
		if !f.Day.IsZero() && !v.onDay(o, f.Day) {
			continue
		}
		out = append(out, v.viewOf(o))
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Status == StatusPending, out[j].Status == StatusPending
		if pi != pj {
			return pi
		}
		return scheduledUnix(out[i].Order) < scheduledUnix(out[j].Order)
	})
	return out
}

// Kitchen lists orders in production or ready, oldest scheduled first.
func (v ViewModel) Kitchen(all []Order) []OrderView {
	out := make([]OrderView, 0, len(all))
	for _, o := range all {
		if BucketInProgress.Contains(o.Status) {
			out = append(out, v.viewOf(o))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return scheduledUnix(out[i].Order) < scheduledUnix(out[j].Order)
	})
	return out
}

// PendingBadge counts pending orders scheduled for today.
func (v ViewModel) PendingBadge(all []Order) int {
	today := v.now()
	n := 0
	for _, o := range all {
		if o.Status == StatusPending && v.onDay(o, today) {
			n++
		}
	}
	return n
}

func (v ViewModel) UrgencyFor(o Order) Urgency {
	if !o.Status.Unfulfilled() {
		return UrgencyNormal
	}
	at, ok := o.ScheduledAt()
	if !ok {
		return UrgencyNormal
	}
	return urgencyOf(minutesBetween(v.now(), at))
}

func urgencyOf(minutesUntil int) Urgency {
	switch {
	case minutesUntil <= urgentWithin:
		return UrgencyUrgent
	case minutesUntil <= warningWithin:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}

// DateChoices are the days offered by the date filter: five days back to
// four days ahead, each at local midnight.
func (v ViewModel) DateChoices() []time.Time {
	start, _ := v.DayBounds(v.now())
	out := make([]time.Time, 0, 10)
	for i := -5; i <= 4; i++ {
		out = append(out, start.AddDate(0, 0, i))
	}
	return out
}

// View decorates a single order, as List does.
func (v ViewModel) View(o Order) OrderView { return v.viewOf(o) }

// Clock is the current time in Location.
func (v ViewModel) Clock() time.Time { return v.now() }

func (v ViewModel) viewOf(o Order) OrderView {
	ov := OrderView{
		Order:   o,
		Bucket:  BucketOf(o.Status),
		Method:  o.Method(),
		Note:    o.Note(),
		Urgency: UrgencyNormal,
	}
	if at, ok := o.ScheduledAt(); ok {
		at = at.In(v.loc())
		ov.ScheduledAt = &at
		m := minutesBetween(v.now(), at)
		ov.MinutesUntil = &m
		ov.Urgency = v.UrgencyFor(o)
	}
	return ov
}

// TimeLabel renders the distance to the scheduled time the way the accept
// screen shows it, e.g. "2 godzin" or "15 minut temu".
func TimeLabel(at, now time.Time) string {
	d := at.Sub(now)
	hours := int(d / time.Hour)
	minutes := int(d / time.Minute)
	if hours != 0 {
		return fmt.Sprintf("%d godzin%s", abs(hours), agoSuffix(hours))
	}
	return fmt.Sprintf("%d minut%s", abs(minutes), agoSuffix(minutes))
}

func agoSuffix(n int) string {
	if n < 0 {
		return " temu"
	}
	return ""
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// minutesBetween truncates toward zero.
func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}

// Orders without a scheduled time sort as if scheduled at the epoch.
func scheduledUnix(o Order) int64 {
	if at, ok := o.ScheduledAt(); ok {
		return at.Unix()
	}
	return 0
}
