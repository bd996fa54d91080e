package orders

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidDraft      = errors.New("invalid order draft")
	ErrNoCategory        = errors.New("preferred category not set")
	ErrNoProducts        = errors.New("no products in preferred category")

	// ErrUpdateFailed is returned when the line item patch is rejected after the
	// order has already been moved to pending. The order stays pending remotely.
	ErrUpdateFailed = errors.New("order update failed")
)

// DraftError lists every field that failed validation.
type DraftError struct {
	Fields map[string]string
}

func (e *DraftError) Error() string {
	msg := "invalid order draft"
	for _, k := range sortedKeys(e.Fields) {
		msg += "; " + k + ": " + e.Fields[k]
	}
	return msg
}

func (e *DraftError) Unwrap() error { return ErrInvalidDraft }
