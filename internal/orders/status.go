package orders

import "strings"

type Status string

const (
	StatusPending      Status = "pending"
	StatusProcessing   Status = "processing"
	StatusInProduction Status = "w-produkcji"
	StatusReady        Status = "gotowe"
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
)

// AllStatuses lists every status this system knows, in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusInProduction,
	StatusReady,
	StatusCompleted,
	StatusCancelled,
}

// manualTargets are the statuses staff may pick on the status screen.
// pending stays selectable as a test option.
var manualTargets = map[Status]bool{
	StatusProcessing:   true,
	StatusInProduction: true,
	StatusReady:        true,
	StatusCompleted:    true,
	StatusCancelled:    true,
	StatusPending:      true,
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Unfulfilled statuses take part in urgency colouring.
func (s Status) Unfulfilled() bool {
	return s == StatusPending || s == StatusProcessing || s == StatusInProduction
}

// CanAccept: only a freshly placed order can be accepted into the queue.
func CanAccept(from Status) bool {
	return from == StatusPending
}

// CanTransition checks a manual status change.
func CanTransition(from, to Status) bool {
	if !from.Valid() || from.Terminal() {
		return false
	}
	return manualTargets[to]
}

type Bucket string

const (
	BucketQueued     Bucket = "w-kolejce"
	BucketInProgress Bucket = "w-realizacji"
	BucketFinished   Bucket = "zakonczone"
)

var bucketStatuses = map[Bucket][]Status{
	BucketQueued:     {StatusProcessing, StatusPending},
	BucketInProgress: {StatusInProduction, StatusReady},
	BucketFinished:   {StatusCompleted, StatusCancelled},
}

func (b Bucket) Statuses() []Status {
	return append([]Status(nil), bucketStatuses[b]...)
}

func (b Bucket) Contains(s Status) bool {
	for _, v := range bucketStatuses[b] {
		if v == s {
			return true
		}
	}
	return false
}

// BucketOf maps a status to its display group. Unknown statuses map to "".
func BucketOf(s Status) Bucket {
	for b, list := range bucketStatuses {
		for _, v := range list {
			if v == s {
				return b
			}
		}
	}
	return ""
}

// ParseBucket accepts the tab ids used by the client as well as English aliases.
func ParseBucket(s string) (Bucket, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(BucketQueued), "queued":
		return BucketQueued, true
	case string(BucketInProgress), "in-progress", "in_progress":
		return BucketInProgress, true
	case string(BucketFinished), "finished":
		return BucketFinished, true
	}
	return "", false
}
