package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Step marks how far an UpdateOrder run got.
type Step string

const (
	StepBegun     Step = "begun"
	StepDemoted   Step = "demoted"
	StepPatched   Step = "patched"
	StepDone      Step = "done"
	StepFailed    Step = "failed"
	StepAbandoned Step = "abandoned"
)

// Finished steps need no attention on the next start.
func (s Step) Finished() bool {
	return s == StepDone || s == StepAbandoned
}

type JournalEntry struct {
	ID             uuid.UUID `json:"id"`
	OrderID        int64     `json:"order_id"`
	OriginalStatus Status    `json:"original_status"`
	Step           Step      `json:"step"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Journal persists an in-progress marker for every UpdateOrder run so an
// interrupted run can be detected on the next start.
type Journal interface {
	Begin(ctx context.Context, e JournalEntry) error
	Advance(ctx context.Context, id uuid.UUID, step Step) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error
	Unfinished(ctx context.Context) ([]JournalEntry, error)
}

type NopJournal struct{}

func (NopJournal) Begin(context.Context, JournalEntry) error { return nil }
func (NopJournal) Advance(context.Context, uuid.UUID, Step) error { return nil }
func (NopJournal) Fail(context.Context, uuid.UUID, string) error { return nil }
func (NopJournal) Unfinished(context.Context) ([]JournalEntry, error) { return nil, nil }

// MemoryJournal keeps entries for the lifetime of the process.
type MemoryJournal struct {
	mu      sync.Mutex
	entries map[uuid.UUID]JournalEntry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{entries: map[uuid.UUID]JournalEntry{}}
}

func (j *MemoryJournal) Begin(_ context.Context, e JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e.UpdatedAt = e.StartedAt
	j.entries[e.ID] = e
	return nil
}

func (j *MemoryJournal) Advance(_ context.Context, id uuid.UUID, step Step) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Step = step
	e.UpdatedAt = time.Now()
	j.entries[id] = e
	return nil
}

func (j *MemoryJournal) Fail(_ context.Context, id uuid.UUID, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Step = StepFailed
	e.Error = reason
	e.UpdatedAt = time.Now()
	j.entries[id] = e
	return nil
}

func (j *MemoryJournal) Unfinished(context.Context) ([]JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []JournalEntry
	for _, e := range j.entries {
		if !e.Step.Finished() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StartedAt.Before(out[b].StartedAt) })
	return out, nil
}

// Get is used by tests and the recovery log.
func (j *MemoryJournal) Get(id uuid.UUID) (JournalEntry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e, ok := j.entries[id]
	return e, ok
}

// RecoveryReport summarises one Recover pass.
type RecoveryReport struct {
	Restored  []int64
	Abandoned []int64
}

// Recover finishes interrupted updates. Runs that got past the patch have
// their original status restored. Anything earlier is left as the store has
// it (possibly pending) and logged for the operator; there is no rollback.
func (r *Repo) Recover(ctx context.Context) (RecoveryReport, error) {
	var rep RecoveryReport
	entries, err := r.Journal.Unfinished(ctx)
	if err != nil {
		return rep, err
	}
	for _, e := range entries {
		log := r.Log.With("order_id", e.OrderID, "journal_id", e.ID, "step", e.Step)
		if e.Step == StepPatched && e.OriginalStatus != StatusPending {
			if _, err := r.API.UpdateOrder(ctx, e.OrderID, OrderPatch{Status: e.OriginalStatus}); err != nil {
				log.Error("recover: restore failed", "error", err)
				continue
			}
			r.advance(ctx, log, e.ID, StepDone)
			rep.Restored = append(rep.Restored, e.OrderID)
			log.Info("recover: status restored", "status", e.OriginalStatus)
			continue
		}
		if e.Step == StepPatched {
			r.advance(ctx, log, e.ID, StepDone)
			continue
		}
		log.Warn("recover: interrupted update needs manual review", "original_status", e.OriginalStatus, "error", e.Error)
		r.advance(ctx, log, e.ID, StepAbandoned)
		rep.Abandoned = append(rep.Abandoned, e.OrderID)
	}
	return rep, nil
}
