package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
)

// JournalRepo stores UpdateOrder progress in order_update_journal.
type JournalRepo struct {
	DB *pgxpool.Pool
}

func (r *JournalRepo) Begin(ctx context.Context, e orders.JournalEntry) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO order_update_journal (id, order_id, original_status, step, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		e.ID, e.OrderID, string(e.OriginalStatus), string(e.Step), e.StartedAt)
	return err
}

func (r *JournalRepo) Advance(ctx context.Context, id uuid.UUID, step orders.Step) error {
	return r.set(ctx, id, step, "")
}

func (r *JournalRepo) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	return r.set(ctx, id, orders.StepFailed, reason)
}

func (r *JournalRepo) set(ctx context.Context, id uuid.UUID, step orders.Step, reason string) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE order_update_journal
		SET step = $2, error = CASE WHEN $3 = '' THEN error ELSE $3 END, updated_at = $4
		WHERE id = $1`,
		id, string(step), reason, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return orders.ErrNotFound
	}
	return nil
}

func (r *JournalRepo) Unfinished(ctx context.Context) ([]orders.JournalEntry, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, original_status, step, error, started_at, updated_at
		FROM order_update_journal
		WHERE step NOT IN ('done', 'abandoned')
		ORDER BY started_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.JournalEntry
	for rows.Next() {
		var (
			e            orders.JournalEntry
			status, step string
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &status, &step, &e.Error, &e.StartedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.OriginalStatus = orders.Status(status)
		e.Step = orders.Step(step)
		out = append(out, e)
	}
	return out, rows.Err()
}
