package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-kitchen-orders/internal/settings"
)

// SettingsRepo is the settings.Backend on the settings table.
type SettingsRepo struct {
	DB *pgxpool.Pool
}

func (r *SettingsRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := r.DB.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, settings.ErrMissing
	}
	return v, err
}

func (r *SettingsRepo) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	return err
}
