package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGKV: KV поверх Postgres (драйвер pgx/stdlib, регистрируется в main).
type PGKV struct{ DB *sql.DB }

func NewPGKV(db *sql.DB) *PGKV { return &PGKV{DB: db} }

const schema = `
create table if not exists kv_cache (
  key        text primary key,
  value      bytea not null,
  created_at timestamptz not null default now()
)`

// EnsureSchema создаёт таблицу, если её ещё нет.
func (r *PGKV) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

func (r *PGKV) Get(ctx context.Context, key string) (Entry, error) {
	const q = `select value, created_at from kv_cache where key = $1`
	var e Entry
	if err := r.DB.QueryRowContext(ctx, q, key).Scan(&e.Value, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

// Set перезаписывает значение и время записи.
func (r *PGKV) Set(ctx context.Context, key string, value []byte) error {
	const q = `
insert into kv_cache (key, value) values ($1, $2)
on conflict (key) do update
set value = excluded.value, created_at = now()`
	_, err := r.DB.ExecContext(ctx, q, key, value)
	return err
}

func (r *PGKV) Delete(ctx context.Context, key string) error {
	_, err := r.DB.ExecContext(ctx, `delete from kv_cache where key = $1`, key)
	return err
}

// PurgeOlderThan удаляет старые записи, чтобы не раздувать БД.
func (r *PGKV) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	res, err := r.DB.ExecContext(ctx, `delete from kv_cache where created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
