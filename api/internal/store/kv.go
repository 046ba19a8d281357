package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// Entry: сырое значение и время записи (нужно политикам вытеснения).
type Entry struct {
	Value     []byte
	CreatedAt time.Time
}

// KV: долговременное локальное хранилище ключ-значение.
type KV interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
