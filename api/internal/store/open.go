package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// OpenPG открывает пул через драйвер "pgx" (импортируется в main) и проверяет соединение.
func OpenPG(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

// Policy выбирает политику по возрасту; maxAge <= 0 означает без вытеснения.
func Policy(maxAge time.Duration) EvictionPolicy {
	if maxAge <= 0 {
		return NoEviction{}
	}
	return MaxAge(maxAge)
}

// RunPurge периодически чистит старые строки, пока ctx жив.
func RunPurge(ctx context.Context, kv *PGKV, maxAge, every time.Duration) {
	if maxAge <= 0 || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := kv.PurgeOlderThan(ctx, maxAge)
			if err != nil {
				log.Printf("store: purge: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("store: purged %d cached results older than %v", n, maxAge)
			}
		}
	}
}
