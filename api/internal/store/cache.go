package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"pdf-chat/api/internal/ocr"
)

// KeyPrefix: пространство имён результатов OCR в KV.
const KeyPrefix = "ocr_"

// Key строит ключ записи. id задаёт вызывающий: конвейер приёма передаёт
// session.CacheID (SHA-256 содержимого плюс хэш опций), а не UUID файла,
// поэтому повторная загрузка тех же байтов попадает в кэш.
func Key(id string) string { return KeyPrefix + id }

// EvictionPolicy решает, считать ли запись живой. По умолчанию: без вытеснения и без срока.
type EvictionPolicy interface {
	Expired(e Entry, now time.Time) bool
}

type NoEviction struct{}

func (NoEviction) Expired(Entry, time.Time) bool { return false }

// MaxAge: записи старше D читаются как отсутствующие.
type MaxAge time.Duration

func (m MaxAge) Expired(e Entry, now time.Time) bool {
	return m > 0 && now.Sub(e.CreatedAt) > time.Duration(m)
}

// ResultCache хранит результаты OCR под ключом Key(id).
type ResultCache struct {
	KV     KV
	Policy EvictionPolicy
	now    func() time.Time
}

func NewResultCache(kv KV, policy EvictionPolicy) *ResultCache {
	if policy == nil {
		policy = NoEviction{}
	}
	return &ResultCache{KV: kv, Policy: policy, now: time.Now}
}

func (c *ResultCache) Store(ctx context.Context, id string, r ocr.Result) error {
	js, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.KV.Set(ctx, Key(id), js)
}

// Retrieve возвращает ok=false, если записи нет, она протухла или JSON битый.
func (c *ResultCache) Retrieve(ctx context.Context, id string) (ocr.Result, bool) {
	e, err := c.KV.Get(ctx, Key(id))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("cache: get %s: %v", id, err)
		}
		return ocr.Result{}, false
	}
	if c.Policy.Expired(e, c.now()) {
		_ = c.KV.Delete(ctx, Key(id))
		return ocr.Result{}, false
	}
	var r ocr.Result
	if err := json.Unmarshal(e.Value, &r); err != nil {
		// битый кэш: считаем, что записи нет
		return ocr.Result{}, false
	}
	return r, true
}
