package store

import (
	"context"
	"sync"
	"time"
)

// MemoryKV живёт только в процессе; используется, когда БД не настроена.
type MemoryKV struct {
	mu  sync.RWMutex
	m   map[string]Entry
	now func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string]Entry), now: time.Now}
}

func (s *MemoryKV) Get(_ context.Context, key string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{Value: append([]byte(nil), e.Value...), CreatedAt: e.CreatedAt}, nil
}

func (s *MemoryKV) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.m[key] = Entry{Value: append([]byte(nil), value...), CreatedAt: s.now()}
	s.mu.Unlock()
	return nil
}

func (s *MemoryKV) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryKV) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
