package session

import (
	"sync"

	"pdf-chat/api/internal/chat"
)

// Registry: сессии по ключу (id чата Telegram, id HTTP-сессии).
type Registry struct {
	widget   *chat.Responder
	document *chat.Responder

	mu    sync.Mutex
	m     map[string]*Session
	hooks []func(*Session)
}

func NewRegistry(widget, document *chat.Responder) *Registry {
	return &Registry{widget: widget, document: document, m: make(map[string]*Session)}
}

// OnCreate вызывается для каждой новой сессии (например, подписать бота на сообщения).
func (r *Registry) OnCreate(fn func(*Session)) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Get возвращает сессию по ключу, создавая её при первом обращении.
func (r *Registry) Get(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[key]; ok {
		return s
	}
	// хуки под блокировкой: сессия никому не видна до подписки
	s := New(key, r.widget, r.document)
	for _, h := range r.hooks {
		h(s)
	}
	r.m[key] = s
	return s
}

func (r *Registry) Lookup(key string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[key]
	return s, ok
}

// Drop закрывает и забывает сессию.
func (r *Registry) Drop(key string) {
	r.mu.Lock()
	s, ok := r.m[key]
	delete(r.m, key)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
