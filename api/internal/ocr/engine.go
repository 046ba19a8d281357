package ocr

import (
	"sync"
)

// Manager хранит опции OCR по ключу сессии (чат Telegram, HTTP-сессия).
type Manager struct {
	def Options

	mu sync.Mutex
	m  map[string]Options
}

func NewManager(def Options) *Manager {
	return &Manager{def: def, m: make(map[string]Options)}
}

func (m *Manager) Get(key string) Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.m[key]; ok {
		return o
	}
	return m.def
}

func (m *Manager) Set(key string, o Options) {
	m.mu.Lock()
	m.m[key] = o
	m.mu.Unlock()
}

// Update применяет fn к текущим опциям ключа и сохраняет результат.
func (m *Manager) Update(key string, fn func(*Options)) Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.m[key]
	if !ok {
		o = m.def
	}
	fn(&o)
	m.m[key] = o
	return o
}
