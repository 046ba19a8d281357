package session

import (
	"sync"

	"pdf-chat/api/internal/chat"
	"pdf-chat/api/internal/ocr"
	"pdf-chat/api/internal/viewer"
)

// Observer получает каждое добавленное в транскрипт сообщение.
type Observer func(conv string, m chat.Message)

// Session владеет State и заменяет его целиком при каждом изменении.
// После Close все поздние обновления (ответы OCR, таймеры чата) отбрасываются.
type Session struct {
	Key string

	widget   *chat.Responder
	document *chat.Responder

	mu        sync.Mutex
	st        State
	closed    bool
	observers []Observer
	convs     map[string]*chat.Conversation
	tasks     map[string]*ocr.Task
}

func New(key string, widget, document *chat.Responder) *Session {
	if widget == nil {
		widget = chat.NewResponder(chat.WidgetReply)
	}
	if document == nil {
		document = chat.NewResponder(chat.DocumentReply)
	}
	return &Session{
		Key:      key,
		widget:   widget,
		document: document,
		st:       State{Transcripts: map[string][]chat.Message{}},
		convs:    make(map[string]*chat.Conversation),
		tasks:    make(map[string]*ocr.Task),
	}
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Update применяет чистую функцию к состоянию. false: сессия уже закрыта.
func (s *Session) Update(fn func(State) State) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.st, false
	}
	s.st = fn(s.st)
	return s.st, true
}

func (s *Session) OnMessage(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Append добавляет сообщение в разговор и уведомляет наблюдателей вне блокировки.
func (s *Session) Append(conv string, m chat.Message) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.st = s.st.WithMessage(conv, m)
	obs := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, o := range obs {
		o(conv, m)
	}
	return true
}

func (s *Session) conversation(conv string) *chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.convs[conv]; ok {
		return c
	}
	r := s.document
	if conv == GeneralConversation {
		r = s.widget
	}
	c := r.NewConversation(func(m chat.Message) { s.Append(conv, m) })
	s.convs[conv] = c
	return c
}

// Send отправляет текст в разговор выбранного файла (или в общий, если файл не выбран).
// Возвращает false для пустого текста, при ожидании ответа и после Close.
func (s *Session) Send(text string) bool {
	if s.Closed() {
		return false
	}
	return s.conversation(s.Snapshot().SelectedID).Send(text)
}

// SendGeneral: сообщение в чат-виджет независимо от выбранного файла.
func (s *Session) SendGeneral(text string) bool {
	if s.Closed() {
		return false
	}
	return s.conversation(GeneralConversation).Send(text)
}

// Pending: ждёт ли разговор выбранного файла ответа ассистента.
func (s *Session) Pending() bool {
	s.mu.Lock()
	c, ok := s.convs[s.st.SelectedID]
	s.mu.Unlock()
	return ok && c.Pending()
}

func (s *Session) Select(id string) bool {
	st, ok := s.Update(func(st State) State { return st.WithSelected(id) })
	return ok && st.SelectedID == id
}

// Navigate применяет переход просмотрщика к выбранному файлу.
func (s *Session) Navigate(fn func(viewer.State) viewer.State) (viewer.State, bool) {
	st, ok := s.Update(func(st State) State {
		if _, sel := st.Selected(); !sel {
			return st
		}
		return st.WithViewer(fn(st.Viewer))
	})
	if !ok {
		return viewer.State{}, false
	}
	_, sel := st.Selected()
	return st.Viewer, sel
}

func (s *Session) track(fileID string, t *ocr.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.tasks[fileID] = t
	return true
}

func (s *Session) untrack(fileID string, t *ocr.Task) {
	s.mu.Lock()
	if s.tasks[fileID] == t {
		delete(s.tasks, fileID)
	}
	s.mu.Unlock()
}

// Cancel отменяет незавершённый OCR-запрос файла. false: запроса нет.
func (s *Session) Cancel(fileID string) bool {
	s.mu.Lock()
	t, ok := s.tasks[fileID]
	s.mu.Unlock()
	if ok {
		t.Cancel()
	}
	return ok
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close разрушает сессию: отменяет OCR-запросы и ожидающие ответы чата.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tasks := s.tasks
	convs := s.convs
	s.tasks = map[string]*ocr.Task{}
	s.convs = map[string]*chat.Conversation{}
	s.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
	for _, c := range convs {
		c.Close()
	}
}
