package chat

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMinDelay = 800 * time.Millisecond
	DefaultMaxDelay = 1600 * time.Millisecond
)

var widgetOpeners = []string{
	"I'd be happy to help with that! Here's what I can suggest...",
	"Great question! Let me break this down for you.",
	"That's interesting! Here are some thoughts on this topic.",
	"I can definitely assist with that. Here's my recommendation.",
}

const documentOpener = "I can help you understand this PDF. " +
	"Please connect Lovable Cloud to enable real AI responses based on the PDF content."

// Template строит текст ответа; pick(n) возвращает случайный индекс в [0, n).
type Template func(userText string, pick func(n int) int) string

// WidgetReply отвечает в общем чат-виджете: случайная заготовка + эхо вопроса.
func WidgetReply(userText string, pick func(n int) int) string {
	opener := widgetOpeners[pick(len(widgetOpeners))]
	return fmt.Sprintf("%s\n\nYou asked: \"%s\"\n\nThis is a demo. Connect Lovable Cloud for real AI!", opener, userText)
}

// DocumentReply: ответ в разговоре о выбранном PDF.
func DocumentReply(userText string, _ func(n int) int) string {
	return fmt.Sprintf("%s\n\nYou asked: \"%s\"", documentOpener, userText)
}

type stopper interface{ Stop() bool }

// Responder имитирует ассистента: задержка из [MinDelay, MaxDelay) и заготовленный ответ.
// Сети нет, ошибок нет.
type Responder struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	Template Template

	mu  sync.Mutex
	rnd *rand.Rand

	afterFunc func(time.Duration, func()) stopper
}

func NewResponder(tpl Template) *Responder {
	if tpl == nil {
		tpl = WidgetReply
	}
	return &Responder{
		MinDelay: DefaultMinDelay,
		MaxDelay: DefaultMaxDelay,
		Template: tpl,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// WithSeed делает выбор задержки и заготовки детерминированным.
func (r *Responder) WithSeed(seed uint64) *Responder {
	r.mu.Lock()
	r.rnd = rand.New(rand.NewPCG(seed, seed))
	r.mu.Unlock()
	return r
}

func (r *Responder) intN(n int) int {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rnd != nil {
		return r.rnd.IntN(n)
	}
	return rand.IntN(n)
}

// Delay выбирает задержку равномерно из [MinDelay, MaxDelay).
func (r *Responder) Delay() time.Duration {
	span := r.MaxDelay - r.MinDelay
	if span <= 0 {
		return r.MinDelay
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rnd != nil {
		return r.MinDelay + time.Duration(r.rnd.Int64N(int64(span)))
	}
	return r.MinDelay + time.Duration(rand.Int64N(int64(span)))
}

func (r *Responder) Reply(userText string) string {
	return r.Template(userText, r.intN)
}

// Conversation работает по одному запросу: пока ответ не пришёл, новые сообщения игнорируются.
type Conversation struct {
	r    *Responder
	sink func(Message)

	mu      sync.Mutex
	pending bool
	closed  bool
	timer   stopper
}

// NewConversation создаёт разговор; sink получает сообщения в порядке появления.
func (r *Responder) NewConversation(sink func(Message)) *Conversation {
	return &Conversation{r: r, sink: sink}
}

// Send возвращает false, если текст пустой или предыдущий ответ ещё не пришёл.
func (c *Conversation) Send(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	c.mu.Lock()
	if c.pending || c.closed {
		c.mu.Unlock()
		return false
	}
	c.pending = true
	c.sink(User(text))
	c.timer = c.r.afterFunc(c.r.Delay(), func() { c.deliver(text) })
	c.mu.Unlock()
	return true
}

func (c *Conversation) deliver(userText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.pending {
		return
	}
	c.pending = false
	c.timer = nil
	c.sink(Assistant(c.r.Reply(userText)))
}

func (c *Conversation) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Close останавливает ожидающий ответ; поздний ответ будет отброшен.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.pending = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
