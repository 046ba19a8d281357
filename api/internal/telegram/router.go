package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pdf-chat/api/internal/chat"
	"pdf-chat/api/internal/ocr"
	"pdf-chat/api/internal/session"
	"pdf-chat/api/internal/util"
)

// лимит Telegram 4096, с запасом под префикс
const maxText = 3900

// Bot: то, что роутеру нужно от *tgbotapi.BotAPI.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot      Bot
	Sessions *session.Registry
	Intake   *session.Intake
	Options  *ocr.Manager

	// Health проверяет зависимости для /health; nil: всегда OK.
	Health func(ctx context.Context) error
	// Download скачивает файл по прямой ссылке Telegram.
	Download func(ctx context.Context, url string) ([]byte, error)

	wg sync.WaitGroup
}

// NewRouter связывает роутер с реестром: каждая новая сессия пересылает
// ответы ассистента в свой чат.
func NewRouter(bot Bot, sessions *session.Registry, intake *session.Intake, options *ocr.Manager) *Router {
	if options == nil {
		options = ocr.NewManager(ocr.Options{})
	}
	r := &Router{
		Bot:      bot,
		Sessions: sessions,
		Intake:   intake,
		Options:  options,
		Download: download,
	}
	sessions.OnCreate(func(s *session.Session) {
		cid, err := strconv.ParseInt(s.Key, 10, 64)
		if err != nil {
			return
		}
		s.OnMessage(func(conv string, m chat.Message) {
			if m.Role != chat.RoleAssistant {
				return
			}
			r.pushMessage(cid, s, conv, m)
		})
	})
	return r
}

func chatKey(cid int64) string { return strconv.FormatInt(cid, 10) }

func (r *Router) session(cid int64) *session.Session { return r.Sessions.Get(chatKey(cid)) }

// HandleUpdate разбирает одно обновление. Документы обрабатываются в фоне,
// чтобы /cancel и чат оставались доступны во время OCR.
func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID

	if msg.IsCommand() {
		r.HandleCommand(msg)
		return
	}

	if msg.Document != nil {
		doc := *msg.Document
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.acceptDocument(cid, doc)
		}()
		return
	}

	if msg.Text != "" {
		// пустой текст и текст во время ожидания ответа: no-op
		r.session(cid).Send(msg.Text)
	}
}

// Wait дожидается фоновой обработки документов.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) pushMessage(cid int64, s *session.Session, conv string, m chat.Message) {
	text := m.Content
	if conv != session.GeneralConversation {
		if f, ok := s.Snapshot().File(conv); ok {
			text = "📄 " + f.Name + "\n\n" + text
		}
	}
	r.send(cid, text)
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, util.Truncate(text, maxText))
	if _, err := r.Bot.Send(msg); err != nil {
		log.Printf("telegram: send to %d: %v", chatID, err)
	}
}

func (r *Router) sendWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, util.Truncate(text, maxText))
	msg.ReplyMarkup = kb
	if _, err := r.Bot.Send(msg); err != nil {
		log.Printf("telegram: send to %d: %v", chatID, err)
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, fmt.Sprintf("⚠️ %v", err))
}

func download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func argsOf(msg *tgbotapi.Message) string {
	return strings.TrimSpace(msg.CommandArguments())
}
