package telegram

import (
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pdf-chat/api/internal/viewer"
)

func (r *Router) handleCallback(cb tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	data := cb.Data
	if _, err := r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil { // ack
		log.Printf("telegram: callback ack: %v", err)
	}

	switch {
	case strings.HasPrefix(data, cbSelect):
		r.onSelect(cid, cb.Message.MessageID, strings.TrimPrefix(data, cbSelect))
	case strings.HasPrefix(data, cbNav):
		r.onNav(cid, cb.Message.MessageID, strings.TrimPrefix(data, cbNav))
	}
}

func (r *Router) onSelect(cid int64, msgID int, id string) {
	s := r.session(cid)
	if !s.Select(id) {
		r.send(cid, "File not found.")
		return
	}
	st := s.Snapshot()
	// обновить отметку в списке
	_, _ = r.Bot.Send(tgbotapi.NewEditMessageReplyMarkup(cid, msgID, filesKeyboard(st)))
	f, _ := st.Selected()
	r.sendWithKeyboard(cid, viewerText(f, st), viewerKeyboard())
}

func (r *Router) onNav(cid int64, msgID int, action string) {
	var fn func(viewer.State) viewer.State
	switch action {
	case "prev":
		fn = viewer.State.Prev
	case "next":
		fn = viewer.State.Next
	case "zin":
		fn = viewer.State.ZoomIn
	case "zout":
		fn = viewer.State.ZoomOut
	case "rot":
		fn = viewer.State.Rotate
	default:
		return
	}
	s := r.session(cid)
	if _, ok := s.Navigate(fn); !ok {
		r.send(cid, "No file selected. /files")
		return
	}
	st := s.Snapshot()
	f, _ := st.Selected()
	edit := tgbotapi.NewEditMessageTextAndMarkup(cid, msgID, viewerText(f, st), viewerKeyboard())
	if _, err := r.Bot.Send(edit); err != nil {
		log.Printf("telegram: edit viewer: %v", err)
	}
}
