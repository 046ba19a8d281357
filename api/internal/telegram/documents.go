package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pdf-chat/api/internal/util"
)

// acceptDocument скачивает документ и отдаёт его в конвейер приёма.
// Итоговое сообщение (текст или ошибка OCR) придёт через наблюдателя сессии.
func (r *Router) acceptDocument(cid int64, doc tgbotapi.Document) {
	ctx := context.Background()
	url, err := r.Bot.GetFileDirectURL(doc.FileID)
	if err != nil {
		r.SendError(cid, fmt.Errorf("get file: %w", err))
		return
	}
	data, err := r.Download(ctx, url)
	if err != nil {
		r.SendError(cid, fmt.Errorf("download: %w", err))
		return
	}
	if util.PickMIME(doc.MimeType, data) != util.MimePDF {
		log.Printf("telegram: chat %d: ignoring %s (%s)", cid, doc.FileName, doc.MimeType)
		return
	}

	r.send(cid, "⏳ Processing "+doc.FileName+" with OCR…")
	s := r.session(cid)
	opt := r.Options.Get(chatKey(cid))
	f, ok, err := r.Intake.Upload(ctx, s, doc.FileName, data, doc.MimeType, &opt)
	switch {
	case !ok:
		log.Printf("telegram: chat %d: %s is not a PDF", cid, doc.FileName)
		return
	case errors.Is(err, context.Canceled):
		r.send(cid, "OCR cancelled for "+f.Name+".")
		return
	case err != nil:
		return
	}

	st := s.Snapshot()
	if st.SelectedID == f.ID {
		r.sendWithKeyboard(cid, viewerText(f, st), viewerKeyboard())
	}
}
