package telegram

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pdf-chat/api/internal/session"
	"pdf-chat/api/internal/util"
)

const (
	cbSelect = "sel:"
	cbNav    = "nav:"
)

// Список файлов: по кнопке на файл, выбранный отмечен.
func filesKeyboard(st session.State) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(st.Files))
	for _, f := range st.Files {
		label := fileLabel(f)
		if f.ID == st.SelectedID {
			label = "✅ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(util.Truncate(label, 48), cbSelect+f.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func fileLabel(f session.UploadedFile) string {
	label := f.Name + " · " + f.UploadDate()
	switch f.Status {
	case session.StatusProcessing:
		label += " ⏳"
	case session.StatusFailed:
		label += " ⚠️"
	}
	return label
}

// Панель просмотрщика.
func viewerKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️", cbNav+"prev"),
			tgbotapi.NewInlineKeyboardButtonData("▶️", cbNav+"next"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➖", cbNav+"zout"),
			tgbotapi.NewInlineKeyboardButtonData("➕", cbNav+"zin"),
			tgbotapi.NewInlineKeyboardButtonData("🔄", cbNav+"rot"),
		),
	)
}

func viewerText(f session.UploadedFile, st session.State) string {
	return fmt.Sprintf("📄 %s\n%s", f.Name, st.Viewer.String())
}

// сколько рун контекста оставить перед первым совпадением
const searchContext = 200

// highlightHTML подсвечивает запрос жирным в режиме HTML. Совпадения ищутся
// в исходном тексте, экранируется каждый кусок отдельно, поэтому сущности
// вроде &amp; не подсвечиваются. Окно начинается незадолго до первого
// совпадения; результат не длиннее limit рун и не режет теги и сущности.
// Второе значение: число совпадений во всём тексте.
func highlightHTML(text, q string, limit int) (string, int) {
	if q == "" {
		return "", 0
	}
	locs := regexp.MustCompile("(?i)"+regexp.QuoteMeta(q)).FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return "", 0
	}
	start := contextStart(text, locs[0][0], searchContext)

	var b strings.Builder
	room := limit - 1 // место под "…" в конце
	if start > 0 {
		b.WriteString("…")
		room--
	}
	emit := func(s string) bool {
		n := utf8.RuneCountInString(s)
		if n > room {
			return false
		}
		b.WriteString(s)
		room -= n
		return true
	}
	plain := func(s string) bool {
		for _, r := range s {
			if !emit(html.EscapeString(string(r))) {
				return false
			}
		}
		return true
	}

	pos := start
	for _, loc := range locs {
		if !plain(text[pos:loc[0]]) || !emit("<b>"+html.EscapeString(text[loc[0]:loc[1]])+"</b>") {
			b.WriteString("…")
			return b.String(), len(locs)
		}
		pos = loc[1]
	}
	if !plain(text[pos:]) {
		b.WriteString("…")
	}
	return b.String(), len(locs)
}

// contextStart отступает от idx назад на runes рун.
func contextStart(text string, idx, runes int) int {
	for i := 0; i < runes && idx > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:idx])
		idx -= size
	}
	return idx
}

const helpText = `Send me a PDF and I will run it through OCR.
Plain text goes to the chat about the selected file.

/files — uploaded files
/model [size] — OCR model size
/task [type] — OCR task
/ref <text> — reference text for "locate"
/page [n], /zoom in|out, /rotate — viewer
/words — word count of the extracted text
/search <query> — find in the extracted text
/export — extracted text as a .txt file
/image — image returned by OCR
/cancel — cancel running OCR
/health — service check`
