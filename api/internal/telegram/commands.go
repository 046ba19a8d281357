package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pdf-chat/api/internal/ocr"
	"pdf-chat/api/internal/session"
	"pdf-chat/api/internal/util"
	"pdf-chat/api/internal/viewer"
)

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "health":
		r.cmdHealth(cid)
	case "files":
		r.cmdFiles(cid)
	case "model":
		r.cmdModel(cid, argsOf(msg))
	case "task":
		r.cmdTask(cid, argsOf(msg))
	case "ref":
		o := r.Options.Update(chatKey(cid), func(o *ocr.Options) { o.RefText = argsOf(msg) })
		if o.RefText == "" {
			r.send(cid, "Reference text cleared.")
		} else {
			r.send(cid, "Reference text: "+o.RefText)
		}
	case "page":
		r.cmdPage(cid, argsOf(msg))
	case "zoom":
		switch strings.ToLower(argsOf(msg)) {
		case "in", "+":
			r.navigate(cid, viewer.State.ZoomIn)
		case "out", "-":
			r.navigate(cid, viewer.State.ZoomOut)
		default:
			r.send(cid, "Usage: /zoom in|out")
		}
	case "rotate":
		r.navigate(cid, viewer.State.Rotate)
	case "words":
		if f, ok := r.processed(cid); ok {
			r.send(cid, fmt.Sprintf("%s: %d words", f.Name, util.WordCount(f.OCR.Text)))
		}
	case "search":
		r.cmdSearch(cid, argsOf(msg))
	case "export":
		r.cmdExport(cid)
	case "image":
		r.cmdImage(cid)
	case "cancel":
		r.cmdCancel(cid)
	default:
		r.send(cid, "Unknown command. /help")
	}
}

func (r *Router) cmdHealth(cid int64) {
	if r.Health == nil {
		r.send(cid, "✅ OK")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Health(ctx); err != nil {
		r.send(cid, "❌ "+err.Error())
		return
	}
	r.send(cid, "✅ OK")
}

func (r *Router) cmdFiles(cid int64) {
	st := r.session(cid).Snapshot()
	if len(st.Files) == 0 {
		r.send(cid, "No files uploaded yet. Send a PDF.")
		return
	}
	r.sendWithKeyboard(cid, fmt.Sprintf("Files (%d):", len(st.Files)), filesKeyboard(st))
}

func (r *Router) cmdModel(cid int64, arg string) {
	key := chatKey(cid)
	if arg == "" {
		names := make([]string, 0, 5)
		for _, m := range ocr.ModelSizes() {
			names = append(names, string(m))
		}
		cur := r.Options.Get(key).ModelSize
		if cur == "" {
			cur = "(service default)"
		}
		r.send(cid, "Model size: "+string(cur)+"\nAvailable: "+strings.Join(names, ", "))
		return
	}
	m, ok := ocr.ParseModelSize(arg)
	if !ok {
		r.send(cid, "Unknown model size: "+arg)
		return
	}
	r.Options.Update(key, func(o *ocr.Options) { o.ModelSize = m })
	r.send(cid, "✅ Model size: "+string(m))
}

func (r *Router) cmdTask(cid int64, arg string) {
	key := chatKey(cid)
	if arg == "" {
		names := make([]string, 0, 4)
		for _, t := range ocr.TaskTypes() {
			names = append(names, string(t))
		}
		cur := r.Options.Get(key).TaskType
		if cur == "" {
			cur = "(service default)"
		}
		r.send(cid, "Task: "+string(cur)+"\nAvailable: "+strings.Join(names, ", "))
		return
	}
	t, ok := ocr.ParseTaskType(arg)
	if !ok {
		r.send(cid, "Unknown task: "+arg)
		return
	}
	r.Options.Update(key, func(o *ocr.Options) { o.TaskType = t })
	r.send(cid, "✅ Task: "+string(t))
}

func (r *Router) cmdPage(cid int64, arg string) {
	if arg == "" {
		r.navigate(cid, func(v viewer.State) viewer.State { return v })
		return
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		r.send(cid, "Usage: /page <number>")
		return
	}
	r.navigate(cid, func(v viewer.State) viewer.State { return v.GoTo(n) })
}

// navigate меняет просмотрщик выбранного файла и показывает панель.
func (r *Router) navigate(cid int64, fn func(viewer.State) viewer.State) {
	s := r.session(cid)
	if _, ok := s.Navigate(fn); !ok {
		r.send(cid, "No file selected. /files")
		return
	}
	st := s.Snapshot()
	f, _ := st.Selected()
	r.sendWithKeyboard(cid, viewerText(f, st), viewerKeyboard())
}

// processed: выбранный файл с готовым результатом OCR; иначе пишет пользователю.
func (r *Router) processed(cid int64) (session.UploadedFile, bool) {
	f, ok := r.session(cid).Snapshot().Selected()
	if !ok {
		r.send(cid, "No file selected. /files")
		return f, false
	}
	if f.OCR == nil {
		r.send(cid, "No OCR result for "+f.Name+" yet.")
		return f, false
	}
	return f, true
}

func (r *Router) cmdSearch(cid int64, q string) {
	if q == "" {
		r.send(cid, "Usage: /search <query>")
		return
	}
	f, ok := r.processed(cid)
	if !ok {
		return
	}
	body, n := highlightHTML(f.OCR.Text, q, maxText)
	if n == 0 {
		r.send(cid, fmt.Sprintf("%q not found in %s.", q, f.Name))
		return
	}
	msg := tgbotapi.NewMessage(cid, body)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := r.Bot.Send(msg); err != nil {
		r.SendError(cid, err)
	}
}

func (r *Router) cmdExport(cid int64) {
	f, ok := r.processed(cid)
	if !ok {
		return
	}
	doc := tgbotapi.NewDocument(cid, tgbotapi.FileBytes{
		Name:  strings.TrimSuffix(f.Name, ".pdf") + ".txt",
		Bytes: []byte(f.OCR.Text),
	})
	if _, err := r.Bot.Send(doc); err != nil {
		r.SendError(cid, err)
	}
}

func (r *Router) cmdImage(cid int64) {
	f, ok := r.processed(cid)
	if !ok {
		return
	}
	if strings.TrimSpace(f.OCR.Image) == "" {
		r.send(cid, "OCR returned no image for "+f.Name+".")
		return
	}
	img, _, err := util.DecodeBase64MaybeDataURL(f.OCR.Image)
	if err != nil {
		r.SendError(cid, fmt.Errorf("image: %w", err))
		return
	}
	photo := tgbotapi.NewPhoto(cid, tgbotapi.FileBytes{Name: "ocr.png", Bytes: img})
	photo.Caption = f.Name
	if _, err := r.Bot.Send(photo); err != nil {
		r.SendError(cid, err)
	}
}

func (r *Router) cmdCancel(cid int64) {
	s := r.session(cid)
	n := 0
	for _, f := range s.Snapshot().Files {
		if f.Status == session.StatusProcessing && s.Cancel(f.ID) {
			n++
		}
	}
	if n == 0 {
		r.send(cid, "Nothing to cancel.")
		return
	}
	r.send(cid, fmt.Sprintf("Cancelled %d OCR request(s).", n))
}
