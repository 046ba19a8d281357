package handle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pdf-chat/api/internal/chat"
	"pdf-chat/api/internal/session"
	"pdf-chat/api/internal/util"
	"pdf-chat/api/internal/viewer"
)

type fileView struct {
	session.UploadedFile
	UploadDate string `json:"upload_date"`
	Selected   bool   `json:"selected"`
	Words      int    `json:"words"`
}

// SessionView: состояние сессии для фронтенда.
type SessionView struct {
	ID         string         `json:"id"`
	Files      []fileView     `json:"files"`
	SelectedID string         `json:"selected_id,omitempty"`
	Loading    bool           `json:"loading"`
	Pending    bool           `json:"pending"`
	Viewer     viewer.State   `json:"viewer"`
	Messages   []chat.Message `json:"messages"`
	General    []chat.Message `json:"general"`
}

func newSessionView(s *session.Session) SessionView {
	st := s.Snapshot()
	v := SessionView{
		ID:         s.Key,
		Files:      make([]fileView, 0, len(st.Files)),
		SelectedID: st.SelectedID,
		Loading:    st.Loading(),
		Pending:    s.Pending(),
		Viewer:     st.Viewer,
		General:    st.Transcript(session.GeneralConversation),
	}
	for _, f := range st.Files {
		fv := fileView{UploadedFile: f, UploadDate: f.UploadDate(), Selected: f.ID == st.SelectedID}
		if f.OCR != nil {
			fv.Words = util.WordCount(f.OCR.Text)
		}
		v.Files = append(v.Files, fv)
	}
	if st.SelectedID != "" {
		v.Messages = st.Transcript(st.SelectedID)
	}
	return v
}

// Session только читает: сессию создаёт загрузка, чат или выбор файла.
func (h *Handle) Session(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Lookup(r.PathValue("sid"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s))
}

func (h *Handle) CloseSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Drop(r.PathValue("sid"))
	w.WriteHeader(http.StatusNoContent)
}

// Upload принимает PDF и синхронно прогоняет его через OCR.
// Ошибка OCR не ошибка запроса: она попадает в транскрипт файла.
func (h *Handle) Upload(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "bad multipart: "+err.Error())
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read file: "+err.Error())
		return
	}
	opt, err := formOptions(r, h.options.Get(sid))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s := h.sessions.Get(sid)
	uf, ok, err := h.intake.Upload(r.Context(), s, hdr.Filename, data, hdr.Header.Get("Content-Type"), opt)
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, "only PDF files are accepted")
		return
	}
	if errors.Is(err, context.Canceled) {
		writeError(w, http.StatusConflict, "ocr cancelled")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		File    fileView    `json:"file"`
		Session SessionView `json:"session"`
	}{
		File:    fileView{UploadedFile: uf, UploadDate: uf.UploadDate()},
		Session: newSessionView(s),
	})
}

type selectRequest struct {
	ID string `json:"id"`
}

func (h *Handle) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s := h.sessions.Get(r.PathValue("sid"))
	if !s.Select(req.ID) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(s))
}

type chatRequest struct {
	Text    string `json:"text"`
	General bool   `json:"general"`
}

// Chat отправляет сообщение; ответ ассистента появится в сессии после задержки.
func (h *Handle) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s := h.sessions.Get(r.PathValue("sid"))
	var accepted bool
	if req.General {
		accepted = s.SendGeneral(req.Text)
	} else {
		accepted = s.Send(req.Text)
	}
	code := http.StatusAccepted
	if !accepted {
		code = http.StatusOK
	}
	writeJSON(w, code, struct {
		Accepted bool        `json:"accepted"`
		Session  SessionView `json:"session"`
	}{accepted, newSessionView(s)})
}

type viewerRequest struct {
	Action string `json:"action"` // next|prev|goto|zoom_in|zoom_out|rotate
	Page   int    `json:"page,omitempty"`
}

func viewerAction(req viewerRequest) (func(viewer.State) viewer.State, error) {
	switch strings.ToLower(req.Action) {
	case "next":
		return viewer.State.Next, nil
	case "prev":
		return viewer.State.Prev, nil
	case "goto":
		return func(v viewer.State) viewer.State { return v.GoTo(req.Page) }, nil
	case "zoom_in":
		return viewer.State.ZoomIn, nil
	case "zoom_out":
		return viewer.State.ZoomOut, nil
	case "rotate":
		return viewer.State.Rotate, nil
	}
	return nil, fmt.Errorf("unknown action %q", req.Action)
}

func (h *Handle) Viewer(w http.ResponseWriter, r *http.Request) {
	var req viewerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	fn, err := viewerAction(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, ok := h.sessions.Get(r.PathValue("sid")).Navigate(fn)
	if !ok {
		writeError(w, http.StatusConflict, "no file selected")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handle) Cancel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Lookup(r.PathValue("sid"))
	if !ok || !s.Cancel(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "no OCR request in flight for this file")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handle) processedFile(w http.ResponseWriter, r *http.Request) (session.UploadedFile, bool) {
	s, ok := h.sessions.Lookup(r.PathValue("sid"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return session.UploadedFile{}, false
	}
	f, ok := s.Snapshot().File(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "file not found")
		return session.UploadedFile{}, false
	}
	if f.OCR == nil {
		writeError(w, http.StatusConflict, "file has no OCR result")
		return session.UploadedFile{}, false
	}
	return f, true
}

// Export отдаёт распознанный текст файлом.
func (h *Handle) Export(w http.ResponseWriter, r *http.Request) {
	f, ok := h.processedFile(w, r)
	if !ok {
		return
	}
	name := strings.TrimSuffix(f.Name, ".pdf") + ".txt"
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = io.WriteString(w, f.OCR.Text)
}

func (h *Handle) Search(w http.ResponseWriter, r *http.Request) {
	f, ok := h.processedFile(w, r)
	if !ok {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, struct {
		Query       string `json:"query"`
		Found       bool   `json:"found"`
		Highlighted string `json:"highlighted"`
	}{q, q != "" && util.ContainsFold(f.OCR.Text, q), util.Highlight(f.OCR.Text, q)})
}
