package session

import (
	"time"

	"pdf-chat/api/internal/chat"
	"pdf-chat/api/internal/ocr"
	"pdf-chat/api/internal/viewer"
)

// GeneralConversation: разговор чат-виджета, не привязанный к файлу.
const GeneralConversation = ""

type FileStatus string

const (
	StatusProcessing FileStatus = "processing"
	StatusDone       FileStatus = "done"
	StatusFailed     FileStatus = "failed"
	StatusCancelled  FileStatus = "cancelled"
)

// UploadedFile: загруженный документ. Результат OCR прикрепляется один раз по ID.
type UploadedFile struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Data       []byte      `json:"-"`
	MimeType   string      `json:"mime_type"`
	Hash       string      `json:"hash"`
	UploadedAt time.Time   `json:"uploaded_at"`
	Pages      int         `json:"pages"`
	Status     FileStatus  `json:"status"`
	OCR        *ocr.Result `json:"ocr,omitempty"`
	OCRErr     string      `json:"ocr_error,omitempty"`
}

// UploadDate: дата загрузки в формате списка файлов (YYYY-MM-DD).
func (f UploadedFile) UploadDate() string { return f.UploadedAt.Format("2006-01-02") }

// State: всё состояние сессии. Методы With* не меняют получателя и возвращают новое значение.
type State struct {
	Files       []UploadedFile            `json:"files"`
	SelectedID  string                    `json:"selected_id"`
	Transcripts map[string][]chat.Message `json:"transcripts"`
	Viewer      viewer.State              `json:"viewer"`
	InFlight    int                       `json:"in_flight"`
}

// Loading: есть хотя бы один незавершённый OCR-запрос.
func (s State) Loading() bool { return s.InFlight > 0 }

func (s State) File(id string) (UploadedFile, bool) {
	for _, f := range s.Files {
		if f.ID == id {
			return f, true
		}
	}
	return UploadedFile{}, false
}

func (s State) Selected() (UploadedFile, bool) {
	if s.SelectedID == "" {
		return UploadedFile{}, false
	}
	return s.File(s.SelectedID)
}

func (s State) Transcript(conv string) []chat.Message {
	return append([]chat.Message(nil), s.Transcripts[conv]...)
}

func (s State) copyFiles() []UploadedFile {
	return append(make([]UploadedFile, 0, len(s.Files)+1), s.Files...)
}

// WithFile добавляет файл, выбирает его и сбрасывает просмотрщик.
func (s State) WithFile(f UploadedFile) State {
	s.Files = append(s.copyFiles(), f)
	return s.WithSelected(f.ID)
}

// withFileUpdate заменяет файл с данным ID целиком. Поиск только по ID, не по позиции.
func (s State) withFileUpdate(id string, fn func(UploadedFile) UploadedFile) State {
	for i, f := range s.Files {
		if f.ID != id {
			continue
		}
		files := s.copyFiles()
		files[i] = fn(f)
		s.Files = files
		return s
	}
	return s
}

func (s State) WithResult(id string, r ocr.Result) State {
	return s.withFileUpdate(id, func(f UploadedFile) UploadedFile {
		res := r
		f.OCR = &res
		f.OCRErr = ""
		f.Status = StatusDone
		return f
	})
}

func (s State) WithFailure(id string, msg string) State {
	return s.withFileUpdate(id, func(f UploadedFile) UploadedFile {
		f.OCRErr = msg
		f.Status = StatusFailed
		return f
	})
}

func (s State) WithCancelled(id string) State {
	return s.withFileUpdate(id, func(f UploadedFile) UploadedFile {
		f.Status = StatusCancelled
		return f
	})
}

// WithSelected меняет выбор (неизвестный ID игнорируется) и сбрасывает просмотрщик.
func (s State) WithSelected(id string) State {
	f, ok := s.File(id)
	if !ok {
		return s
	}
	s.SelectedID = id
	s.Viewer = viewer.New(f.Pages)
	return s
}

func (s State) WithMessage(conv string, m chat.Message) State {
	ts := make(map[string][]chat.Message, len(s.Transcripts)+1)
	for k, v := range s.Transcripts {
		ts[k] = v
	}
	prev := s.Transcripts[conv]
	ts[conv] = append(append(make([]chat.Message, 0, len(prev)+1), prev...), m)
	s.Transcripts = ts
	return s
}

func (s State) WithViewer(v viewer.State) State {
	s.Viewer = v
	return s
}

func (s State) BeginRequest() State {
	s.InFlight++
	return s
}

func (s State) EndRequest() State {
	if s.InFlight > 0 {
		s.InFlight--
	}
	return s
}
