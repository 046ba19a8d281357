package handle

import (
	"encoding/json"
	"errors"
	"net/http"

	"pdf-chat/api/internal/ocr"
	"pdf-chat/api/internal/session"
)

// maxUpload: предел тела multipart-запроса.
const maxUpload = 64 << 20

type Handle struct {
	engine   ocr.Engine
	sessions *session.Registry
	intake   *session.Intake
	options  *ocr.Manager
}

func New(engine ocr.Engine, sessions *session.Registry, intake *session.Intake, options *ocr.Manager) *Handle {
	if options == nil {
		options = ocr.NewManager(ocr.Options{})
	}
	return &Handle{
		engine:   engine,
		sessions: sessions,
		intake:   intake,
		options:  options,
	}
}

// Register вешает все маршруты API на mux.
func (h *Handle) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/ocr", h.OCR)

	mux.HandleFunc("GET /v1/sessions/{sid}", h.Session)
	mux.HandleFunc("DELETE /v1/sessions/{sid}", h.CloseSession)
	mux.HandleFunc("POST /v1/sessions/{sid}/files", h.Upload)
	mux.HandleFunc("POST /v1/sessions/{sid}/select", h.Select)
	mux.HandleFunc("POST /v1/sessions/{sid}/chat", h.Chat)
	mux.HandleFunc("POST /v1/sessions/{sid}/viewer", h.Viewer)
	mux.HandleFunc("POST /v1/sessions/{sid}/files/{id}/cancel", h.Cancel)
	mux.HandleFunc("GET /v1/sessions/{sid}/files/{id}/export", h.Export)
	mux.HandleFunc("GET /v1/sessions/{sid}/files/{id}/search", h.Search)
}

type errorBody struct {
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// writeOCRError отдаёт 502 для недоступного или отказавшего сервиса, прочее 500.
func writeOCRError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch ocr.KindOf(err) {
	case ocr.KindUnreachable, ocr.KindServiceRejected:
		code = http.StatusBadGateway
	}
	writeJSON(w, code, errorBody{Kind: ocr.KindOf(err).String(), Error: err.Error()})
}

// formOptions читает необязательные поля model_size/task_type/ref_text.
func formOptions(r *http.Request, def ocr.Options) (*ocr.Options, error) {
	o := def
	if v := r.FormValue(ocr.FieldModelSize); v != "" {
		m, ok := ocr.ParseModelSize(v)
		if !ok {
			return nil, errors.New("unknown " + ocr.FieldModelSize + ": " + v)
		}
		o.ModelSize = m
	}
	if v := r.FormValue(ocr.FieldTaskType); v != "" {
		t, ok := ocr.ParseTaskType(v)
		if !ok {
			return nil, errors.New("unknown " + ocr.FieldTaskType + ": " + v)
		}
		o.TaskType = t
	}
	if v := r.FormValue(ocr.FieldRefText); v != "" {
		o.RefText = v
	}
	return &o, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return false
	}
	return true
}
