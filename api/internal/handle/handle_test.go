package handle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"pdf-chat/api/internal/ocr"
	"pdf-chat/api/internal/session"
	"pdf-chat/api/internal/store"
)

type fakeEngine struct {
	res ocr.Result
	err error

	mu  sync.Mutex
	opt *ocr.Options
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Process(_ context.Context, _ []byte, _ string, opt *ocr.Options) (ocr.Result, error) {
	f.mu.Lock()
	f.opt = opt
	f.mu.Unlock()
	return f.res, f.err
}

func newServer(t *testing.T, e ocr.Engine) (*httptest.Server, *session.Registry) {
	t.Helper()
	reg := session.NewRegistry(nil, nil)
	in := session.NewIntake(e, store.NewResultCache(store.NewMemoryKV(), nil))
	in.CountPages = func([]byte) (int, error) { return 2, nil }
	mux := http.NewServeMux()
	New(e, reg, in, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reg
}

func multipartBody(t *testing.T, name string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write(data)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func postJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(v)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

var pdf = []byte("%PDF-1.7\n%test\n")

func upload(t *testing.T, srv *httptest.Server, sid, name string, data []byte, fields map[string]string) *http.Response {
	t.Helper()
	body, ct := multipartBody(t, name, data, fields)
	resp, err := http.Post(srv.URL+"/v1/sessions/"+sid+"/files", ct, body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func TestUploadAndSessionView(t *testing.T) {
	e := &fakeEngine{res: ocr.Result{Text: "Invoice total 42"}}
	srv, _ := newServer(t, e)

	resp := upload(t, srv, "s1", "invoice.pdf", pdf, map[string]string{"task_type": "markdown"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	out := decode[struct {
		File    fileView    `json:"file"`
		Session SessionView `json:"session"`
	}](t, resp)
	if out.File.Status != session.StatusDone || out.File.OCR == nil || out.File.OCR.Text != "Invoice total 42" {
		t.Fatalf("file = %+v", out.File)
	}
	e.mu.Lock()
	opt := e.opt
	e.mu.Unlock()
	if opt == nil || opt.TaskType != ocr.TaskMarkdown {
		t.Fatalf("options = %+v", opt)
	}
	if out.Session.Loading || len(out.Session.Files) != 1 || out.Session.Files[0].Words != 3 {
		t.Fatalf("session = %+v", out.Session)
	}
	if len(out.Session.Messages) != 1 || !strings.Contains(out.Session.Messages[0].Content, "OCR Processing Complete!") {
		t.Fatalf("messages = %+v", out.Session.Messages)
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	srv, reg := newServer(t, &fakeEngine{})
	resp := upload(t, srv, "s1", "notes.txt", []byte("plain text"), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if s, ok := reg.Lookup("s1"); ok && len(s.Snapshot().Files) != 0 {
		t.Fatalf("non-PDF added to the session")
	}
}

func TestUploadFailureIsInTranscript(t *testing.T) {
	srv, _ := newServer(t, &fakeEngine{err: &ocr.ServiceRejectedError{StatusCode: 500, Body: "boom"}})
	resp := upload(t, srv, "s1", "a.pdf", pdf, nil)
	out := decode[struct {
		File    fileView    `json:"file"`
		Session SessionView `json:"session"`
	}](t, resp)
	if out.File.Status != session.StatusFailed {
		t.Fatalf("file = %+v", out.File)
	}
	if out.Session.Loading {
		t.Fatalf("loading flag stuck")
	}
	if len(out.Session.Messages) != 1 || !strings.Contains(out.Session.Messages[0].Content, "OCR API error (500): boom") {
		t.Fatalf("messages = %+v", out.Session.Messages)
	}
}

func TestOCRPassthroughErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"rejected", &ocr.ServiceRejectedError{StatusCode: 500, Body: "boom"}, http.StatusBadGateway, "service_rejected"},
		{"unreachable", &ocr.UnreachableError{BaseURL: "http://x"}, http.StatusBadGateway, "unreachable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newServer(t, &fakeEngine{err: tc.err})
			body, ct := multipartBody(t, "a.pdf", pdf, nil)
			resp, err := http.Post(srv.URL+"/v1/ocr", ct, body)
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			if resp.StatusCode != tc.code {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			got := decode[errorBody](t, resp)
			if got.Kind != tc.kind || got.Error != tc.err.Error() {
				t.Fatalf("body = %+v", got)
			}
		})
	}
}

func TestOCRPassthroughSuccess(t *testing.T) {
	srv, _ := newServer(t, &fakeEngine{res: ocr.Result{Text: "hello"}})
	body, ct := multipartBody(t, "a.pdf", []byte{1, 2, 3}, nil)
	resp, err := http.Post(srv.URL+"/v1/ocr", ct, body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if got := decode[ocr.Result](t, resp); got != (ocr.Result{Text: "hello"}) {
		t.Fatalf("result = %+v", got)
	}
}

func TestSessionGetDoesNotCreate(t *testing.T) {
	srv, reg := newServer(t, &fakeEngine{res: ocr.Result{Text: "x"}})

	resp, err := http.Get(srv.URL + "/v1/sessions/nobody")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if got := decode[errorBody](t, resp); got.Error != "session not found" {
		t.Fatalf("body = %+v", got)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry size = %d after GET of unknown session", reg.Len())
	}

	upload(t, srv, "s1", "a.pdf", pdf, nil).Body.Close()
	resp, err = http.Get(srv.URL + "/v1/sessions/s1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if v := decode[SessionView](t, resp); resp.StatusCode != http.StatusOK || len(v.Files) != 1 {
		t.Fatalf("status = %d, session = %+v", resp.StatusCode, v)
	}
}

func TestChatEmptyIsNoop(t *testing.T) {
	srv, _ := newServer(t, &fakeEngine{})
	resp := postJSON(t, srv.URL+"/v1/sessions/s1/chat", chatRequest{Text: "   "})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	out := decode[struct {
		Accepted bool        `json:"accepted"`
		Session  SessionView `json:"session"`
	}](t, resp)
	if out.Accepted || len(out.Session.General) != 0 {
		t.Fatalf("out = %+v", out)
	}

	resp = postJSON(t, srv.URL+"/v1/sessions/s1/chat", chatRequest{Text: "hello"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSelectViewerExportSearch(t *testing.T) {
	srv, reg := newServer(t, &fakeEngine{res: ocr.Result{Text: "Alpha beta ALPHA"}})
	upload(t, srv, "s1", "a.pdf", pdf, nil).Body.Close()
	id := reg.Get("s1").Snapshot().Files[0].ID

	resp := postJSON(t, srv.URL+"/v1/sessions/s1/select", selectRequest{ID: "missing"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("select missing status = %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/sessions/s1/viewer", viewerRequest{Action: "next"})
	if v := decode[struct{ Page, Pages int }](t, resp); v.Page != 2 || v.Pages != 2 {
		t.Fatalf("viewer = %+v", v)
	}
	resp = postJSON(t, srv.URL+"/v1/sessions/s1/viewer", viewerRequest{Action: "spin"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad action status = %d", resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/v1/sessions/s1/files/" + id + "/export")
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(b) != "Alpha beta ALPHA" || !strings.Contains(resp.Header.Get("Content-Disposition"), `"a.txt"`) {
		t.Fatalf("export = %q, %q", b, resp.Header.Get("Content-Disposition"))
	}

	resp, err = http.Get(srv.URL + "/v1/sessions/s1/files/" + id + "/search?q=alpha")
	if err != nil {
		t.Fatalf("GET search: %v", err)
	}
	s := decode[struct {
		Found       bool   `json:"found"`
		Highlighted string `json:"highlighted"`
	}](t, resp)
	if !s.Found || s.Highlighted != "<mark>Alpha</mark> beta <mark>ALPHA</mark>" {
		t.Fatalf("search = %+v", s)
	}
}
