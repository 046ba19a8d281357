package ocr

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func readForm(t *testing.T, f *Form) (map[string]string, []byte) {
	t.Helper()
	_, params, err := mime.ParseMediaType(f.ContentType)
	if err != nil {
		t.Fatalf("ParseMediaType: %v", err)
	}
	mr := multipart.NewReader(strings.NewReader(string(f.Body)), params["boundary"])
	fields := map[string]string{}
	var file []byte
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		b, _ := io.ReadAll(p)
		if p.FormName() == FieldFile {
			file = b
			continue
		}
		fields[p.FormName()] = string(b)
	}
	return fields, file
}

func TestBuildRequestFields(t *testing.T) {
	cases := []struct {
		name string
		opt  *Options
		want map[string]string
	}{
		{"nil options", nil, map[string]string{}},
		{"empty options", &Options{}, map[string]string{}},
		{"model only", &Options{ModelSize: ModelGundam}, map[string]string{FieldModelSize: "Gundam (Recommended)"}},
		{"task only", &Options{TaskType: TaskMarkdown}, map[string]string{FieldTaskType: "📄 Convert to Markdown"}},
		{"all", &Options{ModelSize: ModelTiny, TaskType: TaskLocate, RefText: "the red car"}, map[string]string{
			FieldModelSize: "Tiny",
			FieldTaskType:  "🔍 Locate Object by Reference",
			FieldRefText:   "the red car",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := BuildRequest([]byte("%PDF-1.4 data"), "a.pdf", tc.opt)
			if err != nil {
				t.Fatalf("BuildRequest() error = %v", err)
			}
			got, file := readForm(t, f)
			if string(file) != "%PDF-1.4 data" {
				t.Fatalf("file part = %q", file)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("fields = %v, want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Fatalf("field %s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestBuildRequestAcceptsAnyBinary(t *testing.T) {
	f, err := BuildRequest([]byte{0x00, 0xff, 0x10}, "", nil)
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	_, file := readForm(t, f)
	if len(file) != 3 {
		t.Fatalf("file part length = %d", len(file))
	}
}

func TestProcessSuccessPassesThrough(t *testing.T) {
	var gotHeader, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(DefaultBypassHeader)
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"hello","image":""}`)
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	res, err := c.Process(context.Background(), []byte("pdf"), "a.pdf", nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res != (Result{Text: "hello", Image: ""}) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gotHeader != "true" {
		t.Fatalf("bypass header = %q", gotHeader)
	}
	if gotPath != "/ocr" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestProcessMissingFieldsTolerated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	res, err := New(srv.URL, 0).Process(context.Background(), nil, "", nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Text != "" || res.Image != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestProcessServiceRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0).Process(context.Background(), []byte("x"), "a.pdf", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if KindOf(err) != KindServiceRejected {
		t.Fatalf("kind = %v, err = %v", KindOf(err), err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "500") || !strings.Contains(msg, "boom") {
		t.Fatalf("message = %q", msg)
	}
	var se *ServiceRejectedError
	if !errors.As(err, &se) || se.StatusCode != 500 || se.Body != "boom" {
		t.Fatalf("unexpected error value: %#v", err)
	}
}

func TestProcessUnreachable(t *testing.T) {
	// свободный порт: слушаем и сразу закрываем
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	base := "http://" + ln.Addr().String()
	_ = ln.Close()

	_, err = New(base, 5*time.Second).Process(context.Background(), []byte("x"), "a.pdf", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if KindOf(err) != KindUnreachable {
		t.Fatalf("kind = %v, err = %v", KindOf(err), err)
	}
	msg := err.Error()
	for _, want := range []string{base, "API is running", "CORS is enabled", "URL is correct"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q does not contain %q", msg, want)
		}
	}
}

type refusingTransport struct{}

func (refusingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

func TestProcessUnreachableMockedTransport(t *testing.T) {
	c := New("https://ocr.example.test", 0).WithHTTPClient(&http.Client{Transport: refusingTransport{}})
	_, err := c.Process(context.Background(), []byte("x"), "a.pdf", nil)
	if KindOf(err) != KindUnreachable {
		t.Fatalf("kind = %v, err = %v", KindOf(err), err)
	}
	if !strings.Contains(err.Error(), "https://ocr.example.test") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestProcessMalformedJSONUnclassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"text":`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, 0).Process(context.Background(), []byte("x"), "a.pdf", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if KindOf(err) != KindUnclassified {
		t.Fatalf("kind = %v", KindOf(err))
	}
}

func TestProcessSendsOptionsAndOrigin(t *testing.T) {
	var fields map[string]string
	var origin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin = r.Header.Get("Origin")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		_, _ = io.WriteString(w, `{"text":"ok","image":"abc"}`)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", 0)
	c.Origin = "https://app.example.test"
	_, err := c.Process(context.Background(), []byte("x"), "a.pdf", &Options{TaskType: TaskFigure})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if origin != "https://app.example.test" {
		t.Fatalf("origin = %q", origin)
	}
	if len(fields) != 1 || fields[FieldTaskType] != string(TaskFigure) {
		t.Fatalf("fields = %v", fields)
	}
}
