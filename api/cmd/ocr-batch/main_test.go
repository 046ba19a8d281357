package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"pdf-chat/api/internal/ocr"
	"pdf-chat/api/internal/store"
)

type countingEngine struct {
	calls atomic.Int32
	fail  string
}

func (c *countingEngine) Name() string { return "counting" }

func (c *countingEngine) Process(_ context.Context, _ []byte, name string, _ *ocr.Options) (ocr.Result, error) {
	c.calls.Add(1)
	if name == c.fail {
		return ocr.Result{}, &ocr.ServiceRejectedError{StatusCode: 500, Body: "boom"}
	}
	return ocr.Result{Text: "text of " + name}, nil
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestBatchContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.pdf", []byte("%PDF-1.4 a"))
	writeFile(t, dir, "b.pdf", []byte("%PDF-1.4 b"))
	writeFile(t, dir, "c.pdf", []byte("not a pdf at all"))
	writeFile(t, dir, "notes.txt", []byte("skip me"))

	paths, err := collect([]string{dir})
	if err != nil {
		t.Fatalf("collect() error = %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("paths = %v", paths)
	}

	e := &countingEngine{fail: "a.pdf"}
	b := &batch{engine: e, cache: store.NewResultCache(store.NewMemoryKV(), nil), opt: &ocr.Options{}, limit: 2}
	items := b.run(context.Background(), paths)

	if items[0].Kind != "service_rejected" || items[0].OCR != nil {
		t.Fatalf("a.pdf = %+v", items[0])
	}
	if items[1].OCR == nil || items[1].OCR.Text != "text of b.pdf" {
		t.Fatalf("b.pdf = %+v", items[1])
	}
	if items[2].Error != "not a PDF" {
		t.Fatalf("c.pdf = %+v", items[2])
	}

	again := b.run(context.Background(), paths[1:2])
	if !again[0].Cache || e.calls.Load() != 2 {
		t.Fatalf("second run = %+v, calls = %d", again[0], e.calls.Load())
	}
}

func TestCollectMissingPath(t *testing.T) {
	_, err := collect([]string{filepath.Join(t.TempDir(), "missing.pdf")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("collect() error = %v", err)
	}
}
