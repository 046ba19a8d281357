package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBypassHeader = "ngrok-skip-browser-warning"
	DefaultBypassValue  = "true"
)

// Engine: всё, что умеет распознать документ. Client: удалённая реализация.
type Engine interface {
	Name() string
	Process(ctx context.Context, file []byte, filename string, opt *Options) (Result, error)
}

type Client struct {
	BaseURL string

	// Заголовок для туннеля (ngrok), за которым живёт сервис.
	BypassHeader string
	BypassValue  string

	// Origin заменяет браузерный mode: "cors"; пусто: не отправляется.
	Origin string

	httpc *http.Client
}

// New создаёт клиента. timeout <= 0: без собственного таймаута (как у транспорта по умолчанию).
func New(baseURL string, timeout time.Duration) *Client {
	hc := &http.Client{}
	if timeout > 0 {
		hc.Timeout = timeout
	}
	return &Client{
		BaseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		BypassHeader: DefaultBypassHeader,
		BypassValue:  DefaultBypassValue,
		httpc:        hc,
	}
}

// WithHTTPClient подменяет транспорт (тесты, прокси).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpc = hc
	return c
}

func (c *Client) Name() string { return "remote" }

func (c *Client) Endpoint() string { return c.BaseURL + "/ocr" }

// Process отправляет один POST {base}/ocr. Без ретраев: любая ошибка финальна для запроса.
func (c *Client) Process(ctx context.Context, file []byte, filename string, opt *Options) (Result, error) {
	form, err := BuildRequest(file, filename, opt)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(form.Body))
	if err != nil {
		return Result{}, fmt.Errorf("ocr request: %w", err)
	}
	req.Header.Set("Content-Type", form.ContentType)
	if c.BypassHeader != "" {
		req.Header.Set(c.BypassHeader, c.BypassValue)
	}
	if c.Origin != "" {
		req.Header.Set("Origin", c.Origin)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		if isUnreachable(err) {
			return Result{}, &UnreachableError{BaseURL: c.BaseURL, Err: err}
		}
		return Result{}, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		x, _ := io.ReadAll(resp.Body)
		return Result{}, &ServiceRejectedError{StatusCode: resp.StatusCode, Body: string(x)}
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("ocr response: bad JSON: %w", err)
	}
	return out, nil
}
