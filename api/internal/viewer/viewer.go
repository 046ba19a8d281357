package viewer

import (
	"bytes"
	"fmt"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	MinScale  = 0.5
	MaxScale  = 3.0
	ScaleStep = 0.2
)

// State: положение просмотрщика для выбранного файла. Все переходы чистые.
type State struct {
	Page     int     `json:"page"`
	Pages    int     `json:"pages"`
	Scale    float64 `json:"scale"`
	Rotation int     `json:"rotation"`
}

// New: начальное состояние при открытии файла.
func New(pages int) State {
	if pages < 0 {
		pages = 0
	}
	return State{Page: 1, Pages: pages, Scale: 1.0}
}

func (s State) Next() State { return s.GoTo(s.Page + 1) }

func (s State) Prev() State { return s.GoTo(s.Page - 1) }

// GoTo ограничивает номер страницы диапазоном [1, Pages]. Pages == 0: количество неизвестно.
func (s State) GoTo(n int) State {
	if n < 1 {
		n = 1
	}
	if s.Pages > 0 && n > s.Pages {
		n = s.Pages
	}
	if s.Pages == 0 {
		n = 1
	}
	s.Page = n
	return s
}

func (s State) ZoomIn() State {
	s.Scale = round1(math.Min(s.Scale+ScaleStep, MaxScale))
	return s
}

func (s State) ZoomOut() State {
	s.Scale = round1(math.Max(s.Scale-ScaleStep, MinScale))
	return s
}

func (s State) Rotate() State {
	s.Rotation = (s.Rotation + 90) % 360
	return s
}

// Percent: масштаб для отображения (120 для 1.2).
func (s State) Percent() int { return int(math.Round(s.Scale * 100)) }

func (s State) String() string {
	return fmt.Sprintf("Page %d / %d · %d%% · %d°", s.Page, s.Pages, s.Percent(), s.Rotation)
}

// round1 убирает накопленную ошибку float (1.2000000000000002).
func round1(f float64) float64 { return math.Round(f*10) / 10 }

// CountPages считает страницы PDF через pdfcpu в мягком режиме валидации.
func CountPages(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}
