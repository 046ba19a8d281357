package viewer

import "testing"

func TestNavigationClamped(t *testing.T) {
	s := New(3)
	if s.Prev().Page != 1 {
		t.Fatalf("Prev from first page moved")
	}
	s = s.Next().Next().Next().Next()
	if s.Page != 3 {
		t.Fatalf("Page = %d, want 3", s.Page)
	}
	if s.GoTo(0).Page != 1 || s.GoTo(10).Page != 3 || s.GoTo(2).Page != 2 {
		t.Fatalf("GoTo not clamped: %+v", s)
	}
}

func TestNavigationUnknownPageCount(t *testing.T) {
	s := New(0)
	if s.Next().Page != 1 {
		t.Fatalf("Next with unknown page count moved")
	}
}

func TestZoomBounds(t *testing.T) {
	s := New(1)
	for i := 0; i < 20; i++ {
		s = s.ZoomIn()
	}
	if s.Scale != MaxScale {
		t.Fatalf("Scale = %v, want %v", s.Scale, MaxScale)
	}
	for i := 0; i < 20; i++ {
		s = s.ZoomOut()
	}
	if s.Scale != MinScale {
		t.Fatalf("Scale = %v, want %v", s.Scale, MinScale)
	}
	if got := New(1).ZoomIn().Percent(); got != 120 {
		t.Fatalf("Percent = %d", got)
	}
}

func TestRotateWraps(t *testing.T) {
	s := New(1)
	for i := 0; i < 5; i++ {
		s = s.Rotate()
	}
	if s.Rotation != 90 {
		t.Fatalf("Rotation = %d", s.Rotation)
	}
}

func TestCountPagesRejectsGarbage(t *testing.T) {
	if _, err := CountPages([]byte("not a pdf")); err == nil {
		t.Fatalf("expected error")
	}
}
