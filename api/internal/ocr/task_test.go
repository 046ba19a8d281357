package ocr

import (
	"context"
	"errors"
	"testing"
	"time"
)

type blockingEngine struct {
	started chan struct{}
}

func (b *blockingEngine) Name() string { return "blocking" }
func (b *blockingEngine) Process(ctx context.Context, _ []byte, _ string, _ *Options) (Result, error) {
	close(b.started)
	<-ctx.Done()
	return Result{}, ctx.Err()
}

type fixedEngine struct{ res Result }

func (f fixedEngine) Name() string { return "fixed" }
func (f fixedEngine) Process(context.Context, []byte, string, *Options) (Result, error) {
	return f.res, nil
}

func TestTaskCancel(t *testing.T) {
	e := &blockingEngine{started: make(chan struct{})}
	task := Start(context.Background(), e, nil, "a.pdf", nil)
	<-e.started
	task.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := task.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestTaskResult(t *testing.T) {
	task := Start(context.Background(), fixedEngine{res: Result{Text: "hi"}}, nil, "", nil)
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not finish")
	}
	res, err := task.Wait(context.Background())
	if err != nil || res.Text != "hi" {
		t.Fatalf("Wait() = %+v, %v", res, err)
	}
}

func TestParseAliases(t *testing.T) {
	if m, ok := ParseModelSize("gundam"); !ok || m != ModelGundam {
		t.Fatalf("ParseModelSize(gundam) = %q, %v", m, ok)
	}
	if m, ok := ParseModelSize("Large"); !ok || m != ModelLarge {
		t.Fatalf("ParseModelSize(Large) = %q, %v", m, ok)
	}
	if _, ok := ParseModelSize("huge"); ok {
		t.Fatalf("ParseModelSize(huge) accepted")
	}
	if tt, ok := ParseTaskType("markdown"); !ok || tt != TaskMarkdown {
		t.Fatalf("ParseTaskType(markdown) = %q, %v", tt, ok)
	}
	if tt, ok := ParseTaskType(string(TaskLocate)); !ok || tt != TaskLocate {
		t.Fatalf("ParseTaskType(exact) = %q, %v", tt, ok)
	}
}

func TestManagerUpdate(t *testing.T) {
	m := NewManager(Options{ModelSize: ModelBase})
	if got := m.Get("c1"); got.ModelSize != ModelBase {
		t.Fatalf("default = %+v", got)
	}
	m.Update("c1", func(o *Options) { o.TaskType = TaskFigure })
	got := m.Get("c1")
	if got.ModelSize != ModelBase || got.TaskType != TaskFigure {
		t.Fatalf("after update = %+v", got)
	}
	if other := m.Get("c2"); other.TaskType != "" {
		t.Fatalf("other key leaked: %+v", other)
	}
}
