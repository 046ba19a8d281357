package ocr

import (
	"context"
	"fmt"
	"sync"
)

// Task: один запрос к движку, который можно отменить.
// Устаревший запрос отменяется, а не просто игнорируется.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	once sync.Once
	res  Result
	err  error
}

// Start запускает запрос в отдельной горутине под производным контекстом.
func Start(ctx context.Context, e Engine, file []byte, filename string, opt *Options) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer cancel()
		defer func() {
			// паника движка не должна ронять поверхность
			if p := recover(); p != nil {
				t.finish(Result{}, fmt.Errorf("ocr engine %s panicked: %v", e.Name(), p))
			}
		}()
		res, err := e.Process(ctx, file, filename, opt)
		if err == nil && ctx.Err() != nil {
			// ответ пришёл уже после отмены
			err = ctx.Err()
		}
		t.finish(res, err)
	}()
	return t
}

func (t *Task) finish(res Result, err error) {
	t.once.Do(func() {
		t.res, t.err = res, err
		close(t.done)
	})
}

func (t *Task) Cancel() { t.cancel() }

func (t *Task) Done() <-chan struct{} { return t.done }

// Wait блокируется до завершения; ctx ограничивает только ожидание, не сам запрос.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.res, t.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
