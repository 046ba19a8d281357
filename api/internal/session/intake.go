package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"pdf-chat/api/internal/chat"
	"pdf-chat/api/internal/ocr"
	"pdf-chat/api/internal/store"
	"pdf-chat/api/internal/util"
	"pdf-chat/api/internal/viewer"
)

const noTextPlaceholder = "No text extracted"

// Intake прогоняет документ по цепочке: файл -> OCR -> результат в файл и транскрипт.
type Intake struct {
	Engine ocr.Engine
	Cache  *store.ResultCache // может быть nil

	CountPages func([]byte) (int, error)
	Now        func() time.Time
}

func NewIntake(engine ocr.Engine, cache *store.ResultCache) *Intake {
	return &Intake{
		Engine:     engine,
		Cache:      cache,
		CountPages: viewer.CountPages,
		Now:        time.Now,
	}
}

// CacheID строит ключ кэша: хэш содержимого плюс опции, влияющие на результат.
func CacheID(hash string, opt *ocr.Options) string {
	if opt.IsZero() {
		return hash
	}
	o := util.SHA256Hex([]byte(string(opt.ModelSize) + "\x00" + string(opt.TaskType) + "\x00" + opt.RefText))
	return hash + "-" + o[:12]
}

func SuccessMessage(r ocr.Result) string {
	text := r.Text
	if text == "" {
		text = noTextPlaceholder
	}
	return "OCR Processing Complete!\n\nExtracted Text:\n" + text
}

func FailureMessage(err error) string {
	return "Failed to process PDF with OCR: " + err.Error()
}

// Upload принимает файл и синхронно прогоняет его через OCR.
//
// ok=false: файл не PDF и молча проигнорирован. err != nil: OCR не удался;
// ошибка уже показана пользователю сообщением в транскрипте файла.
func (in *Intake) Upload(ctx context.Context, s *Session, name string, data []byte, declaredMime string, opt *ocr.Options) (f UploadedFile, ok bool, err error) {
	mime := util.PickMIME(declaredMime, data)
	if mime != util.MimePDF {
		return UploadedFile{}, false, nil
	}

	pages := 0
	if in.CountPages != nil {
		n, perr := in.CountPages(data)
		if perr != nil {
			log.Printf("intake: page count for %q: %v", name, perr)
		} else {
			pages = n
		}
	}

	f = UploadedFile{
		ID:         uuid.NewString(),
		Name:       name,
		Data:       data,
		MimeType:   mime,
		Hash:       util.SHA256Hex(data),
		UploadedAt: in.Now(),
		Pages:      pages,
		Status:     StatusProcessing,
	}
	// файл выбирается сразу при загрузке; завершение OCR выбор не трогает
	if _, alive := s.Update(func(st State) State { return st.WithFile(f) }); !alive {
		return f, true, nil
	}

	cacheID := CacheID(f.Hash, opt)
	if in.Cache != nil {
		if res, hit := in.Cache.Retrieve(ctx, cacheID); hit {
			log.Printf("intake: cache hit for %s (%s)", f.ID, name)
			return in.complete(s, f, res), true, nil
		}
	}

	s.Update(State.BeginRequest)
	defer s.Update(State.EndRequest)

	res, err := in.run(ctx, s, f, opt)
	switch {
	case err == nil:
		if in.Cache != nil {
			if cerr := in.Cache.Store(ctx, cacheID, res); cerr != nil {
				log.Printf("intake: cache store %s: %v", f.ID, cerr)
			}
		}
		return in.complete(s, f, res), true, nil

	case errors.Is(err, context.Canceled):
		// отменённый запрос отбрасывается без сообщения
		s.Update(func(st State) State { return st.WithCancelled(f.ID) })
		f.Status = StatusCancelled
		return f, true, err

	default:
		log.Printf("intake: ocr %s (%s) failed [%s]: %v", f.ID, name, ocr.KindOf(err), err)
		msg := FailureMessage(err)
		if _, alive := s.Update(func(st State) State { return st.WithFailure(f.ID, err.Error()) }); alive {
			s.Append(f.ID, chat.Assistant(msg))
		}
		f.Status, f.OCRErr = StatusFailed, err.Error()
		return f, true, err
	}
}

// run выполняет запрос как отменяемую задачу, привязанную к файлу.
func (in *Intake) run(ctx context.Context, s *Session, f UploadedFile, opt *ocr.Options) (res ocr.Result, err error) {
	if in.Engine == nil {
		return ocr.Result{}, fmt.Errorf("ocr engine is not configured")
	}
	task := ocr.Start(ctx, in.Engine, f.Data, f.Name, opt)
	if !s.track(f.ID, task) {
		task.Cancel()
	}
	defer s.untrack(f.ID, task)
	return task.Wait(ctx)
}

func (in *Intake) complete(s *Session, f UploadedFile, res ocr.Result) UploadedFile {
	_, alive := s.Update(func(st State) State { return st.WithResult(f.ID, res) })
	if alive {
		s.Append(f.ID, chat.Assistant(SuccessMessage(res)))
	}
	r := res
	f.OCR, f.Status = &r, StatusDone
	return f
}
