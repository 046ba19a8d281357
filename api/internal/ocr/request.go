package ocr

import (
	"bytes"
	"fmt"
	"mime/multipart"
)

// Имена полей формы фиксированы контрактом сервиса.
const (
	FieldFile      = "file"
	FieldModelSize = "model_size"
	FieldTaskType  = "task_type"
	FieldRefText   = "ref_text"
)

// Form: готовое multipart-тело запроса.
type Form struct {
	Body        []byte
	ContentType string
}

// BuildRequest собирает multipart-тело: файл под FieldFile и по одному текстовому
// полю на каждую заданную опцию. Тип и размер файла не проверяются.
func BuildRequest(file []byte, filename string, opt *Options) (*Form, error) {
	if filename == "" {
		filename = "document.pdf"
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile(FieldFile, filename)
	if err != nil {
		return nil, fmt.Errorf("form file: %w", err)
	}
	if _, err := fw.Write(file); err != nil {
		return nil, fmt.Errorf("form file: %w", err)
	}

	if opt != nil {
		fields := []struct{ name, value string }{
			{FieldModelSize, string(opt.ModelSize)},
			{FieldTaskType, string(opt.TaskType)},
			{FieldRefText, opt.RefText},
		}
		for _, f := range fields {
			if f.value == "" {
				continue
			}
			if err := mw.WriteField(f.name, f.value); err != nil {
				return nil, fmt.Errorf("form field %s: %w", f.name, err)
			}
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("form close: %w", err)
	}
	return &Form{Body: buf.Bytes(), ContentType: mw.FormDataContentType()}, nil
}
