package util

import (
	"encoding/base64"
	"net/http"
	"strings"
)

const MimePDF = "application/pdf"

// IsPDF проверяет сигнатуру "%PDF-" в начале файла.
func IsPDF(b []byte) bool {
	return len(b) >= 5 && b[0] == '%' && b[1] == 'P' && b[2] == 'D' && b[3] == 'F' && b[4] == '-'
}

func SniffMime(b []byte) string {
	if IsPDF(b) {
		return MimePDF
	}
	// JPEG: FF D8
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	// PNG
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	if len(b) > 0 {
		return http.DetectContentType(b)
	}
	return "application/octet-stream"
}

// PickMIME берём MIME по байтам, затем явный (его могут подделать клиенты).
func PickMIME(explicit string, data []byte) string {
	if s := SniffMime(data); s != "application/octet-stream" && !strings.HasPrefix(s, "text/plain") {
		return s
	}
	if exp := strings.TrimSpace(explicit); exp != "" {
		if i := strings.IndexByte(exp, ';'); i >= 0 {
			exp = exp[:i]
		}
		return strings.ToLower(strings.TrimSpace(exp))
	}
	return "application/octet-stream"
}

func MakeDataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}

// ImageDataURL приводит картинку из ответа OCR к data:URI (сервис может вернуть голый base64).
func ImageDataURL(image string) string {
	image = strings.TrimSpace(image)
	if image == "" || strings.HasPrefix(image, "data:") {
		return image
	}
	return MakeDataURL("image/png", image)
}

// DecodeBase64MaybeDataURL декодирует base64. Если это data:URI, вернёт MIME из префикса.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		// data:<mime>;base64,<payload>
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	}
	// стандартная база64, затем URL-safe
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, hintMIME, nil
	} else if b2, err2 := base64.URLEncoding.DecodeString(s); err2 == nil {
		return b2, hintMIME, nil
	} else {
		return nil, "", err
	}
}
