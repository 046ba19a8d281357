package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// ContainsFold: поиск по тексту OCR без учёта регистра.
func ContainsFold(text, query string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(query))
}

func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Highlight оборачивает совпадения в <mark>; запрос экранируется, регистр игнорируется.
func Highlight(text, term string) string {
	if term == "" {
		return text
	}
	re := regexp.MustCompile("(?i)(" + regexp.QuoteMeta(term) + ")")
	return re.ReplaceAllString(text, "<mark>$1</mark>")
}

// Truncate режет по рунам и добавляет "…", если строка длиннее max.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
