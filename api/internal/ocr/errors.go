package ocr

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

type Kind int

const (
	KindUnclassified Kind = iota
	KindUnreachable
	KindServiceRejected
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindServiceRejected:
		return "service_rejected"
	default:
		return "unclassified"
	}
}

// UnreachableError: до сервиса не достучались вообще (dial/DNS/refused).
type UnreachableError struct {
	BaseURL string
	Err     error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("Cannot connect to OCR API at %s. "+
		"Please check: 1) API is running, 2) CORS is enabled, 3) URL is correct", e.BaseURL)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// ServiceRejectedError: сервис ответил, но не 2xx. Body хранится как есть.
type ServiceRejectedError struct {
	StatusCode int
	Body       string
}

func (e *ServiceRejectedError) Error() string {
	return fmt.Sprintf("OCR API error (%d): %s", e.StatusCode, e.Body)
}

// KindOf классифицирует ошибку, полученную от Client.Process.
func KindOf(err error) Kind {
	var ue *UnreachableError
	if errors.As(err, &ue) {
		return KindUnreachable
	}
	var se *ServiceRejectedError
	if errors.As(err, &se) {
		return KindServiceRejected
	}
	return KindUnclassified
}

// isUnreachable отделяет "не дошли до сервиса" от "дошли, но запрос сломался".
func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}
