package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/go-playground/validator/v10"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/common"
)

// Kind is the closed error taxonomy every failure is mapped to.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNetwork
	KindHTTP
	KindAuthExpired
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindAuthExpired:
		return "auth_expired"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Message is safe to show to users; the raw
// cause is kept for logs and errors.Is/As only.
type Error struct {
	Kind    Kind
	Code    int // HTTP status code, when the failure carried one
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind (and code when the target sets one).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == 0 || t.Code == e.Code)
}

// StatusError is returned by transports for non-2xx responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Sentinels usable with errors.Is.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrNetwork     = &Error{Kind: KindNetwork}
	ErrAuthExpired = &Error{Kind: KindAuthExpired}
)

// Validation builds a caller-input error. detail is authored by this codebase
// and is shown as-is.
func Validation(detail string) *Error {
	msg := Message(KindValidation, 0)
	if detail != "" {
		msg = detail
	}
	return &Error{Kind: KindValidation, Message: msg}
}

// New builds a classified error with the kind-derived message.
func New(kind Kind, code int, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: Message(kind, code), Err: cause}
}

// Message returns the user-facing text for a kind.
func Message(kind Kind, code int) string {
	switch kind {
	case KindValidation:
		return "The request was invalid."
	case KindNetwork:
		if code >= 500 {
			return "The server is temporarily unavailable. Please try again."
		}
		return "Network connection problem. Please check your connection and try again."
	case KindHTTP:
		if code == http.StatusNotFound {
			return "The requested data was not found."
		}
		return fmt.Sprintf("The server rejected the request (HTTP %d).", code)
	case KindAuthExpired:
		return "Your session has expired. Please sign in again."
	default:
		return "An unexpected error occurred."
	}
}

// Classify maps a raw failure to the taxonomy. It is pure: the same error
// always yields the same kind and code. Already-classified errors are returned
// unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return &Error{Kind: KindValidation, Message: Message(KindValidation, 0), Err: err}
	}

	var se *StatusError
	if errors.As(err, &se) {
		return New(statusKind(se.Code), se.Code, err)
	}

	if errors.Is(err, context.Canceled) {
		return New(KindUnknown, 0, err)
	}

	if isNetwork(err) {
		return New(KindNetwork, 0, err)
	}

	return New(KindUnknown, 0, err)
}

func statusKind(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuthExpired
	case code >= 500:
		return KindNetwork
	default:
		return KindHTTP
	}
}

func isNetwork(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return common.HasAnyFold(err.Error(),
		"connection refused", "connection reset", "no such host",
		"timeout", "network is unreachable", "broken pipe")
}
