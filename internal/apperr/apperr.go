// Package apperr defines the error taxonomy shared by the normalizer,
// extractors, download providers and the HTTP layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind classifies a failure so callers can decide between falling back and
// surfacing an error.
type Kind int

const (
	Unknown Kind = iota
	InvalidURL
	ExtractionFailed
	ProviderFailed
	AllProvidersFailed
	UpstreamTimeout
	ConnectionReset
)

func (k Kind) String() string {
	switch k {
	case InvalidURL:
		return "invalid_url"
	case ExtractionFailed:
		return "extraction_failed"
	case ProviderFailed:
		return "provider_failed"
	case AllProvidersFailed:
		return "all_providers_failed"
	case UpstreamTimeout:
		return "upstream_timeout"
	case ConnectionReset:
		return "connection_reset"
	default:
		return "unknown"
	}
}

// Error is a classified error. Op names the strategy or operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with a fixed message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under op. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Join aggregates attempt failures into one error of the given kind. The
// message lists every attempt in order, separated by "; ".
func Join(kind Kind, msg string, errs ...error) error {
	return &Error{Kind: kind, Msg: msg, Err: attempts(errs)}
}

type attempts []error

func (a attempts) Error() string {
	parts := make([]string, 0, len(a))
	for _, err := range a {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

func (a attempts) Unwrap() []error { return a }

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Has reports whether any *Error anywhere in err's tree carries kind.
func Has(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok && e.Kind == kind {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if Has(inner, kind) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return Has(x.Unwrap(), kind)
	}
	return false
}

// Classify maps a transport-level error onto UpstreamTimeout or
// ConnectionReset. A peer that hangs up before answering counts as a reset.
// Anything else is Unknown.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return UpstreamTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return UpstreamTimeout
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return ConnectionReset
	}
	msg := strings.ToLower(err.Error())
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ConnectionReset
	}
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection broken") {
		return ConnectionReset
	}
	return Unknown
}

// Transport wraps a network error, tagging it with its classified kind when
// one applies.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	if kind := Classify(err); kind != Unknown {
		return &Error{Kind: kind, Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// StatusError reports an upstream response with a non-2xx status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// UpstreamStatus returns the first upstream HTTP status recorded in err's
// tree, or 0.
func UpstreamStatus(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// HTTPStatus picks the status code the API answers with for err.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case InvalidURL:
		return http.StatusBadRequest
	case ExtractionFailed:
		if hasStatus(err, http.StatusNotFound) {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	case UpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func hasStatus(err error, code int) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*StatusError); ok && se.Code == code {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if hasStatus(inner, code) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return hasStatus(x.Unwrap(), code)
	}
	return false
}
