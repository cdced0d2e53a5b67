package unfurl

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal pipeline failure.
type Kind int

// Fatal failure kinds. Each is terminal for the request; nothing retries.
const (
	KindTimeout Kind = iota + 1
	KindConnectFailure
	KindUpstreamStatus
	KindUnsupportedContentType
	KindResponseTooLarge
)

// String returns the snake_case label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectFailure:
		return "connect_failure"
	case KindUpstreamStatus:
		return "upstream_status"
	case KindUnsupportedContentType:
		return "unsupported_content_type"
	case KindResponseTooLarge:
		return "response_too_large"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a *FetchError of the same kind.
var (
	ErrTimeout                = errors.New("upstream fetch timed out")
	ErrConnectFailure         = errors.New("upstream unreachable")
	ErrUpstreamStatus         = errors.New("upstream returned error status")
	ErrUnsupportedContentType = errors.New("unsupported content-type")
	ErrResponseTooLarge       = errors.New("response too large")
)

func (k Kind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindConnectFailure:
		return ErrConnectFailure
	case KindUpstreamStatus:
		return ErrUpstreamStatus
	case KindUnsupportedContentType:
		return ErrUnsupportedContentType
	case KindResponseTooLarge:
		return ErrResponseTooLarge
	default:
		return nil
	}
}

// FetchError is the classified failure returned by the pipeline.
type FetchError struct {
	Kind        Kind
	URL         string
	StatusCode  int
	ContentType string
	Err         error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindUpstreamStatus:
		return fmt.Sprintf("upstream returned %d", e.StatusCode)
	case KindUnsupportedContentType:
		return fmt.Sprintf("unsupported content-type: %s", e.ContentType)
	case KindTimeout, KindResponseTooLarge:
		return e.Kind.sentinel().Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind.sentinel(), e.Err)
	}
	return e.Kind.String()
}

// Unwrap exposes the underlying transport error, if any.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *FetchError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf extracts the Kind from err. ok is false when err is not a *FetchError.
func KindOf(err error) (kind Kind, ok bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}
