package ctfd

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an APIError.
type Kind int

const (
	// KindTransport is a connection-level failure: dial, reset, TLS.
	KindTransport Kind = iota + 1
	// KindTimeout means the request exceeded its deadline.
	KindTimeout
	// KindProtocol covers non-200 statuses, API-reported failures and
	// responses that do not decode into the expected shape.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is; every *APIError matches exactly one of them.
var (
	ErrTransport = errors.New("ctfd: transport error")
	ErrTimeout   = errors.New("ctfd: request timed out")
	ErrProtocol  = errors.New("ctfd: protocol error")
)

type APIError struct {
	Kind     Kind
	Method   string
	Endpoint string
	// Status is the HTTP status when a response was received, 0 otherwise.
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ctfd %s error", e.Kind)
	if e.Method != "" || e.Endpoint != "" {
		fmt.Fprintf(&b, " (%s %s)", e.Method, e.Endpoint)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrProtocol:
		return e.Kind == KindProtocol
	}
	return false
}

// KindOf reports the kind of the first APIError in err's chain.
func KindOf(err error) (Kind, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

func protocolError(method, endpoint, format string, args ...any) *APIError {
	return &APIError{
		Kind:     KindProtocol,
		Method:   method,
		Endpoint: endpoint,
		Message:  fmt.Sprintf(format, args...),
	}
}
