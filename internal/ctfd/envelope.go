package ctfd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/valyala/fasthttp"
)

// Envelope is a successfully validated CTFd response. A "message" in the
// response body is always an error, so it never reaches an Envelope.
type Envelope[T any] struct {
	Success    *bool
	Data       T
	Pagination *PageInfo
}

type PageInfo struct {
	Page    int  `json:"page"`
	Next    *int `json:"next"`
	Prev    *int `json:"prev"`
	Pages   int  `json:"pages"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
}

type rawEnvelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message json.RawMessage `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Meta    *struct {
		Pagination *PageInfo `json:"pagination"`
	} `json:"meta"`
	Pagination *PageInfo `json:"pagination"`
}

// message renders the "message" key; a string is used as is, any other
// non-null JSON value is kept verbatim.
func (r *rawEnvelope) message() string {
	return renderRaw(r.Message)
}

func (r *rawEnvelope) pagination() *PageInfo {
	if r.Pagination != nil {
		return r.Pagination
	}
	if r.Meta != nil {
		return r.Meta.Pagination
	}
	return nil
}

func renderRaw(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}

func decodeEnvelope[T any](method, endpoint string, status int, body []byte) (*Envelope[T], error) {
	var raw rawEnvelope
	decodeErr := json.Unmarshal(body, &raw)

	if status != fasthttp.StatusOK {
		err := protocolError(method, endpoint, "non-200 status code: %d %s", status, fasthttp.StatusMessage(status))
		err.Status = status
		if decodeErr == nil {
			if detail := firstNonEmpty(raw.message(), renderRaw(raw.Errors)); detail != "" {
				err.Message += ": " + detail
			}
		}
		return nil, err
	}

	if decodeErr != nil {
		err := protocolError(method, endpoint, "malformed response body")
		err.Status = status
		err.Err = decodeErr
		return nil, err
	}

	if msg := raw.message(); msg != "" {
		err := protocolError(method, endpoint, "%s", msg)
		err.Status = status
		return nil, err
	}

	if raw.Success != nil && !*raw.Success {
		err := protocolError(method, endpoint, "request failed")
		if detail := renderRaw(raw.Errors); detail != "" {
			err.Message += ": " + detail
		}
		err.Status = status
		return nil, err
	}

	data := bytes.TrimSpace(raw.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		err := protocolError(method, endpoint, "unexpected response: no data")
		err.Status = status
		return nil, err
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &APIError{Kind: KindProtocol, Method: method, Endpoint: endpoint, Status: status, Message: "unexpected data shape", Err: err}
	}
	if err := validation.Validate(out); err != nil {
		return nil, &APIError{Kind: KindProtocol, Method: method, Endpoint: endpoint, Status: status, Message: "invalid data", Err: err}
	}

	return &Envelope[T]{
		Success:    raw.Success,
		Data:       out,
		Pagination: raw.pagination(),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Enum-like fields reject values outside their known set instead of
// silently defaulting.

type ChallengeType string

const (
	ChallengeStandard       ChallengeType = "standard"
	ChallengeMultipleChoice ChallengeType = "multiple_choice"
	ChallengeCode           ChallengeType = "code"
	ChallengeDynamic        ChallengeType = "dynamic"
	ChallengeHidden         ChallengeType = "hidden"
)

func (t *ChallengeType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("challenge type: %w", err)
	}
	switch v := ChallengeType(s); v {
	case ChallengeStandard, ChallengeMultipleChoice, ChallengeCode, ChallengeDynamic, ChallengeHidden:
		*t = v
		return nil
	}
	return fmt.Errorf("unknown challenge type %q", s)
}

type AccountType string

const (
	AccountTeam AccountType = "team"
	AccountUser AccountType = "user"
)

func (t *AccountType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("account type: %w", err)
	}
	switch v := AccountType(s); v {
	case AccountTeam, AccountUser:
		*t = v
		return nil
	}
	return fmt.Errorf("unknown account type %q", s)
}
