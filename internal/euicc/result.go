package euicc

import (
	"fmt"
	"strconv"
	"strings"
)

// ResultCode is the top-level outcome reported by the platform.
type ResultCode int

const (
	ResultOK              ResultCode = 0
	ResultResolvableError ResultCode = 1
	ResultError           ResultCode = 2
)

func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "ok"
	case ResultResolvableError:
		return "resolvable_error"
	case ResultError:
		return "error"
	}
	return "unknown(" + strconv.Itoa(int(c)) + ")"
}

// Result is the diagnostic block attached to every callback. Only ResultCode
// is interpreted; the remaining fields are opaque and passed through.
type Result struct {
	ResultCode    ResultCode `json:"result_code"`
	ErrorCode     int        `json:"error_code,omitempty"`
	OperationCode int        `json:"operation_code,omitempty"`
	DetailedCode  int        `json:"detailed_code,omitempty"`
	SubjectCode   int        `json:"subject_code,omitempty"`
	ReasonCode    int        `json:"reason_code,omitempty"`
}

// String renders the result the way device diagnostics print it.
func (r Result) String() string {
	return fmt.Sprintf("result=%d error=%d operation=%d detailed=%d subject=%d reason=%d",
		r.ResultCode, r.ErrorCode, r.OperationCode, r.DetailedCode, r.SubjectCode, r.ReasonCode)
}

// Token correlates a platform call with its callback. Attempt distinguishes the
// original download from its single retry so stale callbacks can be dropped.
type Token struct {
	RequestID string
	Attempt   int
}

const tokenSeparator = "#"

// IsZero reports whether the token is empty, i.e. the platform did not echo one.
func (t Token) IsZero() bool {
	return t.RequestID == ""
}

func (t Token) String() string {
	if t.IsZero() {
		return ""
	}
	return t.RequestID + tokenSeparator + strconv.Itoa(t.Attempt)
}

// ParseToken decodes a token produced by Token.String. The empty string parses
// to the zero token. A bare request id parses with Attempt 0.
func ParseToken(s string) (Token, error) {
	if s == "" {
		return Token{}, nil
	}
	id, attempt, found := strings.Cut(s, tokenSeparator)
	if id == "" {
		return Token{}, fmt.Errorf("invalid callback token %q", s)
	}
	if !found {
		return Token{RequestID: id}, nil
	}
	n, err := strconv.Atoi(attempt)
	if err != nil || n < 0 {
		return Token{}, fmt.Errorf("invalid callback token attempt %q", s)
	}
	return Token{RequestID: id, Attempt: n}, nil
}

// MarshalText lets tokens travel as plain JSON strings.
func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Token) UnmarshalText(b []byte) error {
	parsed, err := ParseToken(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
