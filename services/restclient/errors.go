package restclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnauthorized is returned when the API rejected the session; the session has been invalidated.
	ErrUnauthorized = errors.New("session expired, please log in again")
)

// Error is a non-2xx response of the API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0 for transport failures.
func StatusCode(err error) int {
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// newError reads the message of an error response from its `message`, `error` or `detail` field.
func newError(code int, body string) *Error {
	msg := http.StatusText(code)

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(body), &payload); err == nil {
		for _, key := range []string{"message", "error", "detail"} {
			if s, ok := payload[key].(string); ok && s != "" {
				msg = s
				break
			}
		}
	} else if b := strings.TrimSpace(body); b != "" && len(b) < 200 {
		msg = b
	}
	if msg == "" {
		msg = fmt.Sprintf("unexpected status %d", code)
	}
	return &Error{StatusCode: code, Message: msg}
}
