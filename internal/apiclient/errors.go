package apiclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrRedirected means a 401 sent the browser to the login page. Callers
	// must not surface it as a notification.
	ErrRedirected = errors.New("apiclient: unauthorized, redirected to login")
	// ErrNoRefreshToken is returned by Refresh when there is nothing to refresh.
	ErrNoRefreshToken = errors.New("apiclient: no refresh token")
)

// UnknownErrorMessage is shown when an error carries no backend message.
const UnknownErrorMessage = "An unknown error occurred"

// Error is a backend-reported failure. Error() is exactly the normalized
// backend message.
type Error struct {
	Status  int
	Path    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// errorBody is the backend error envelope. error is either a string or an
// object {statusCode, message: string | []string, error}.
type errorBody struct {
	StatusCode int             `json:"statusCode"`
	Timestamp  string          `json:"timestamp"`
	Path       string          `json:"path"`
	Error      json.RawMessage `json:"error"`
}

type errorDetail struct {
	StatusCode int             `json:"statusCode"`
	Message    json.RawMessage `json:"message"`
	Error      string          `json:"error"`
}

// normalizeError turns a non-2xx body into the message shown to the
// operator. Bodies that are not JSON yield the HTTP status text.
// responseError is the Error for a non-2xx resp. The reason phrase of the
// status line is the fallback message.
func responseError(path string, resp *http.Response, body []byte) *Error {
	return &Error{
		Status:  resp.StatusCode,
		Path:    path,
		Message: normalizeError(resp.StatusCode, statusText(resp), body),
	}
}

// statusText is the reason phrase the backend sent, or the standard one.
func statusText(resp *http.Response) string {
	if i := strings.IndexByte(resp.Status, ' '); i >= 0 && i+1 < len(resp.Status) {
		return resp.Status[i+1:]
	}
	return http.StatusText(resp.StatusCode)
}

func normalizeError(status int, statusText string, body []byte) string {
	fallback := statusText
	if fallback == "" {
		fallback = http.StatusText(status)
	}
	var env errorBody
	if err := json.Unmarshal(body, &env); err != nil {
		return fallback
	}
	if len(env.Error) == 0 || string(env.Error) == "null" {
		return fallback
	}
	var s string
	if err := json.Unmarshal(env.Error, &s); err == nil {
		return s
	}
	var detail errorDetail
	if err := json.Unmarshal(env.Error, &detail); err != nil {
		return fallback
	}
	if len(detail.Message) > 0 && string(detail.Message) != "null" {
		var msg string
		if err := json.Unmarshal(detail.Message, &msg); err == nil {
			return msg
		}
		var msgs []string
		if err := json.Unmarshal(detail.Message, &msgs); err == nil {
			return strings.Join(msgs, ", ")
		}
	}
	return detail.Error
}

// Message returns the text to show for err: the backend message when err
// carries one, otherwise UnknownErrorMessage.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return UnknownErrorMessage
}
