package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCredentials is returned for any rejected login, the backend
	// detail is only logged.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnavailable        = errors.New("unable to reach the server, please check your connection")
	ErrUnexpectedResponse = errors.New("unexpected response from server")
	ErrNoTokenSource      = errors.New("client has no token source")
)

const fallbackMessage = "An unexpected error occurred, please try again."

// DefaultMessages maps HTTP status codes to user facing messages. Backends
// differ on some of these so they can be overridden from the config file.
var DefaultMessages = map[int]string{
	400: "The request was invalid, please check your input.",
	401: "Your session has expired, please log in again.",
	403: "You do not have permission to perform this action.",
	404: "The requested resource was not found.",
	413: "The file is too large to upload.",
	422: "The request could not be processed, please check your input.",
	429: "Too many requests, please wait a moment and try again.",
	500: "The server encountered an error, please try again later.",
	502: "The server is temporarily unreachable, please try again later.",
	503: "The service is temporarily unavailable, please try again later.",
	504: "The server took too long to respond, please try again later.",
	529: "The service is overloaded, please try again in a few minutes.",
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	// Detail is the backend's own description, for logs.
	Detail string
	// Message is the user facing text for StatusCode.
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Verbose includes the status code and backend detail.
func (e *APIError) Verbose() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s (%s)", e.StatusCode, e.Message, e.Detail)
}

// StatusCode returns the HTTP status of err, or 0 if err is not an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationIssue struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// parseDetail extracts the detail field of an error body. It is either a
// string or a list of validation issues.
func parseDetail(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return strings.TrimSpace(string(data))
	}

	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}

	var issues []validationIssue
	if err := json.Unmarshal(body.Detail, &issues); err == nil {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			if len(issue.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", issue.Loc[len(issue.Loc)-1], issue.Msg))
				continue
			}
			msgs = append(msgs, issue.Msg)
		}
		return strings.Join(msgs, "; ")
	}

	return string(body.Detail)
}
