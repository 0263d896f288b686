package gateway

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// tokenInvalidPhrases are the backend detail strings that signal an expired
// or missing credential on a 401 response.
var tokenInvalidPhrases = []string{
	"token not valid",
	"Authentication credentials were not provided",
}

// APIError is the single failure shape surfaced by the gateway. Non-2xx
// statuses, unreachable hosts and malformed response bodies all end up here
// so callers need one error path.
type APIError struct {
	// Status is the HTTP status code, or 0 for transport and parse failures.
	Status int
	// Message is the user-facing message, derived from the error body.
	Message string
	// Data is the raw error body when one was parseable, nil otherwise.
	Data json.RawMessage

	notified    bool
	authExpired bool
}

func (e *APIError) Error() string {
	return e.Message
}

// Notified reports whether the gateway already surfaced this error as a
// toast. Callers use it to avoid stacking a second notification on top.
func (e *APIError) Notified() bool {
	return e.notified
}

// transportError wraps a network or decode failure into the API error shape.
func transportError(err error) *APIError {
	return &APIError{Message: err.Error()}
}

// classify builds an APIError from a non-2xx response body.
func classify(status int, body []byte) *APIError {
	e := &APIError{Status: status}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		// Not a JSON object: surface the raw text when there is any.
		if text := strings.TrimSpace(string(body)); text != "" {
			e.Message = text
		} else {
			e.Message = fmt.Sprintf("API Error %d", status)
		}
		return e
	}

	e.Data = json.RawMessage(body)
	e.Message = errorMessage(status, fields)
	return e
}

// errorMessage extracts the message from a parsed error body: the detail
// field verbatim when present, otherwise every key/value pair joined as
// "key: value" fragments with underscores humanized, otherwise a generic
// fallback.
func errorMessage(status int, fields map[string]any) string {
	if detail, ok := fields["detail"].(string); ok && detail != "" {
		return detail
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		label := strings.ReplaceAll(k, "_", " ")
		parts = append(parts, label+": "+stringifyValue(fields[k]))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("API Error %d", status)
	}
	return strings.Join(parts, "; ")
}

// stringifyValue renders a field error value: validation errors arrive as
// arrays of messages, which are joined with ", ".
func stringifyValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			items = append(items, stringifyValue(item))
		}
		return strings.Join(items, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// isTokenInvalid reports whether a 401 error body signals an expired or
// missing credential, either by explicit error code or by known phrases.
func isTokenInvalid(body []byte) bool {
	var fields struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}
	if fields.Code == "token_not_valid" {
		return true
	}
	for _, phrase := range tokenInvalidPhrases {
		if strings.Contains(fields.Detail, phrase) {
			return true
		}
	}
	return false
}
