package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// HTTPError represents a non-2xx HTTP response from the API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// errorMessage extracts a human readable message from an API error body.
// The backend answers with {"error": {"message": ...}} from its exception
// handlers, {"detail": ...} from framework validation, and some proxies
// answer with {"error": "..."}.
func errorMessage(body []byte) string {
	var apiErr struct {
		Error  json.RawMessage `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &apiErr) != nil {
		return string(body)
	}
	if len(apiErr.Error) > 0 {
		var s string
		if json.Unmarshal(apiErr.Error, &s) == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(apiErr.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	if len(apiErr.Detail) > 0 {
		var s string
		if json.Unmarshal(apiErr.Detail, &s) == nil && s != "" {
			return s
		}
		return string(apiErr.Detail)
	}
	return string(body)
}
