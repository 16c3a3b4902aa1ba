package assistant

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the remote service.
type APIError struct {
	StatusCode int
	Status     string
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("assistant API error: %s", e.Status)
	}
	return fmt.Sprintf("assistant API error: %s (%s)", e.Status, e.Message)
}

// Unauthorized reports whether the service rejected the API key.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
		if envelope.Error.Code != nil {
			apiErr.Code = fmt.Sprint(envelope.Error.Code)
		}
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}

// RunError reports a run that ended in a terminal state other than completed.
type RunError struct {
	RunID     string
	Status    RunStatus
	State     State
	LastError *RunLastError
}

func (e *RunError) Error() string {
	detail := ""
	if e.LastError != nil && e.LastError.Message != "" {
		detail = ": " + e.LastError.Message
	}
	if e.Status == RunRequiresAction {
		detail = ": run requires a tool action that this client does not handle"
	}
	return fmt.Sprintf("run %s ended %s (%s)%s", e.RunID, e.State, e.Status, detail)
}
