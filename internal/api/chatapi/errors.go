package chatapi

import (
	"encoding/json"

	"github.com/tjfontaine/ragchat/internal/domain"
)

// ErrorResponse is the error body returned by the backend on non-2xx
// responses.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail contains the backend's error description.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ParseErrorResponse converts an HTTP error body into a canonical API error.
// If the body is not the expected error shape, the raw body text is used as
// the message so no detail is lost.
func ParseErrorResponse(status int, body []byte) *domain.APIError {
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != nil && er.Error.Message != "" {
		return domain.FromStatus(status, er.Error.Message)
	}
	return domain.FromStatus(status, string(body))
}
