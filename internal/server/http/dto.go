package http

import "github.com/dmitrijs2005/gophauth/internal/server/dto"

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error       string           `json:"error"`
	Message     string           `json:"message"`
	Violations  []string         `json:"violations,omitempty"`
	Fields      []dto.FieldError `json:"fields,omitempty"`
	LockedUntil string           `json:"locked_until,omitempty"`
}
