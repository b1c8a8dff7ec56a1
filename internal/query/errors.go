package query

import (
	"errors"
	"fmt"
	"net/http"
)

// PostgreSQL error codes surfaced by the store.
const (
	CodeUndefinedColumn    = "42703"
	CodeUndefinedTable     = "42P01"
	CodeInsufficientPriv   = "42501"
	CodeSchemaCacheMissing = "PGRST204"
	CodeTableNotInCache    = "PGRST205"
)

// APIError is a query rejected by the store.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	s := fmt.Sprintf("api error %d", e.Status)
	if e.Code != "" {
		s += " (" + e.Code + ")"
	}
	s += ": " + msg
	if e.Details != "" {
		s += ": " + e.Details
	}
	return s
}

// IsMissingColumn reports whether err is a query on an unknown column or table.
func IsMissingColumn(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case CodeUndefinedColumn, CodeUndefinedTable, CodeSchemaCacheMissing, CodeTableNotInCache:
		return true
	}
	return false
}

// IsPermissionDenied reports whether err is an authorization or row-level security denial.
func IsPermissionDenied(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeInsufficientPriv ||
		apiErr.Status == http.StatusUnauthorized ||
		apiErr.Status == http.StatusForbidden
}
