package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates a request without a verified principal.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPermissionDenied indicates the principal may not perform the action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation failed")
)
