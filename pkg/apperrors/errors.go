// Package apperrors holds the sentinel errors HTTP and MCP surfaces map to
// status codes. Wrap them with %w; match with errors.Is.
package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("unavailable")
)
