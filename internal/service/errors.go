// Package service provides business-logic services for authentication,
// permissions, tasks, visitors, daily updates, and analytics, delegating
// persistence to repository interfaces.
package service

import "errors"

// Sentinel errors translated to HTTP statuses at the handler boundary.
var (
	// ErrNotFound marks a missing user, project, task, or visitor.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks a valid user lacking the required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalid marks a request rejected by validation.
	ErrInvalid = errors.New("invalid")
	// ErrUnauthorized marks missing or bad credentials.
	ErrUnauthorized = errors.New("unauthorized")
)
