package service

import (
	"fmt"
	"net/http"
)

// AppError standardizes API-visible failures.
type AppError struct {
	Code    string
	Message string
	Status  int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAppError(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

var (
	// ErrInvalidToken covers expired, consumed, or unknown verification
	// tokens. Deliberately vague to avoid token-probing oracles.
	ErrInvalidToken = newAppError("invalid_token", "Invalid or expired token.", http.StatusBadRequest)

	// ErrInvalidCredentials covers wrong email or password without
	// revealing which.
	ErrInvalidCredentials = newAppError("invalid_credentials", "Wrong email or password.", http.StatusUnauthorized)

	// ErrEmailNotVerified blocks login until the account is verified.
	ErrEmailNotVerified = newAppError("email_not_verified", "Please verify your email address before logging in.", http.StatusForbidden)

	// ErrEmailTaken reports a registration against an existing account.
	ErrEmailTaken = newAppError("conflict", "An account with that email already exists.", http.StatusConflict)

	// ErrNotFound covers lookups of missing or inaccessible resources.
	ErrNotFound = newAppError("not_found", "Resource not found.", http.StatusNotFound)

	// ErrRateLimited is returned when a client exhausts its request budget.
	ErrRateLimited = newAppError("rate_limited", "Too many requests. Please slow down.", http.StatusTooManyRequests)
)
