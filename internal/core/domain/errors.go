package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested record was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a replay run is already in flight
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrOffline indicates connectivity is unavailable
	ErrOffline = errors.New("offline")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrGatewayUnavailable indicates the remote API could not be reached
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)
