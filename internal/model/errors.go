package model

import "errors"

// Common errors used across the application
var (
	// Command errors
	ErrMalformedCommand = errors.New("malformed command")
	ErrUnknownCommand   = errors.New("unknown command")

	// Player errors
	ErrInvalidPlayer   = errors.New("invalid player")
	ErrDuplicatePlayer = errors.New("player is already registered")
	ErrPlayerNotFound  = errors.New("player not found")

	// Connection errors
	ErrSendFailure      = errors.New("send failed")
	ErrConnectionClosed = errors.New("connection is closed")
)
