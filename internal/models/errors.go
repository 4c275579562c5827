package models

import "errors"

// Authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLockedOut          = errors.New("too many failed login attempts")
)

// User errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrMissingFields     = errors.New("missing required fields")
)

// Call errors
var (
	ErrCallNotFound     = errors.New("call not found")
	ErrCallNotActive    = errors.New("call is not active")
	ErrMissingNumber    = errors.New("caller number is required")
	ErrNegativeDuration = errors.New("duration must not be negative")
)
