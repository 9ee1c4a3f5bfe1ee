package apperrors

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrNoActiveSession = errors.New("no active session")
	ErrNotAssigned     = errors.New("participant not assigned to session")
	ErrNoAutoOnset     = errors.New("trial has no auto-detected onset")
)
