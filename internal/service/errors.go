package service

import "errors"

// Matchmaking service errors
var (
	ErrInvalidMode    = errors.New("invalid game mode")
	ErrAlreadyInQueue = errors.New("already in queue")
	ErrUnavailable    = errors.New("matchmaking temporarily unavailable")
)

// Session service errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotInSession    = errors.New("player not in session")
)
