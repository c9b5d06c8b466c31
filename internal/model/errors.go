package model

import "errors"

// Common errors used across the application
var (
	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountInUse    = errors.New("account is already connected")
	ErrUsernameExists  = errors.New("username already exists")
	ErrInvalidToken    = errors.New("invalid account token")

	// Connection errors
	ErrPlayerNotFound = errors.New("player not found")

	// Session errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionFull         = errors.New("session is full")
	ErrAlreadyInSession    = errors.New("player is already in a session")
	ErrNotInSession        = errors.New("player is not in this session")
	ErrNotHost             = errors.New("player is not the host")
	ErrSessionStarted      = errors.New("session has already started")
	ErrInsufficientPlayers = errors.New("insufficient players to start session")
	ErrLocationsPending    = errors.New("session locations are not generated yet")
	ErrInvalidRoomCode     = errors.New("invalid room code")
	ErrUnknownLocationPool = errors.New("unknown location pool")
	ErrInvalidConfig       = errors.New("invalid session configuration")

	// Friend graph errors
	ErrEdgeExists   = errors.New("friend relationship already exists")
	ErrEdgeNotFound = errors.New("friend relationship not found")
)
