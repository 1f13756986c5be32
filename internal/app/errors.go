package app

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")

	ErrSessionNotFound = errors.New("session not found")
	ErrMessageEmpty    = errors.New("message content is empty")
	ErrPromptEmpty     = errors.New("prompt is required")
	ErrGeneration      = errors.New("component generation failed")
	ErrRecordEnqueue   = errors.New("exchange record enqueue failed")
)
