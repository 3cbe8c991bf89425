package reminder

import "errors"

var (
	// ErrExpired means the notification token is no longer in the registry.
	ErrExpired = errors.New("reminder no longer available")
	// ErrInvalidAction means callback data could not be decoded.
	ErrInvalidAction = errors.New("invalid reminder action")
)
