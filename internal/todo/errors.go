package todo

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks user input that was rejected before any state change.
	ErrValidation = errors.New("invalid input")
	// ErrNotFound marks a task reference that does not resolve for the owner.
	ErrNotFound = errors.New("task not found")
	// ErrTooLong is the ErrValidation case for text over MaxTextLen runes.
	ErrTooLong = fmt.Errorf("task text too long: %w", ErrValidation)
)
