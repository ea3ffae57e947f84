package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input validation errors
	ErrInvalidAttentionPattern = errors.New("invalid attention pattern")
	ErrInvalidSentenceSpec     = errors.New("invalid sentence spec")
	ErrInvalidConfig           = errors.New("invalid detection config")

	// Lookup errors
	ErrUnsupportedModelKind  = errors.New("unsupported model kind")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrUnknownRole           = errors.New("unknown circuit role")

	// Bounds errors
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Error constructors with context
func NewAttentionPatternError(layer int, reason string) error {
	return fmt.Errorf("%w: layer %d: %s", ErrInvalidAttentionPattern, layer, reason)
}

func NewSentenceSpecError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidSentenceSpec, field, reason)
}

func NewUnsupportedModelError(kind string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedModelKind, kind)
}

func NewIndexError(what string, index, length int) error {
	return fmt.Errorf("%w: %s %d not in [0, %d)", ErrIndexOutOfRange, what, index, length)
}

// Error checking helpers
func IsInvalidAttentionPattern(err error) bool {
	return errors.Is(err, ErrInvalidAttentionPattern)
}

func IsInvalidSentenceSpec(err error) bool {
	return errors.Is(err, ErrInvalidSentenceSpec)
}

func IsUnsupportedModelKind(err error) bool {
	return errors.Is(err, ErrUnsupportedModelKind)
}

func IsIndexOutOfRange(err error) bool {
	return errors.Is(err, ErrIndexOutOfRange)
}
