package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	// RunID identifies a single detection run.
	RunID ID
	// ModelKind tags a model architecture ("gpt2", "llama", ...).
	// Known-head tables and attention-source registries key on it.
	ModelKind string
)

// String conversions for domain IDs
func (id RunID) String() string { return ID(id).String() }

func (mk ModelKind) String() string { return string(mk) }

// NewRunID creates a fresh run identifier.
func NewRunID() RunID {
	return RunID(NewID())
}

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseModelKind parses a string into ModelKind. Kinds are compared
// case-sensitively; the canonical form is lowercase.
func ParseModelKind(s string) (ModelKind, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("model kind cannot be empty")
	}
	return ModelKind(s), nil
}

// ModelGPT2 is the model kind every shipped reference table covers.
const ModelGPT2 ModelKind = "gpt2"
