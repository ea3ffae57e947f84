package ioi

import (
	"fmt"
	"math"
)

// HeadRef names an attention head by (layer, head) position.
type HeadRef struct {
	Layer int `json:"layer"`
	Head  int `json:"head"`
}

// Less orders refs by layer then head, the canonical tie-break.
func (r HeadRef) Less(o HeadRef) bool {
	if r.Layer != o.Layer {
		return r.Layer < o.Layer
	}
	return r.Head < o.Head
}

// String renders the conventional L<layer>H<head> form.
func (r HeadRef) String() string {
	return fmt.Sprintf("L%dH%d", r.Layer, r.Head)
}

// Head is one classified attention head.
//
// INVARIANTS:
// - Layer >= 0, Head >= 0
// - Role is one of the five circuit roles
// - Score is finite and >= 0
type Head struct {
	Layer   int                `json:"layer"`
	Head    int                `json:"head"`
	Role    Role               `json:"role"`
	Score   float64            `json:"score"`
	Metrics map[string]float64 `json:"metrics,omitempty"` // Raw masses behind the score, for explainability
}

// NewHead creates a classified head with validation
func NewHead(layer, head int, role Role, score float64, metrics map[string]float64) (Head, error) {
	h := Head{Layer: layer, Head: head, Role: role, Score: score, Metrics: metrics}
	if err := h.validate(); err != nil {
		return Head{}, err
	}
	return h, nil
}

// Ref returns the head's (layer, head) position.
func (h Head) Ref() HeadRef {
	return HeadRef{Layer: h.Layer, Head: h.Head}
}

// validate checks head invariants
func (h Head) validate() error {
	if h.Layer < 0 {
		return fmt.Errorf("layer must be >= 0, got %d", h.Layer)
	}
	if h.Head < 0 {
		return fmt.Errorf("head must be >= 0, got %d", h.Head)
	}
	if !h.Role.Valid() {
		return fmt.Errorf("unknown role %q", h.Role)
	}
	if math.IsNaN(h.Score) || math.IsInf(h.Score, 0) {
		return fmt.Errorf("score must be finite, got %f", h.Score)
	}
	if h.Score < 0 {
		return fmt.Errorf("score must be >= 0, got %f", h.Score)
	}
	return nil
}
