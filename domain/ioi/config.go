package ioi

import (
	"fmt"
	"math"

	"circuitscope/domain/core"
)

// LayerRange restricts a role's search to layers in [Min, Max).
type LayerRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether layer falls inside the half-open range.
func (r LayerRange) Contains(layer int) bool {
	return layer >= r.Min && layer < r.Max
}

// DetectionConfig tunes role classification.
//
// INVARIANTS:
// - every role has a strictly positive, finite threshold, so a kept
//   head always carries a positive score
// - TopK >= 1
// - any configured layer range satisfies 0 <= Min < Max
type DetectionConfig struct {
	Thresholds  map[Role]float64    `json:"thresholds"`             // Minimum role score to keep a head
	LayerRanges map[Role]LayerRange `json:"layer_ranges,omitempty"` // Absent role = search all layers
	TopK        int                 `json:"top_k"`                  // Max heads retained per role
}

// DefaultConfig returns the stock thresholds: name-mover style roles at
// 0.3 (backup attenuated to 0.21), single-mass roles at 0.2, and the
// diffuse previous-token signature at 0.5. All layers searched.
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		Thresholds: map[Role]float64{
			RoleNameMover:       0.3,
			RoleSInhibition:     0.2,
			RoleDuplicateToken:  0.2,
			RolePreviousToken:   0.5,
			RoleBackupNameMover: 0.21,
		},
		LayerRanges: map[Role]LayerRange{},
		TopK:        5,
	}
}

// GPT2SmallLayerRanges returns the layer bands where each role sits in
// gpt2-small, widened just enough to cover every published head (the
// duplicate-token head L3H0 and previous-token head L4H11 sit outside
// the textbook bands).
func GPT2SmallLayerRanges() map[Role]LayerRange {
	return map[Role]LayerRange{
		RoleDuplicateToken:  {Min: 0, Max: 4},
		RolePreviousToken:   {Min: 0, Max: 5},
		RoleSInhibition:     {Min: 6, Max: 9},
		RoleNameMover:       {Min: 9, Max: 12},
		RoleBackupNameMover: {Min: 9, Max: 12},
	}
}

// Threshold returns the configured threshold for a role.
func (c DetectionConfig) Threshold(role Role) float64 {
	return c.Thresholds[role]
}

// RangeFor returns the role's layer range, if any.
func (c DetectionConfig) RangeFor(role Role) (LayerRange, bool) {
	r, ok := c.LayerRanges[role]
	return r, ok
}

// Validate checks config invariants
func (c DetectionConfig) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("%w: top_k must be >= 1, got %d", core.ErrInvalidConfig, c.TopK)
	}
	for _, role := range AllRoles() {
		threshold, ok := c.Thresholds[role]
		if !ok {
			return fmt.Errorf("%w: missing threshold for role %s", core.ErrInvalidConfig, role)
		}
		if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
			return fmt.Errorf("%w: threshold for role %s must be finite and > 0, got %f",
				core.ErrInvalidConfig, role, threshold)
		}
	}
	for role, r := range c.LayerRanges {
		if !role.Valid() {
			return fmt.Errorf("%w: layer range for unknown role %q", core.ErrInvalidConfig, role)
		}
		if r.Min < 0 || r.Min >= r.Max {
			return fmt.Errorf("%w: layer range for role %s must satisfy 0 <= min < max, got [%d, %d)",
				core.ErrInvalidConfig, role, r.Min, r.Max)
		}
	}
	return nil
}
