package ioi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circuitscope/domain/core"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 0.3, cfg.Threshold(RoleNameMover))
	assert.Equal(t, 0.2, cfg.Threshold(RoleSInhibition))
	assert.Equal(t, 0.2, cfg.Threshold(RoleDuplicateToken))
	assert.Equal(t, 0.5, cfg.Threshold(RolePreviousToken))
	assert.Equal(t, 0.21, cfg.Threshold(RoleBackupNameMover))

	_, restricted := cfg.RangeFor(RoleNameMover)
	assert.False(t, restricted, "default config searches all layers")
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DetectionConfig)
	}{
		{"top_k zero", func(c *DetectionConfig) { c.TopK = 0 }},
		{"missing threshold", func(c *DetectionConfig) { delete(c.Thresholds, RolePreviousToken) }},
		{"zero threshold", func(c *DetectionConfig) { c.Thresholds[RoleNameMover] = 0 }},
		{"negative threshold", func(c *DetectionConfig) { c.Thresholds[RoleNameMover] = -0.1 }},
		{"inverted layer range", func(c *DetectionConfig) {
			c.LayerRanges[RoleNameMover] = LayerRange{Min: 9, Max: 9}
		}},
		{"negative layer range", func(c *DetectionConfig) {
			c.LayerRanges[RoleNameMover] = LayerRange{Min: -1, Max: 4}
		}},
		{"range for unknown role", func(c *DetectionConfig) {
			c.LayerRanges[Role("induction")] = LayerRange{Min: 4, Max: 7}
		}},
	}

	for _, test := range tests {
		cfg := DefaultConfig()
		test.mutate(&cfg)
		err := cfg.Validate()
		require.Error(t, err, test.name)
		assert.ErrorIs(t, err, core.ErrInvalidConfig, test.name)
	}
}

func TestLayerRangeContains(t *testing.T) {
	r := LayerRange{Min: 6, Max: 9}

	assert.True(t, r.Contains(6))
	assert.True(t, r.Contains(8))
	assert.False(t, r.Contains(9), "max is exclusive")
	assert.False(t, r.Contains(5))
}

// TestGPT2RangesCoverReferenceTable pins the preset to the published
// heads: restricting search to these bands must never exclude a head
// the validation table expects to find.
func TestGPT2RangesCoverReferenceTable(t *testing.T) {
	ranges := GPT2SmallLayerRanges()
	heads, err := DefaultKnownHeads().Lookup(core.ModelGPT2)
	require.NoError(t, err)

	for _, role := range AllRoles() {
		r, ok := ranges[role]
		require.True(t, ok, "preset missing role %s", role)
		for _, ref := range heads.Heads(role) {
			assert.True(t, r.Contains(ref.Layer),
				"role %s head %s outside preset band [%d, %d)", role, ref, r.Min, r.Max)
		}
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("name_mover")
	require.NoError(t, err)
	assert.Equal(t, RoleNameMover, role)

	_, err = ParseRole("induction")
	require.Error(t, err)

	assert.Equal(t, []Role{
		RoleNameMover, RoleSInhibition, RoleDuplicateToken,
		RolePreviousToken, RoleBackupNameMover,
	}, AllRoles())
}
