package core

import (
	"testing"
)

// TestComputeKeyedHashOrderIndependence tests that map insertion order
// never changes the digest
func TestComputeKeyedHashOrderIndependence(t *testing.T) {
	a := map[string]string{"alpha": "1", "beta": "2", "gamma": "3"}
	b := map[string]string{"gamma": "3", "alpha": "1", "beta": "2"}

	ha := ComputeKeyedHash(a)
	hb := ComputeKeyedHash(b)

	if !ha.Equals(hb) {
		t.Errorf("Expected identical digests, got %s vs %s", ha, hb)
	}
}

// TestComputeKeyedHashSensitivity tests that any field change changes
// the digest
func TestComputeKeyedHashSensitivity(t *testing.T) {
	base := ComputeKeyedHash(map[string]string{"k": "v"})

	changedValue := ComputeKeyedHash(map[string]string{"k": "w"})
	if base.Equals(changedValue) {
		t.Error("Expected digest to change when a value changes")
	}

	changedKey := ComputeKeyedHash(map[string]string{"j": "v"})
	if base.Equals(changedKey) {
		t.Error("Expected digest to change when a key changes")
	}
}

// TestComputePatternDigestLayerOrder tests ascending-layer canonical order
func TestComputePatternDigestLayerOrder(t *testing.T) {
	a := ComputePatternDigest(map[int]string{0: "aa", 5: "bb", 2: "cc"})
	b := ComputePatternDigest(map[int]string{5: "bb", 2: "cc", 0: "aa"})

	if a != b {
		t.Errorf("Expected identical digests, got %s vs %s", a, b)
	}

	swapped := ComputePatternDigest(map[int]string{0: "bb", 5: "aa", 2: "cc"})
	if a == swapped {
		t.Error("Expected digest to change when layer contents swap")
	}
}

// TestCanonicalFloat tests the round-trippable float rendering
func TestCanonicalFloat(t *testing.T) {
	tests := []struct {
		value    float64
		expected string
	}{
		{0, "0"},
		{1, "1"},
		{0.85, "0.85"},
		{1e-4, "0.0001"},
		{-2.5, "-2.5"},
	}

	for _, test := range tests {
		if got := CanonicalFloat(test.value); got != test.expected {
			t.Errorf("CanonicalFloat(%v): expected %q, got %q", test.value, test.expected, got)
		}
	}
}
