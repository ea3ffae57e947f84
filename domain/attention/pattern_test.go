package attention

import (
	"math"
	"testing"

	"circuitscope/domain/core"
)

// uniformPattern builds a pattern where every row spreads mass evenly.
func uniformPattern(heads, seq int) Pattern {
	data := make([][][]float64, heads)
	for h := 0; h < heads; h++ {
		data[h] = make([][]float64, seq)
		for q := 0; q < seq; q++ {
			row := make([]float64, seq)
			for k := 0; k < seq; k++ {
				row[k] = 1.0 / float64(seq)
			}
			data[h][q] = row
		}
	}
	return NewPattern(data)
}

// TestPatternValidateAccepts tests that a well-formed tensor passes
func TestPatternValidateAccepts(t *testing.T) {
	p := uniformPattern(4, 8)
	if err := p.Validate(0); err != nil {
		t.Fatalf("Expected valid pattern, got error: %v", err)
	}
	if p.Heads() != 4 {
		t.Errorf("Expected 4 heads, got %d", p.Heads())
	}
	if p.SeqLen() != 8 {
		t.Errorf("Expected seq len 8, got %d", p.SeqLen())
	}
}

// TestPatternValidateRowSum tests the row-stochastic check
func TestPatternValidateRowSum(t *testing.T) {
	p := uniformPattern(2, 4)
	p.Data[1][2][0] += 0.01 // push the row clearly past tolerance

	err := p.Validate(3)
	if err == nil {
		t.Fatal("Expected error for non-stochastic row, got nil")
	}
	if !core.IsInvalidAttentionPattern(err) {
		t.Errorf("Expected ErrInvalidAttentionPattern, got: %v", err)
	}
}

// TestPatternValidateWithinTolerance tests that sub-tolerance drift passes
func TestPatternValidateWithinTolerance(t *testing.T) {
	p := uniformPattern(1, 4)
	p.Data[0][0][0] += 5e-5 // inside the 1e-4 band

	if err := p.Validate(0); err != nil {
		t.Errorf("Expected drift within tolerance to pass, got: %v", err)
	}
}

// TestPatternValidateJagged tests shape enforcement
func TestPatternValidateJagged(t *testing.T) {
	p := uniformPattern(2, 4)
	p.Data[0][1] = []float64{0.5, 0.5} // short row

	err := p.Validate(0)
	if err == nil {
		t.Fatal("Expected error for jagged tensor, got nil")
	}
	if !core.IsInvalidAttentionPattern(err) {
		t.Errorf("Expected ErrInvalidAttentionPattern, got: %v", err)
	}
}

// TestPatternValidateNonFinite tests NaN rejection
func TestPatternValidateNonFinite(t *testing.T) {
	p := uniformPattern(1, 3)
	p.Data[0][0][0] = math.NaN()

	err := p.Validate(0)
	if err == nil {
		t.Fatal("Expected error for NaN entry, got nil")
	}
	if !core.IsInvalidAttentionPattern(err) {
		t.Errorf("Expected ErrInvalidAttentionPattern, got: %v", err)
	}
}

// TestPatternMassBounds tests graceful zero outside the tensor
func TestPatternMassBounds(t *testing.T) {
	p := uniformPattern(2, 4)

	if got := p.Mass(0, 1, 2); got != 0.25 {
		t.Errorf("Expected in-bounds mass 0.25, got %g", got)
	}
	outOfBounds := [][3]int{
		{-1, 0, 0}, {2, 0, 0}, {0, -1, 0}, {0, 4, 0}, {0, 0, -1}, {0, 0, 4},
	}
	for _, idx := range outOfBounds {
		if got := p.Mass(idx[0], idx[1], idx[2]); got != 0 {
			t.Errorf("Expected zero mass at %v, got %g", idx, got)
		}
	}
}

// TestMapValidate tests cross-layer agreement
func TestMapValidate(t *testing.T) {
	m := Map{0: uniformPattern(2, 6), 1: uniformPattern(2, 6)}
	if err := m.Validate(); err != nil {
		t.Fatalf("Expected valid map, got: %v", err)
	}

	// Head counts may differ per layer
	m[2] = uniformPattern(3, 6)
	if err := m.Validate(); err != nil {
		t.Errorf("Expected per-layer head counts to be allowed, got: %v", err)
	}

	// Sequence lengths may not
	m[3] = uniformPattern(2, 5)
	err := m.Validate()
	if err == nil {
		t.Fatal("Expected error for disagreeing sequence lengths, got nil")
	}
	if !core.IsInvalidAttentionPattern(err) {
		t.Errorf("Expected ErrInvalidAttentionPattern, got: %v", err)
	}
}

// TestMapValidateEmpty tests the no-layers case
func TestMapValidateEmpty(t *testing.T) {
	err := Map{}.Validate()
	if err == nil {
		t.Fatal("Expected error for empty map, got nil")
	}
	if !core.IsInvalidAttentionPattern(err) {
		t.Errorf("Expected ErrInvalidAttentionPattern, got: %v", err)
	}
}

// TestMapLayersSorted tests ascending layer enumeration
func TestMapLayersSorted(t *testing.T) {
	m := Map{7: uniformPattern(1, 3), 0: uniformPattern(1, 3), 3: uniformPattern(1, 3)}

	layers := m.Layers()
	expected := []int{0, 3, 7}
	if len(layers) != len(expected) {
		t.Fatalf("Expected %d layers, got %d", len(expected), len(layers))
	}
	for i := range expected {
		if layers[i] != expected[i] {
			t.Errorf("Layer %d: expected %d, got %d", i, expected[i], layers[i])
		}
	}
}

// TestMapDigestDeterminism tests content-addressed map digests
func TestMapDigestDeterminism(t *testing.T) {
	a := Map{0: uniformPattern(2, 4), 5: uniformPattern(2, 4)}
	b := Map{5: uniformPattern(2, 4), 0: uniformPattern(2, 4)}

	if a.Digest() != b.Digest() {
		t.Error("Expected identical digests for identical contents")
	}

	c := Map{0: uniformPattern(2, 4), 5: uniformPattern(2, 4)}
	c[5].Data[1][3][0] = 0.5
	c[5].Data[1][3][1] = 0.5
	c[5].Data[1][3][2] = 0.0
	c[5].Data[1][3][3] = 0.0
	if a.Digest() == c.Digest() {
		t.Error("Expected digest to change when tensor contents change")
	}
}
