package attention

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"circuitscope/domain/core"
)

// RowTolerance is the maximum allowed deviation of an attention row's
// mass from 1.0. Softmax output recorded as float32 and re-read as
// float64 stays well inside this band.
const RowTolerance = 1e-4

// Pattern is one layer's attention tensor, shape (heads x seq x seq).
// Data[h][q][k] is the mass head h moves from query position q to key
// position k. Rows are post-softmax and therefore row-stochastic.
//
// This is the single input to head scoring; instrumentation layers
// produce it, nothing here mutates it.
type Pattern struct {
	Data [][][]float64
}

// NewPattern wraps a dense tensor without copying.
func NewPattern(data [][][]float64) Pattern {
	return Pattern{Data: data}
}

// Heads returns the number of heads in this layer's tensor.
func (p Pattern) Heads() int {
	return len(p.Data)
}

// SeqLen returns the sequence length, or 0 for an empty pattern.
func (p Pattern) SeqLen() int {
	if len(p.Data) == 0 {
		return 0
	}
	return len(p.Data[0])
}

// Mass returns the attention mass head h moves from query q to key k.
// Positions outside the tensor's bounds carry zero mass; sentence
// positions may legitimately exceed a truncated recording's length.
func (p Pattern) Mass(head, query, key int) float64 {
	if head < 0 || head >= len(p.Data) {
		return 0
	}
	m := p.Data[head]
	if query < 0 || query >= len(m) {
		return 0
	}
	row := m[query]
	if key < 0 || key >= len(row) {
		return 0
	}
	return row[key]
}

// Row returns head h's attention row for query position q, or nil when
// out of bounds.
func (p Pattern) Row(head, query int) []float64 {
	if head < 0 || head >= len(p.Data) {
		return nil
	}
	if query < 0 || query >= len(p.Data[head]) {
		return nil
	}
	return p.Data[head][query]
}

// Validate ensures the tensor is structurally sound: at least one head,
// square uniformly-sized matrices, finite entries, and row sums within
// RowTolerance of 1.0. The layer index only labels errors.
func (p Pattern) Validate(layer int) error {
	if len(p.Data) == 0 {
		return core.NewAttentionPatternError(layer, "no heads")
	}

	seq := len(p.Data[0])
	if seq == 0 {
		return core.NewAttentionPatternError(layer, "head 0 has zero rows")
	}

	for h, head := range p.Data {
		if len(head) != seq {
			return core.NewAttentionPatternError(layer,
				fmt.Sprintf("head %d has %d rows, expected %d", h, len(head), seq))
		}
		for q, row := range head {
			if len(row) != seq {
				return core.NewAttentionPatternError(layer,
					fmt.Sprintf("head %d row %d has %d keys, expected %d", h, q, len(row), seq))
			}
			for k, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return core.NewAttentionPatternError(layer,
						fmt.Sprintf("head %d position (%d,%d) is not finite", h, q, k))
				}
			}
			if sum := floats.Sum(row); math.Abs(sum-1.0) > RowTolerance {
				return core.NewAttentionPatternError(layer,
					fmt.Sprintf("head %d row %d sums to %g, expected 1.0 within %g", h, q, sum, RowTolerance))
			}
		}
	}

	return nil
}

// canonicalSection renders the tensor deterministically for digests.
func (p Pattern) canonicalSection() string {
	var b strings.Builder
	for h, head := range p.Data {
		fmt.Fprintf(&b, "h%d[", h)
		for _, row := range head {
			for k, v := range row {
				if k > 0 {
					b.WriteString(",")
				}
				b.WriteString(core.CanonicalFloat(v))
			}
			b.WriteString("|")
		}
		b.WriteString("]")
	}
	return b.String()
}

// Map holds one Pattern per recorded layer, keyed by layer index.
// Layers need not be contiguous; a caller probing layers {3, 7} supplies
// exactly those keys. Head counts may differ across layers, sequence
// length may not.
type Map map[int]Pattern

// Layers returns the recorded layer indices in ascending order.
func (m Map) Layers() []int {
	layers := make([]int, 0, len(m))
	for l := range m {
		layers = append(layers, l)
	}
	sort.Ints(layers)
	return layers
}

// SeqLen returns the shared sequence length, or 0 for an empty map.
func (m Map) SeqLen() int {
	for _, p := range m {
		return p.SeqLen()
	}
	return 0
}

// Validate checks every layer's tensor and cross-layer agreement on
// sequence length.
func (m Map) Validate() error {
	if len(m) == 0 {
		return core.NewAttentionPatternError(-1, "no layers")
	}

	layers := m.Layers()
	seq := -1
	for _, layer := range layers {
		if layer < 0 {
			return core.NewAttentionPatternError(layer, "negative layer index")
		}
		p := m[layer]
		if err := p.Validate(layer); err != nil {
			return err
		}
		if seq == -1 {
			seq = p.SeqLen()
		} else if p.SeqLen() != seq {
			return core.NewAttentionPatternError(layer,
				fmt.Sprintf("sequence length %d disagrees with %d", p.SeqLen(), seq))
		}
	}

	return nil
}

// Digest fingerprints the map's exact contents in ascending layer order.
func (m Map) Digest() core.PatternDigest {
	sections := make(map[int]string, len(m))
	for layer, p := range m {
		sections[layer] = p.canonicalSection()
	}
	return core.ComputePatternDigest(sections)
}
