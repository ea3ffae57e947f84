package ports

import (
	"context"

	"circuitscope/domain/attention"
	"circuitscope/domain/core"
	"circuitscope/domain/ioi"
)

// Detector locates IOI circuits in recorded attention patterns
type Detector interface {
	// Detect scores every head in attn against the five role signatures
	// and assembles the classified heads into a circuit.
	Detect(ctx context.Context, attn attention.Map, sentence *ioi.Sentence, cfg ioi.DetectionConfig) (*ioi.Circuit, error)
}

// AttentionSource is the capability an instrumentation adapter must
// provide: run the model over a token sequence and hand back the per-layer
// attention tensors. Inference and hooking live behind this boundary.
type AttentionSource interface {
	// ModelKind identifies the architecture the source instruments
	ModelKind() core.ModelKind

	// LayerCount reports the number of transformer layers
	LayerCount() int

	// HeadCount reports the number of attention heads per layer
	HeadCount() int

	// CollectAttention runs a forward pass over tokenIDs and returns the
	// recorded attention map, one pattern per layer
	CollectAttention(ctx context.Context, tokenIDs []int) (attention.Map, error)
}
