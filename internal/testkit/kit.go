package testkit

import (
	"context"
	"fmt"

	"circuitscope/adapters/detect"
	"circuitscope/app"
	"circuitscope/domain/attention"
	"circuitscope/domain/core"
	"circuitscope/domain/ioi"
	"circuitscope/ports"
)

// Kit bundles the fixtures detection tests share: one synthetic
// scenario plus the fakes and services wired around it.
type Kit struct {
	fixture *Fixture
	model   core.ModelKind
}

// NewKit builds a kit around the planted gpt2-small scenario.
func NewKit() (*Kit, error) {
	return NewKitWithConfig(GPT2Config())
}

// NewKitWithConfig builds a kit around a custom synthetic scenario.
func NewKitWithConfig(cfg Config) (*Kit, error) {
	fix, err := Generate(cfg)
	if err != nil {
		return nil, err
	}
	return &Kit{fixture: fix, model: core.ModelGPT2}, nil
}

// Fixture returns the generated scenario.
func (k *Kit) Fixture() *Fixture {
	return k.fixture
}

// Sentence returns the scenario's sentence.
func (k *Kit) Sentence() *ioi.Sentence {
	return k.fixture.Sentence
}

// Attention returns the scenario's attention recording.
func (k *Kit) Attention() attention.Map {
	return k.fixture.Attention
}

// Source returns a canned instrumentation adapter over the fixture.
func (k *Kit) Source() *FakeAttentionSource {
	return NewFakeAttentionSource(k.model, k.fixture.Attention)
}

// Service returns a detection service wired for the fixture's model.
func (k *Kit) Service() *app.DetectService {
	return app.NewDetectService(k.model, detect.NewEngine())
}

// FakeAttentionSource implements ports.AttentionSource with a canned
// recording, standing in for real model instrumentation.
type FakeAttentionSource struct {
	kind core.ModelKind
	attn attention.Map

	// Err, when set, is returned from CollectAttention.
	Err error
}

var _ ports.AttentionSource = (*FakeAttentionSource)(nil)

// NewFakeAttentionSource wraps a recording as an attention source.
func NewFakeAttentionSource(kind core.ModelKind, attn attention.Map) *FakeAttentionSource {
	return &FakeAttentionSource{kind: kind, attn: attn}
}

func (f *FakeAttentionSource) ModelKind() core.ModelKind {
	return f.kind
}

func (f *FakeAttentionSource) LayerCount() int {
	return len(f.attn)
}

func (f *FakeAttentionSource) HeadCount() int {
	for _, layer := range f.attn.Layers() {
		return f.attn[layer].Heads()
	}
	return 0
}

// CollectAttention returns the canned recording. The token ids must
// match the recording's sequence length, the same contract a real
// instrumentation hook has with its forward pass.
func (f *FakeAttentionSource) CollectAttention(ctx context.Context, tokenIDs []int) (attention.Map, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(tokenIDs) != f.attn.SeqLen() {
		return nil, fmt.Errorf("recording covers %d positions, got %d token ids", f.attn.SeqLen(), len(tokenIDs))
	}
	return f.attn, nil
}

// Logits fabricates a last-position logit row that prefers the
// indirect object over the subject by margin.
func Logits(sent *ioi.Sentence, margin float64) []float64 {
	vocab := 0
	for _, id := range sent.TokenIDs {
		if id >= vocab {
			vocab = id + 1
		}
	}
	row := make([]float64, vocab)
	row[sent.TokenIDs[sent.IOPosition]] = margin
	return row
}

// LogitRows fabricates a (seq x vocab) logits matrix whose final row
// is Logits(sent, margin); earlier positions stay zero.
func LogitRows(sent *ioi.Sentence, margin float64) [][]float64 {
	last := Logits(sent, margin)
	rows := make([][]float64, sent.SeqLen())
	for i := range rows {
		rows[i] = make([]float64, len(last))
	}
	rows[len(rows)-1] = last
	return rows
}
