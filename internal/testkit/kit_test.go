package testkit

import (
	"context"
	"errors"
	"testing"

	"circuitscope/domain/core"
	"circuitscope/domain/ioi"
)

// TestKitWiring tests that the kit hands out consistent fixtures
func TestKitWiring(t *testing.T) {
	kit, err := NewKit()
	if err != nil {
		t.Fatalf("Expected kit construction to succeed, got %v", err)
	}

	if kit.Fixture() == nil || kit.Sentence() == nil || kit.Attention() == nil {
		t.Fatal("Expected the kit to carry a complete fixture")
	}
	if kit.Attention().SeqLen() != kit.Sentence().SeqLen() {
		t.Errorf("Expected attention and sentence to agree on length, got %d and %d",
			kit.Attention().SeqLen(), kit.Sentence().SeqLen())
	}
	if svc := kit.Service(); svc == nil || svc.Model() != core.ModelGPT2 {
		t.Error("Expected a gpt2 detection service")
	}
}

// TestFakeSourceShape tests the canned source's reported geometry
func TestFakeSourceShape(t *testing.T) {
	kit, err := NewKit()
	if err != nil {
		t.Fatalf("Expected kit construction to succeed, got %v", err)
	}

	src := kit.Source()
	if src.ModelKind() != core.ModelGPT2 {
		t.Errorf("Expected model gpt2, got %s", src.ModelKind())
	}
	if src.LayerCount() != 12 {
		t.Errorf("Expected 12 layers, got %d", src.LayerCount())
	}
	if src.HeadCount() != 12 {
		t.Errorf("Expected 12 heads, got %d", src.HeadCount())
	}
}

// TestFakeSourceCollect tests the canned collection contract
func TestFakeSourceCollect(t *testing.T) {
	kit, err := NewKit()
	if err != nil {
		t.Fatalf("Expected kit construction to succeed, got %v", err)
	}
	src := kit.Source()

	attn, err := src.CollectAttention(context.Background(), kit.Sentence().TokenIDs)
	if err != nil {
		t.Fatalf("Expected collection to succeed, got %v", err)
	}
	if attn.Digest() != kit.Attention().Digest() {
		t.Error("Expected the canned recording back")
	}

	if _, err := src.CollectAttention(context.Background(), []int{1, 2, 3}); err == nil {
		t.Error("Expected a length mismatch error, got nil")
	}

	injected := errors.New("hook detached")
	src.Err = injected
	if _, err := src.CollectAttention(context.Background(), kit.Sentence().TokenIDs); !errors.Is(err, injected) {
		t.Errorf("Expected the injected failure, got %v", err)
	}

	src.Err = nil
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.CollectAttention(canceled, kit.Sentence().TokenIDs); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// TestLogitsFavorIO tests the fabricated logit margin
func TestLogitsFavorIO(t *testing.T) {
	sent := Prompt()

	last, err := ioi.LastPositionLogits(LogitRows(sent, 3.5))
	if err != nil {
		t.Fatalf("Expected a last-position row, got %v", err)
	}

	diff, err := ioi.LogitDiff(last, sent.TokenIDs[sent.IOPosition], sent.TokenIDs[sent.S2Position])
	if err != nil {
		t.Fatalf("Expected logit diff to succeed, got %v", err)
	}
	if diff != 3.5 {
		t.Errorf("Expected a logit diff of 3.5, got %g", diff)
	}
}
