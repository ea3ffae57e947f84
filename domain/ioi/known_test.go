package ioi

import (
	"testing"

	"circuitscope/domain/core"
)

// TestKnownHeadsRegisterAndLookup tests the registry round trip
func TestKnownHeadsRegisterAndLookup(t *testing.T) {
	table := NewKnownHeads()

	err := table.Register(core.ModelKind("toy"), RoleHeads{
		RoleNameMover: {{Layer: 3, Head: 1}, {Layer: 1, Head: 2}},
	})
	if err != nil {
		t.Fatalf("Expected registration to succeed, got: %v", err)
	}

	heads, err := table.Lookup(core.ModelKind("toy"))
	if err != nil {
		t.Fatalf("Expected lookup to succeed, got: %v", err)
	}

	// Refs come back sorted (layer, head) ascending
	refs := heads.Heads(RoleNameMover)
	if len(refs) != 2 {
		t.Fatalf("Expected 2 refs, got %d", len(refs))
	}
	if refs[0] != (HeadRef{Layer: 1, Head: 2}) || refs[1] != (HeadRef{Layer: 3, Head: 1}) {
		t.Errorf("Expected sorted refs, got %v", refs)
	}
}

// TestKnownHeadsDuplicateRejected tests duplicate registration rejection
func TestKnownHeadsDuplicateRejected(t *testing.T) {
	table := NewKnownHeads()
	if err := table.Register(core.ModelKind("toy"), RoleHeads{}); err != nil {
		t.Fatalf("First registration failed: %v", err)
	}

	err := table.Register(core.ModelKind("toy"), RoleHeads{})
	if err == nil {
		t.Fatal("Expected duplicate registration to fail, got nil")
	}
}

// TestKnownHeadsUnknownModel tests the lookup failure path
func TestKnownHeadsUnknownModel(t *testing.T) {
	table := DefaultKnownHeads()

	_, err := table.Lookup(core.ModelKind("mistral"))
	if err == nil {
		t.Fatal("Expected error for unknown model, got nil")
	}
	if !core.IsUnsupportedModelKind(err) {
		t.Errorf("Expected ErrUnsupportedModelKind, got: %v", err)
	}
}

// TestKnownHeadsRejectsBadTable tests role and ref validation
func TestKnownHeadsRejectsBadTable(t *testing.T) {
	table := NewKnownHeads()

	err := table.Register(core.ModelKind("toy"), RoleHeads{
		Role("negative_name_mover"): {{Layer: 10, Head: 7}},
	})
	if err == nil {
		t.Fatal("Expected error for unknown role, got nil")
	}

	err = table.Register(core.ModelKind("toy2"), RoleHeads{
		RoleNameMover: {{Layer: -1, Head: 0}},
	})
	if err == nil {
		t.Fatal("Expected error for negative layer, got nil")
	}
}

// TestKnownHeadsIsolation tests that lookups return copies
func TestKnownHeadsIsolation(t *testing.T) {
	table := DefaultKnownHeads()

	first, err := table.Lookup(core.ModelGPT2)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	first[RoleNameMover][0] = HeadRef{Layer: 99, Head: 99}
	delete(first, RoleSInhibition)

	second, err := table.Lookup(core.ModelGPT2)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if second[RoleNameMover][0] == (HeadRef{Layer: 99, Head: 99}) {
		t.Error("Expected table state to be isolated from caller mutation")
	}
	if len(second.Heads(RoleSInhibition)) == 0 {
		t.Error("Expected s-inhibition refs to survive caller deletion")
	}
}

// TestDefaultKnownHeadsGPT2 tests the shipped reference table
func TestDefaultKnownHeadsGPT2(t *testing.T) {
	table := DefaultKnownHeads()

	models := table.Models()
	if len(models) != 1 || models[0] != core.ModelGPT2 {
		t.Fatalf("Expected exactly gpt2, got %v", models)
	}

	heads, err := table.Lookup(core.ModelGPT2)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	expectedCounts := map[Role]int{
		RoleNameMover:       3,
		RoleBackupNameMover: 6,
		RoleSInhibition:     4,
		RoleDuplicateToken:  3,
		RolePreviousToken:   2,
	}
	total := 0
	for role, count := range expectedCounts {
		if got := len(heads.Heads(role)); got != count {
			t.Errorf("Role %s: expected %d refs, got %d", role, count, got)
		}
		total += len(heads.Heads(role))
	}
	if total != 18 {
		t.Errorf("Expected 18 reference heads in total, got %d", total)
	}

	// Spot-check the canonical name mover
	found := false
	for _, ref := range heads.Heads(RoleNameMover) {
		if ref == (HeadRef{Layer: 9, Head: 9}) {
			found = true
		}
	}
	if !found {
		t.Error("Expected L9H9 among the gpt2 name movers")
	}
}
