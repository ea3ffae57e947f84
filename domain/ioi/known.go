package ioi

import (
	"fmt"
	"sort"

	"circuitscope/domain/core"
)

// RoleHeads maps each circuit role to its reference heads. Roles with
// no published heads may be absent; readers treat absence as empty.
type RoleHeads map[Role][]HeadRef

// Heads returns the refs for a role, sorted (layer, head) ascending.
func (rh RoleHeads) Heads(role Role) []HeadRef {
	return rh[role]
}

// clone copies the table so callers cannot mutate registered state.
func (rh RoleHeads) clone() RoleHeads {
	out := make(RoleHeads, len(rh))
	for role, refs := range rh {
		cp := make([]HeadRef, len(refs))
		copy(cp, refs)
		out[role] = cp
	}
	return out
}

// KnownHeads is the reference table of published circuit heads, keyed
// by model kind. Construction is explicit: a fresh table is empty and
// every model is added through Register, which rejects duplicates.
// Nothing registers at import time.
type KnownHeads struct {
	models map[core.ModelKind]RoleHeads
}

// NewKnownHeads creates an empty reference table
func NewKnownHeads() *KnownHeads {
	return &KnownHeads{models: make(map[core.ModelKind]RoleHeads)}
}

// Register adds a model's reference heads. Refs are copied and sorted
// (layer, head) ascending; registering an already-present model fails.
func (t *KnownHeads) Register(model core.ModelKind, heads RoleHeads) error {
	if model == "" {
		return fmt.Errorf("model kind cannot be empty")
	}
	if _, exists := t.models[model]; exists {
		return fmt.Errorf("%w: model %s", core.ErrDuplicateRegistration, model)
	}
	for role, refs := range heads {
		if !role.Valid() {
			return fmt.Errorf("%w: %q in table for model %s", core.ErrUnknownRole, role, model)
		}
		for _, ref := range refs {
			if ref.Layer < 0 || ref.Head < 0 {
				return fmt.Errorf("invalid reference head %s for model %s", ref, model)
			}
		}
	}

	stored := heads.clone()
	for role := range stored {
		refs := stored[role]
		sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	}
	t.models[model] = stored
	return nil
}

// Lookup returns a model's reference heads, or ErrUnsupportedModelKind.
func (t *KnownHeads) Lookup(model core.ModelKind) (RoleHeads, error) {
	heads, exists := t.models[model]
	if !exists {
		return nil, core.NewUnsupportedModelError(string(model))
	}
	return heads.clone(), nil
}

// Models returns the registered model kinds in sorted order.
func (t *KnownHeads) Models() []core.ModelKind {
	kinds := make([]core.ModelKind, 0, len(t.models))
	for k := range t.models {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DefaultKnownHeads ships the gpt2-small table from the IOI paper.
// Name movers and their backups sit in the final third of the network,
// s-inhibition in the middle, token-matching roles near the input.
func DefaultKnownHeads() *KnownHeads {
	t := NewKnownHeads()

	gpt2 := RoleHeads{
		RoleNameMover: {
			{Layer: 9, Head: 9}, {Layer: 10, Head: 0}, {Layer: 9, Head: 6},
		},
		RoleBackupNameMover: {
			{Layer: 10, Head: 10}, {Layer: 10, Head: 6}, {Layer: 10, Head: 2},
			{Layer: 11, Head: 2}, {Layer: 9, Head: 7}, {Layer: 10, Head: 1},
		},
		RoleSInhibition: {
			{Layer: 7, Head: 3}, {Layer: 7, Head: 9}, {Layer: 8, Head: 6}, {Layer: 8, Head: 10},
		},
		RoleDuplicateToken: {
			{Layer: 0, Head: 1}, {Layer: 0, Head: 10}, {Layer: 3, Head: 0},
		},
		RolePreviousToken: {
			{Layer: 2, Head: 2}, {Layer: 4, Head: 11},
		},
	}

	// A fixed table registered into a fresh instance cannot collide.
	if err := t.Register(core.ModelGPT2, gpt2); err != nil {
		panic(err)
	}
	return t
}
