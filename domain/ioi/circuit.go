package ioi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"circuitscope/domain/core"
)

// Circuit is the assembled result of one detection run: the source
// sentence and the heads classified into each of the five roles.
//
// INVARIANTS:
// - each role list is sorted by score descending, ties (layer, head) ascending
// - every head in a role list carries that role
// - backup name movers are disjoint from name movers
// - ValidityScore is in [0, 1], and is 0 iff every role list is empty
type Circuit struct {
	Sentence         *Sentence      `json:"sentence"`
	Model            core.ModelKind `json:"model"`
	NameMovers       []Head         `json:"name_mover_heads"`
	SInhibition      []Head         `json:"s_inhibition_heads"`
	DuplicateToken   []Head         `json:"duplicate_token_heads"`
	PreviousToken    []Head         `json:"previous_token_heads"`
	BackupNameMovers []Head         `json:"backup_name_mover_heads"`
	ValidityScore    float64        `json:"validity_score"`
}

// Assemble builds a circuit from per-role classified heads, enforcing
// ordering and disjointness, and computes the validity score: the mean
// over the five roles of each role's top head score (0 for an empty
// role), clipped to [0, 1].
func Assemble(sentence *Sentence, model core.ModelKind, byRole map[Role][]Head) (*Circuit, error) {
	if sentence == nil {
		return nil, core.NewSentenceSpecError("sentence", "must not be nil")
	}
	if err := sentence.validate(); err != nil {
		return nil, err
	}

	for role, heads := range byRole {
		if !role.Valid() {
			return nil, fmt.Errorf("%w: %q", core.ErrUnknownRole, role)
		}
		if err := validateRoleList(role, heads); err != nil {
			return nil, err
		}
	}

	c := &Circuit{
		Sentence:         sentence,
		Model:            model,
		NameMovers:       byRole[RoleNameMover],
		SInhibition:      byRole[RoleSInhibition],
		DuplicateToken:   byRole[RoleDuplicateToken],
		PreviousToken:    byRole[RolePreviousToken],
		BackupNameMovers: byRole[RoleBackupNameMover],
	}

	if err := checkDisjoint(c.NameMovers, c.BackupNameMovers); err != nil {
		return nil, err
	}

	tops := make([]float64, 0, len(AllRoles()))
	for _, role := range AllRoles() {
		heads := c.HeadsFor(role)
		if len(heads) == 0 {
			tops = append(tops, 0)
			continue
		}
		tops = append(tops, heads[0].Score)
	}
	validity, err := stats.Mean(tops)
	if err != nil {
		return nil, fmt.Errorf("validity score: %v", err)
	}
	c.ValidityScore = clip01(validity)

	return c, nil
}

// HeadsFor returns the role's classified heads.
func (c *Circuit) HeadsFor(role Role) []Head {
	switch role {
	case RoleNameMover:
		return c.NameMovers
	case RoleSInhibition:
		return c.SInhibition
	case RoleDuplicateToken:
		return c.DuplicateToken
	case RolePreviousToken:
		return c.PreviousToken
	case RoleBackupNameMover:
		return c.BackupNameMovers
	default:
		return nil
	}
}

// IsEmpty reports whether no head was classified into any role.
func (c *Circuit) IsEmpty() bool {
	return c.TotalHeads() == 0
}

// TotalHeads counts classified heads across all roles.
func (c *Circuit) TotalHeads() int {
	total := 0
	for _, role := range AllRoles() {
		total += len(c.HeadsFor(role))
	}
	return total
}

// Fingerprint hashes the circuit's canonical serialization. Two runs
// over identical inputs produce equal fingerprints whatever the worker
// count or map iteration order.
func (c *Circuit) Fingerprint() core.CircuitFingerprint {
	fields := map[string]string{
		"model":    string(c.Model),
		"validity": core.CanonicalFloat(c.ValidityScore),
		"sentence": canonicalSentence(c.Sentence),
	}
	for _, role := range AllRoles() {
		fields["role:"+string(role)] = canonicalHeads(c.HeadsFor(role))
	}
	return core.CircuitFingerprint(core.ComputeKeyedHash(fields))
}

// canonicalSentence renders the positions that drive scoring.
func canonicalSentence(s *Sentence) string {
	if s == nil {
		return ""
	}
	positions := make([]string, len(s.SubjectPositions))
	for i, p := range s.SubjectPositions {
		positions[i] = fmt.Sprintf("%d", p)
	}
	return fmt.Sprintf("n=%d;subj=%s;io=%d;s2=%d;end=%d",
		s.SeqLen(), strings.Join(positions, ","), s.IOPosition, s.S2Position, s.EndPosition)
}

// canonicalHeads renders a role list deterministically.
func canonicalHeads(heads []Head) string {
	var b strings.Builder
	for i, h := range heads {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%d:%d:%s", h.Layer, h.Head, core.CanonicalFloat(h.Score))
	}
	return b.String()
}

// validateRoleList enforces role tagging and canonical ordering.
func validateRoleList(role Role, heads []Head) error {
	for i, h := range heads {
		if err := h.validate(); err != nil {
			return fmt.Errorf("role %s head %d: %v", role, i, err)
		}
		if h.Role != role {
			return fmt.Errorf("role %s head %d tagged %s", role, i, h.Role)
		}
		if i == 0 {
			continue
		}
		prev := heads[i-1]
		if h.Score > prev.Score {
			return fmt.Errorf("role %s heads out of order at %d: score %f after %f",
				role, i, h.Score, prev.Score)
		}
		if h.Score == prev.Score && !prev.Ref().Less(h.Ref()) {
			return fmt.Errorf("role %s tie at %d not ordered by (layer, head)", role, i)
		}
	}
	return nil
}

// checkDisjoint rejects any overlap between primary and backup name movers.
func checkDisjoint(primary, backup []Head) error {
	if len(primary) == 0 || len(backup) == 0 {
		return nil
	}
	seen := make(map[HeadRef]bool, len(primary))
	for _, h := range primary {
		seen[h.Ref()] = true
	}
	for _, h := range backup {
		if seen[h.Ref()] {
			return fmt.Errorf("head %s classified as both name mover and backup", h.Ref())
		}
	}
	return nil
}

// clip01 clamps v into [0, 1].
func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SortHeads orders a candidate list canonically: score descending,
// ties by (layer, head) ascending. Classification and tests share it.
func SortHeads(heads []Head) {
	sort.SliceStable(heads, func(i, j int) bool {
		if heads[i].Score != heads[j].Score {
			return heads[i].Score > heads[j].Score
		}
		return heads[i].Ref().Less(heads[j].Ref())
	})
}
