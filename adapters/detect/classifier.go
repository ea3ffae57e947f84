package detect

import (
	"circuitscope/domain/ioi"
)

// Classify turns scored candidates into per-role head lists: restrict to
// the role's layer range when configured, keep scores at or above the
// role threshold, sort score descending with (layer, head) tie-break,
// truncate to top-K. An empty role list is a valid outcome, not an
// error. Backup name movers run as a second pass over candidates not
// already selected as primary name movers.
func Classify(cands []Candidate, cfg ioi.DetectionConfig) (map[ioi.Role][]ioi.Head, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	byRole := make(map[ioi.Role][]ioi.Head, len(ioi.AllRoles()))
	for _, role := range ioi.AllRoles() {
		if role == ioi.RoleBackupNameMover {
			continue
		}
		heads, err := selectRole(cands, role, cfg, nil)
		if err != nil {
			return nil, err
		}
		byRole[role] = heads
	}

	exclude := make(map[ioi.HeadRef]bool, len(byRole[ioi.RoleNameMover]))
	for _, h := range byRole[ioi.RoleNameMover] {
		exclude[h.Ref()] = true
	}
	backups, err := selectRole(cands, ioi.RoleBackupNameMover, cfg, exclude)
	if err != nil {
		return nil, err
	}
	byRole[ioi.RoleBackupNameMover] = backups

	return byRole, nil
}

// selectRole filters, orders, and truncates candidates for one role.
func selectRole(cands []Candidate, role ioi.Role, cfg ioi.DetectionConfig, exclude map[ioi.HeadRef]bool) ([]ioi.Head, error) {
	layerRange, restricted := cfg.RangeFor(role)
	threshold := cfg.Threshold(role)

	heads := make([]ioi.Head, 0, len(cands))
	for _, cand := range cands {
		if restricted && !layerRange.Contains(cand.Layer) {
			continue
		}
		if exclude[cand.Ref()] {
			continue
		}
		score := cand.Score(role)
		if score < threshold {
			continue
		}

		head, err := ioi.NewHead(cand.Layer, cand.Head, role, score, copyMetrics(cand.Metrics[role]))
		if err != nil {
			return nil, err
		}
		heads = append(heads, head)
	}

	ioi.SortHeads(heads)
	if len(heads) > cfg.TopK {
		heads = heads[:cfg.TopK]
	}
	return heads, nil
}

// copyMetrics decouples a head's metric map from the shared candidate.
func copyMetrics(m map[string]float64) map[string]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
