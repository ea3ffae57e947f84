package ioi

import (
	"sort"

	"circuitscope/domain/core"
)

// RoleMetrics carries one role's agreement with the reference table.
type RoleMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// ValidationResult compares a discovered circuit against a reference
// table. Overall figures are macro-averages across roles; a role where
// both the discovered and known sets are empty is excluded from the
// denominator rather than counted as agreement.
type ValidationResult struct {
	Model          core.ModelKind       `json:"model"`
	Precision      float64              `json:"precision"`
	Recall         float64              `json:"recall"`
	F1             float64              `json:"f1"`
	PerRole        map[Role]RoleMetrics `json:"per_role"`
	FalsePositives []HeadRef            `json:"false_positives"` // Discovered but not known, any role
	FalseNegatives []HeadRef            `json:"false_negatives"` // Known but not discovered, any role
}

// ValidateAgainstKnown scores the circuit against the table's entry for
// model. Per-role conventions: precision is 1.0 whenever nothing was
// discovered (no false positives to penalize); recall with an empty
// known set is 1.0 when nothing was discovered and 0.0 otherwise; F1 is
// the harmonic mean, 0 when precision and recall are both 0.
func (c *Circuit) ValidateAgainstKnown(table *KnownHeads, model core.ModelKind) (*ValidationResult, error) {
	known, err := table.Lookup(model)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		Model:          model,
		PerRole:        make(map[Role]RoleMetrics, len(AllRoles())),
		FalsePositives: []HeadRef{},
		FalseNegatives: []HeadRef{},
	}

	fpSet := make(map[HeadRef]bool)
	fnSet := make(map[HeadRef]bool)

	var sumP, sumR, sumF1 float64
	contributing := 0

	for _, role := range AllRoles() {
		discovered := refSet(c.HeadsFor(role))
		reference := make(map[HeadRef]bool, len(known.Heads(role)))
		for _, ref := range known.Heads(role) {
			reference[ref] = true
		}

		intersection := 0
		for ref := range discovered {
			if reference[ref] {
				intersection++
			} else {
				fpSet[ref] = true
			}
		}
		for ref := range reference {
			if !discovered[ref] {
				fnSet[ref] = true
			}
		}

		metrics := roleMetrics(len(discovered), len(reference), intersection)
		result.PerRole[role] = metrics

		if len(discovered) == 0 && len(reference) == 0 {
			continue
		}
		sumP += metrics.Precision
		sumR += metrics.Recall
		sumF1 += metrics.F1
		contributing++
	}

	if contributing == 0 {
		// Nothing expected and nothing found: vacuously perfect.
		result.Precision, result.Recall, result.F1 = 1, 1, 1
	} else {
		n := float64(contributing)
		result.Precision = sumP / n
		result.Recall = sumR / n
		result.F1 = sumF1 / n
	}

	result.FalsePositives = sortedRefs(fpSet)
	result.FalseNegatives = sortedRefs(fnSet)

	return result, nil
}

// roleMetrics applies the empty-set conventions for one role.
func roleMetrics(discovered, known, intersection int) RoleMetrics {
	var m RoleMetrics

	if discovered == 0 {
		m.Precision = 1
	} else {
		m.Precision = float64(intersection) / float64(discovered)
	}

	switch {
	case known > 0:
		m.Recall = float64(intersection) / float64(known)
	case discovered == 0:
		m.Recall = 1
	default:
		m.Recall = 0
	}

	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}

	return m
}

// refSet collects the distinct (layer, head) positions in a role list.
func refSet(heads []Head) map[HeadRef]bool {
	set := make(map[HeadRef]bool, len(heads))
	for _, h := range heads {
		set[h.Ref()] = true
	}
	return set
}

// sortedRefs flattens a ref set into (layer, head) ascending order.
func sortedRefs(set map[HeadRef]bool) []HeadRef {
	refs := make([]HeadRef, 0, len(set))
	for ref := range set {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	return refs
}

// LogitDiff returns logits[ioTokenID] - logits[sTokenID], the strength
// of the model's preference for the indirect object over the subject.
func LogitDiff(logits []float64, ioTokenID, sTokenID int) (float64, error) {
	if ioTokenID < 0 || ioTokenID >= len(logits) {
		return 0, core.NewIndexError("io_token_id", ioTokenID, len(logits))
	}
	if sTokenID < 0 || sTokenID >= len(logits) {
		return 0, core.NewIndexError("s_token_id", sTokenID, len(logits))
	}
	return logits[ioTokenID] - logits[sTokenID], nil
}

// LastPositionLogits extracts the final row of a (seq x vocab) logits
// matrix, the position where the IO prediction is read off.
func LastPositionLogits(rows [][]float64) ([]float64, error) {
	if len(rows) == 0 {
		return nil, core.NewIndexError("last_position", -1, 0)
	}
	return rows[len(rows)-1], nil
}
