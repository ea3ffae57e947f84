package detect

import (
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"circuitscope/domain/attention"
	"circuitscope/domain/ioi"
)

// Candidate carries one (layer, head) pair with its score under every
// role signature, plus the raw masses behind each score.
type Candidate struct {
	Layer   int                             `json:"layer"`
	Head    int                             `json:"head"`
	Scores  map[ioi.Role]float64            `json:"scores"`
	Metrics map[ioi.Role]map[string]float64 `json:"metrics,omitempty"`
}

// Ref returns the candidate's (layer, head) position.
func (c Candidate) Ref() ioi.HeadRef {
	return ioi.HeadRef{Layer: c.Layer, Head: c.Head}
}

// Score returns the candidate's score under one role signature.
func (c Candidate) Score(role ioi.Role) float64 {
	return c.Scores[role]
}

// RoleScorer measures how strongly one head's attention matrix matches a
// circuit role signature. Scores are >= 0; higher is a stronger match.
type RoleScorer interface {
	Role() ioi.Role
	Describe() string
	Score(p attention.Pattern, head int, sent *ioi.Sentence) (float64, map[string]float64)
}

// DefaultScorers returns one scorer per role, in canonical role order.
func DefaultScorers() []RoleScorer {
	return []RoleScorer{
		NewNameMoverScorer(),
		NewSInhibitionScorer(),
		NewDuplicateTokenScorer(),
		NewPreviousTokenScorer(),
		NewBackupNameMoverScorer(),
	}
}

// NameMoverScorer detects heads that copy the indirect object's name to
// the final position: strong end->IO attention in excess of end->subject
// attention.
type NameMoverScorer struct{}

// NewNameMoverScorer creates a name-mover scorer
func NewNameMoverScorer() *NameMoverScorer {
	return &NameMoverScorer{}
}

// Role returns the role this scorer measures
func (s *NameMoverScorer) Role() ioi.Role {
	return ioi.RoleNameMover
}

// Describe returns a human-readable description
func (s *NameMoverScorer) Describe() string {
	return "Detects heads moving the indirect object name to the final position"
}

// Score computes end->IO attention minus mean end->subject attention,
// clipped at zero.
func (s *NameMoverScorer) Score(p attention.Pattern, head int, sent *ioi.Sentence) (float64, map[string]float64) {
	return nameMoverSignal(p, head, sent)
}

// SInhibitionScorer detects heads that attend from the final position to
// the duplicated subject, suppressing it as a prediction.
type SInhibitionScorer struct{}

// NewSInhibitionScorer creates an s-inhibition scorer
func NewSInhibitionScorer() *SInhibitionScorer {
	return &SInhibitionScorer{}
}

// Role returns the role this scorer measures
func (s *SInhibitionScorer) Role() ioi.Role {
	return ioi.RoleSInhibition
}

// Describe returns a human-readable description
func (s *SInhibitionScorer) Describe() string {
	return "Detects heads attending from the final position to the duplicated subject"
}

// Score reads the end->S2 attention mass directly.
func (s *SInhibitionScorer) Score(p attention.Pattern, head int, sent *ioi.Sentence) (float64, map[string]float64) {
	mass := p.Mass(head, sent.EndPosition, sent.S2Position)
	return mass, map[string]float64{
		"end_to_s2_attention": mass,
		"uniform_p_value":     uniformExceedance(mass, p.SeqLen()),
	}
}

// DuplicateTokenScorer detects heads that notice the second subject
// occurrence pointing back at the first.
type DuplicateTokenScorer struct{}

// NewDuplicateTokenScorer creates a duplicate-token scorer
func NewDuplicateTokenScorer() *DuplicateTokenScorer {
	return &DuplicateTokenScorer{}
}

// Role returns the role this scorer measures
func (s *DuplicateTokenScorer) Role() ioi.Role {
	return ioi.RoleDuplicateToken
}

// Describe returns a human-readable description
func (s *DuplicateTokenScorer) Describe() string {
	return "Detects heads attending from the repeated subject back to its first occurrence"
}

// Score reads the S2->S1 attention mass directly.
func (s *DuplicateTokenScorer) Score(p attention.Pattern, head int, sent *ioi.Sentence) (float64, map[string]float64) {
	mass := p.Mass(head, sent.S2Position, sent.S1Position())
	return mass, map[string]float64{
		"s2_to_s1_attention": mass,
		"uniform_p_value":    uniformExceedance(mass, p.SeqLen()),
	}
}

// PreviousTokenScorer detects heads that attend uniformly to the
// immediately preceding position, a positional signature independent of
// the sentence's name structure.
type PreviousTokenScorer struct{}

// NewPreviousTokenScorer creates a previous-token scorer
func NewPreviousTokenScorer() *PreviousTokenScorer {
	return &PreviousTokenScorer{}
}

// Role returns the role this scorer measures
func (s *PreviousTokenScorer) Role() ioi.Role {
	return ioi.RolePreviousToken
}

// Describe returns a human-readable description
func (s *PreviousTokenScorer) Describe() string {
	return "Detects heads attending from each position to its immediate predecessor"
}

// Score averages the i->i-1 attention mass over all positions past the first.
func (s *PreviousTokenScorer) Score(p attention.Pattern, head int, sent *ioi.Sentence) (float64, map[string]float64) {
	seq := p.SeqLen()
	if seq < 2 {
		return 0, map[string]float64{"prev_token_mean": 0}
	}

	masses := make([]float64, 0, seq-1)
	for i := 1; i < seq; i++ {
		masses = append(masses, p.Mass(head, i, i-1))
	}
	mean, err := stats.Mean(masses)
	if err != nil {
		mean = 0
	}

	return mean, map[string]float64{"prev_token_mean": mean}
}

// BackupNameMoverScorer measures the same signature as the name-mover
// scorer. Backup heads are the ones matching it without being selected
// as primary name movers; that exclusion happens in classification, not
// here.
type BackupNameMoverScorer struct{}

// NewBackupNameMoverScorer creates a backup name-mover scorer
func NewBackupNameMoverScorer() *BackupNameMoverScorer {
	return &BackupNameMoverScorer{}
}

// Role returns the role this scorer measures
func (s *BackupNameMoverScorer) Role() ioi.Role {
	return ioi.RoleBackupNameMover
}

// Describe returns a human-readable description
func (s *BackupNameMoverScorer) Describe() string {
	return "Detects secondary name-moving heads that activate when primary name movers are ablated"
}

// Score computes the name-mover signature; classification removes heads
// already selected as primary name movers.
func (s *BackupNameMoverScorer) Score(p attention.Pattern, head int, sent *ioi.Sentence) (float64, map[string]float64) {
	return nameMoverSignal(p, head, sent)
}

// nameMoverSignal computes the shared name-mover quantity: attention
// from the end position to the IO name, minus the mean attention from
// the end position to the subject occurrences, clipped at zero.
func nameMoverSignal(p attention.Pattern, head int, sent *ioi.Sentence) (float64, map[string]float64) {
	ioMass := p.Mass(head, sent.EndPosition, sent.IOPosition)

	subjectMasses := make([]float64, 0, len(sent.SubjectPositions))
	for _, pos := range sent.SubjectPositions {
		subjectMasses = append(subjectMasses, p.Mass(head, sent.EndPosition, pos))
	}
	subjectMean, err := stats.Mean(subjectMasses)
	if err != nil {
		subjectMean = 0
	}

	score := ioMass - subjectMean
	if score < 0 {
		score = 0
	}

	return score, map[string]float64{
		"end_to_io_attention":      ioMass,
		"end_to_subject_attention": subjectMean,
		"uniform_p_value":          uniformExceedance(ioMass, p.SeqLen()),
	}
}

// uniformExceedance is the probability that a single entry of a
// uniform-random row-stochastic attention row of length seq reaches at
// least the observed mass. One entry of a flat Dirichlet row follows
// Beta(1, seq-1), so this is its survival function at the observation.
func uniformExceedance(mass float64, seq int) float64 {
	if seq < 2 {
		return 1.0
	}
	if mass < 0 {
		mass = 0
	} else if mass > 1 {
		mass = 1
	}
	dist := distuv.Beta{Alpha: 1, Beta: float64(seq - 1)}
	return dist.Survival(mass)
}
