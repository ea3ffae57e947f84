package ioi

import (
	"fmt"
	"sort"
	"strings"

	"circuitscope/domain/core"
)

// Tokenizer converts text into model token IDs and their decoded string
// forms. Implementations belong to the instrumentation layer; this
// engine only consumes the result.
type Tokenizer interface {
	Tokenize(text string) (ids []int, tokens []string, err error)
}

// Sentence pins the structural positions of one IOI example:
// "When Mary and John went to the store, John gave a drink to Mary".
//
// INVARIANTS:
// - TokenIDs and Tokens are non-empty and equal length
// - SubjectPositions is non-empty, strictly ascending, all in range
// - S2Position is a member of SubjectPositions
// - EndPosition >= max(SubjectPositions)
// - IOPosition is in range and not a subject position
type Sentence struct {
	Text             string   `json:"text,omitempty"`
	TokenIDs         []int    `json:"token_ids"`
	Tokens           []string `json:"tokens"`
	SubjectName      string   `json:"subject_name"`
	IOName           string   `json:"io_name"`
	SubjectPositions []int    `json:"subject_positions"`
	IOPosition       int      `json:"io_position"`
	S2Position       int      `json:"s2_position"`
	EndPosition      int      `json:"end_position"`
}

// FromPositions creates a sentence from pre-computed positions with validation
func FromPositions(tokenIDs []int, tokens []string, subjectName, ioName string,
	subjectPositions []int, ioPosition, s2Position, endPosition int) (*Sentence, error) {

	s := &Sentence{
		TokenIDs:         tokenIDs,
		Tokens:           tokens,
		SubjectName:      subjectName,
		IOName:           ioName,
		SubjectPositions: subjectPositions,
		IOPosition:       ioPosition,
		S2Position:       s2Position,
		EndPosition:      endPosition,
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustFromPositions creates a sentence (panics on invalid input)
// Use only in tests and development - production code should handle validation errors
func MustFromPositions(tokenIDs []int, tokens []string, subjectName, ioName string,
	subjectPositions []int, ioPosition, s2Position, endPosition int) *Sentence {

	s, err := FromPositions(tokenIDs, tokens, subjectName, ioName,
		subjectPositions, ioPosition, s2Position, endPosition)
	if err != nil {
		panic(err)
	}
	return s
}

// Parse tokenizes text and locates the IOI positions by token matching.
// The subject must occur at least twice and the indirect object at least
// once; matching is case-insensitive on whitespace-trimmed token strings,
// containment in either direction (BPE pieces rarely equal the bare name).
func Parse(text string, tok Tokenizer, subjectName, ioName string) (*Sentence, error) {
	if strings.EqualFold(strings.TrimSpace(subjectName), strings.TrimSpace(ioName)) {
		return nil, core.NewSentenceSpecError("io_name", "must differ from subject name")
	}

	ids, tokens, err := tok.Tokenize(text)
	if err != nil {
		return nil, fmt.Errorf("%w: tokenize: %v", core.ErrInvalidSentenceSpec, err)
	}
	if len(ids) == 0 {
		return nil, core.NewSentenceSpecError("token_ids", "tokenizer produced no tokens")
	}

	subjectClean := strings.ToLower(strings.TrimSpace(subjectName))
	ioClean := strings.ToLower(strings.TrimSpace(ioName))

	var subjectPositions []int
	ioPosition := -1
	for i, t := range tokens {
		tokenClean := strings.ToLower(strings.TrimSpace(t))
		if tokenClean == "" {
			continue
		}
		if strings.Contains(tokenClean, subjectClean) || strings.Contains(subjectClean, tokenClean) {
			subjectPositions = append(subjectPositions, i)
		}
		if ioPosition == -1 &&
			(strings.Contains(tokenClean, ioClean) || strings.Contains(ioClean, tokenClean)) {
			ioPosition = i
		}
	}

	if len(subjectPositions) < 2 {
		return nil, core.NewSentenceSpecError("subject_positions",
			fmt.Sprintf("subject %q occurs %d times, need at least 2", subjectName, len(subjectPositions)))
	}
	if ioPosition == -1 {
		return nil, core.NewSentenceSpecError("io_position",
			fmt.Sprintf("indirect object %q not found", ioName))
	}

	s2Position := subjectPositions[len(subjectPositions)-1]
	endPosition := len(ids) - 1

	s, err := FromPositions(ids, tokens, subjectName, ioName,
		subjectPositions, ioPosition, s2Position, endPosition)
	if err != nil {
		return nil, err
	}
	s.Text = text
	return s, nil
}

// SeqLen returns the token count.
func (s *Sentence) SeqLen() int {
	return len(s.TokenIDs)
}

// Validate re-checks the sentence invariants. Constructors already
// enforce them; boundary code revalidates hand-built values.
func (s *Sentence) Validate() error {
	return s.validate()
}

// S1Position returns the first subject occurrence.
func (s *Sentence) S1Position() int {
	return s.SubjectPositions[0]
}

// validate checks all sentence invariants
func (s *Sentence) validate() error {
	n := len(s.TokenIDs)
	if n == 0 {
		return core.NewSentenceSpecError("token_ids", "must be non-empty")
	}
	if len(s.Tokens) != n {
		return core.NewSentenceSpecError("tokens",
			fmt.Sprintf("length %d does not match %d token ids", len(s.Tokens), n))
	}
	if len(s.SubjectPositions) == 0 {
		return core.NewSentenceSpecError("subject_positions", "must be non-empty")
	}
	if !sort.IntsAreSorted(s.SubjectPositions) {
		return core.NewSentenceSpecError("subject_positions", "must be ascending")
	}
	for i, pos := range s.SubjectPositions {
		if pos < 0 || pos >= n {
			return core.NewSentenceSpecError("subject_positions",
				fmt.Sprintf("position %d at index %d not in [0, %d)", pos, i, n))
		}
		if i > 0 && pos == s.SubjectPositions[i-1] {
			return core.NewSentenceSpecError("subject_positions",
				fmt.Sprintf("duplicate position %d", pos))
		}
	}
	if s.IOPosition < 0 || s.IOPosition >= n {
		return core.NewSentenceSpecError("io_position",
			fmt.Sprintf("%d not in [0, %d)", s.IOPosition, n))
	}
	if s.S2Position < 0 || s.S2Position >= n {
		return core.NewSentenceSpecError("s2_position",
			fmt.Sprintf("%d not in [0, %d)", s.S2Position, n))
	}
	if s.EndPosition < 0 || s.EndPosition >= n {
		return core.NewSentenceSpecError("end_position",
			fmt.Sprintf("%d not in [0, %d)", s.EndPosition, n))
	}

	s2Member := false
	for _, pos := range s.SubjectPositions {
		if pos == s.S2Position {
			s2Member = true
		}
		if pos == s.IOPosition {
			return core.NewSentenceSpecError("io_position",
				fmt.Sprintf("%d collides with a subject position", s.IOPosition))
		}
	}
	if !s2Member {
		return core.NewSentenceSpecError("s2_position",
			fmt.Sprintf("%d is not a subject position", s.S2Position))
	}

	maxSubject := s.SubjectPositions[len(s.SubjectPositions)-1]
	if s.EndPosition < maxSubject {
		return core.NewSentenceSpecError("end_position",
			fmt.Sprintf("%d precedes last subject position %d", s.EndPosition, maxSubject))
	}

	return nil
}
