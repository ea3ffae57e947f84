package testkit

import (
	"fmt"
	"math/rand"

	"circuitscope/domain/attention"
	"circuitscope/domain/core"
	"circuitscope/domain/ioi"
)

// Fixture is one complete synthetic detection scenario: a full causal
// attention recording, the sentence it was built around, and the heads
// that were planted into it.
type Fixture struct {
	Attention attention.Map
	Sentence  *ioi.Sentence
	Planted   ioi.RoleHeads
}

type Config struct {
	Layers int
	Heads  int
	Seed   int64

	// Concentration of the symmetric Dirichlet the background rows are
	// drawn from. Higher values hug the uniform row more tightly.
	Concentration int

	// PrimarySignal is the mass a planted name-mover, s-inhibition or
	// duplicate-token head puts on its target key. BackupSignal is the
	// attenuated name-mover mass for backup heads, sized to clear the
	// backup threshold but not the primary one.
	PrimarySignal float64
	BackupSignal  float64

	// PrevTokenSignal is the per-query mass a previous-token head moves
	// one position back.
	PrevTokenSignal float64

	// SubjectLeak is the explicit residual each subject position keeps
	// in a name-mover row, so the signal-minus-leak score is exact.
	SubjectLeak float64

	// Planted names the heads that carry each role's signature. Heads
	// not listed stay pure background.
	Planted ioi.RoleHeads
}

// DefaultConfig returns a gpt2-small shaped grid with no planted heads.
func DefaultConfig() Config {
	return Config{
		Layers:          12,
		Heads:           12,
		Seed:            42,
		Concentration:   50,
		PrimarySignal:   0.6,
		BackupSignal:    0.26,
		PrevTokenSignal: 0.8,
		SubjectLeak:     0.02,
	}
}

// GPT2Config plants the published gpt2-small circuit heads into the
// default grid.
func GPT2Config() Config {
	cfg := DefaultConfig()
	heads, err := ioi.DefaultKnownHeads().Lookup(core.ModelGPT2)
	if err != nil {
		panic(err) // the shipped table always carries gpt2
	}
	cfg.Planted = heads
	return cfg
}

// Prompt returns the canonical IOI example with GPT-2 BPE token ids:
// "When Mary and John went to the store, John gave a drink to". The
// IO prediction is read off at the final " to".
func Prompt() *ioi.Sentence {
	s := ioi.MustFromPositions(
		[]int{2215, 5335, 290, 1757, 1816, 284, 262, 3650, 11, 1757, 2921, 257, 4144, 284},
		[]string{"When", " Mary", " and", " John", " went", " to", " the", " store", ",", " John", " gave", " a", " drink", " to"},
		"John", "Mary",
		[]int{3, 9}, 1, 9, 13,
	)
	s.Text = "When Mary and John went to the store, John gave a drink to"
	return s
}

// Generate builds a synthetic attention map around the canonical
// prompt. Every row is causal; unplanted rows are Dirichlet draws near
// uniform, planted rows carry exact role signatures so score margins
// are deterministic regardless of seed.
func Generate(cfg Config) (*Fixture, error) {
	if cfg.Layers <= 0 {
		return nil, fmt.Errorf("layers must be > 0")
	}
	if cfg.Heads <= 0 {
		return nil, fmt.Errorf("heads must be > 0")
	}
	if cfg.Concentration < 1 {
		return nil, fmt.Errorf("concentration must be >= 1")
	}
	for name, v := range map[string]float64{
		"primary signal":    cfg.PrimarySignal,
		"backup signal":     cfg.BackupSignal,
		"prev token signal": cfg.PrevTokenSignal,
		"subject leak":      cfg.SubjectLeak,
	} {
		if v <= 0 || v >= 1 {
			return nil, fmt.Errorf("%s must be in (0, 1)", name)
		}
	}

	sent := Prompt()
	leakBudget := cfg.SubjectLeak * float64(len(sent.SubjectPositions))
	if cfg.PrimarySignal+leakBudget >= 1 {
		return nil, fmt.Errorf("primary signal plus subject leak exceeds the row budget")
	}
	if cfg.BackupSignal+leakBudget >= 1 {
		return nil, fmt.Errorf("backup signal plus subject leak exceeds the row budget")
	}

	for role, refs := range cfg.Planted {
		if !role.Valid() {
			return nil, fmt.Errorf("planted heads for unknown role %q", role)
		}
		for _, ref := range refs {
			if ref.Layer < 0 || ref.Layer >= cfg.Layers || ref.Head < 0 || ref.Head >= cfg.Heads {
				return nil, fmt.Errorf("planted %s outside the %dx%d grid", ref, cfg.Layers, cfg.Heads)
			}
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	seq := sent.SeqLen()

	m := make(attention.Map, cfg.Layers)
	for layer := 0; layer < cfg.Layers; layer++ {
		data := make([][][]float64, cfg.Heads)
		for h := 0; h < cfg.Heads; h++ {
			rows := make([][]float64, seq)
			for q := 0; q < seq; q++ {
				rows[q] = causalRow(rng, seq, q, cfg.Concentration)
			}
			data[h] = rows
		}
		m[layer] = attention.NewPattern(data)
	}

	// SIGNAL 1: name movers and their attenuated backups. The end query
	// concentrates mass on the indirect object while the subjects keep
	// an explicit residual, so the score reads signal minus leak.
	for _, ref := range cfg.Planted[ioi.RoleNameMover] {
		if err := plantNameMover(m, ref, sent, cfg.PrimarySignal, cfg.SubjectLeak); err != nil {
			return nil, err
		}
	}
	for _, ref := range cfg.Planted[ioi.RoleBackupNameMover] {
		if err := plantNameMover(m, ref, sent, cfg.BackupSignal, cfg.SubjectLeak); err != nil {
			return nil, err
		}
	}

	// SIGNAL 2: s-inhibition heads attend from end to the second
	// subject occurrence.
	for _, ref := range cfg.Planted[ioi.RoleSInhibition] {
		if err := plantSingle(m, ref, sent.EndPosition, sent.S2Position, cfg.PrimarySignal, seq); err != nil {
			return nil, err
		}
	}

	// SIGNAL 3: duplicate-token heads attend from S2 back to S1.
	for _, ref := range cfg.Planted[ioi.RoleDuplicateToken] {
		if err := plantSingle(m, ref, sent.S2Position, sent.S1Position(), cfg.PrimarySignal, seq); err != nil {
			return nil, err
		}
	}

	// SIGNAL 4: previous-token heads shift every query one position
	// back.
	for _, ref := range cfg.Planted[ioi.RolePreviousToken] {
		for q := 1; q < seq; q++ {
			if err := plantSingle(m, ref, q, q-1, cfg.PrevTokenSignal, seq); err != nil {
				return nil, err
			}
		}
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("generated map failed validation: %w", err)
	}

	return &Fixture{Attention: m, Sentence: sent, Planted: cfg.Planted}, nil
}

// causalRow draws one symmetric Dirichlet row over keys [0, q] and
// zero-pads the masked future positions. A Gamma draw with integer
// shape is a sum of that many unit exponentials, so normalizing
// per-key Erlang sums yields an exact Dirichlet sample.
func causalRow(rng *rand.Rand, seq, query, concentration int) []float64 {
	row := make([]float64, seq)
	var total float64
	for k := 0; k <= query; k++ {
		var mass float64
		for d := 0; d < concentration; d++ {
			mass += rng.ExpFloat64()
		}
		row[k] = mass
		total += mass
	}
	for k := 0; k <= query; k++ {
		row[k] /= total
	}
	return row
}

// pinnedRow places exact masses on chosen keys and spreads the rest of
// the budget uniformly across the remaining unmasked keys.
func pinnedRow(seq, query int, pinned map[int]float64) ([]float64, error) {
	var total float64
	for k, mass := range pinned {
		if k < 0 || k > query {
			return nil, fmt.Errorf("pinned key %d outside the causal window [0, %d]", k, query)
		}
		total += mass
	}
	free := query + 1 - len(pinned)
	if free < 1 || total >= 1 {
		return nil, fmt.Errorf("pinned mass %.3f over %d keys leaves no budget for query %d", total, len(pinned), query)
	}
	rest := (1 - total) / float64(free)

	row := make([]float64, seq)
	for k := 0; k <= query; k++ {
		row[k] = rest
	}
	for k, mass := range pinned {
		row[k] = mass
	}
	return row, nil
}

// plantNameMover overwrites the end-query row of one head with the
// name-mover signature.
func plantNameMover(m attention.Map, ref ioi.HeadRef, sent *ioi.Sentence, signal, leak float64) error {
	pinned := map[int]float64{sent.IOPosition: signal}
	for _, s := range sent.SubjectPositions {
		pinned[s] = leak
	}
	row, err := pinnedRow(sent.SeqLen(), sent.EndPosition, pinned)
	if err != nil {
		return fmt.Errorf("planting %s: %w", ref, err)
	}
	m[ref.Layer].Data[ref.Head][sent.EndPosition] = row
	return nil
}

// plantSingle overwrites one query row of one head with a single-key
// signature.
func plantSingle(m attention.Map, ref ioi.HeadRef, query, key int, signal float64, seq int) error {
	row, err := pinnedRow(seq, query, map[int]float64{key: signal})
	if err != nil {
		return fmt.Errorf("planting %s: %w", ref, err)
	}
	m[ref.Layer].Data[ref.Head][query] = row
	return nil
}
