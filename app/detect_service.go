package app

import (
	"context"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"

	"circuitscope/adapters/detect"
	"circuitscope/domain/attention"
	"circuitscope/domain/core"
	"circuitscope/domain/ioi"
	"circuitscope/internal"
	"circuitscope/internal/errors"
	"circuitscope/ports"
)

// DetectService orchestrates one detection pass: structural validation,
// concurrent head scoring, role classification, circuit assembly.
type DetectService struct {
	engine *detect.Engine
	model  core.ModelKind
	log    *internal.Logger
}

var _ ports.Detector = (*DetectService)(nil)

// RoleStats summarizes one role's candidate field for a run.
type RoleStats struct {
	Candidates int     `json:"candidates"` // Pool inside the role's layer range
	Classified int     `json:"classified"` // Heads kept after threshold and top-K
	TopScore   float64 `json:"top_score"`
	MeanScore  float64 `json:"mean_score"`
}

// Report is the audit record of one detection run.
type Report struct {
	RunID            core.RunID              `json:"run_id"`
	Model            core.ModelKind          `json:"model"`
	Fingerprint      core.CircuitFingerprint `json:"fingerprint"`
	Layers           int                     `json:"layers"`
	SeqLen           int                     `json:"seq_len"`
	CandidatesScored int                     `json:"candidates_scored"`
	HeadsClassified  int                     `json:"heads_classified"`
	ValidityScore    float64                 `json:"validity_score"`
	RoleStats        map[ioi.Role]RoleStats  `json:"role_stats"`
	RuntimeMs        int64                   `json:"runtime_ms"`
	CreatedAt        core.Timestamp          `json:"created_at"`
}

// NewDetectService creates a detection service for one model kind. A nil
// engine falls back to the default worker budget.
func NewDetectService(model core.ModelKind, engine *detect.Engine) *DetectService {
	if engine == nil {
		engine = detect.NewEngine()
	}
	return &DetectService{
		engine: engine,
		model:  model,
		log:    internal.DefaultLogger.Named("detect"),
	}
}

// Model returns the model kind this service attributes circuits to.
func (s *DetectService) Model() core.ModelKind {
	return s.model
}

// Detect scores every head, classifies roles, and assembles the circuit.
func (s *DetectService) Detect(ctx context.Context, attn attention.Map, sentence *ioi.Sentence, cfg ioi.DetectionConfig) (*ioi.Circuit, error) {
	circuit, _, err := s.runDetection(ctx, attn, sentence, cfg)
	if err != nil {
		return nil, err
	}
	s.log.Info("Detection over %d layers: %d heads classified, validity %.3f",
		len(attn), circuit.TotalHeads(), circuit.ValidityScore)
	return circuit, nil
}

// DetectWithReport runs Detect and returns the per-run audit record
// alongside the circuit.
func (s *DetectService) DetectWithReport(ctx context.Context, attn attention.Map, sentence *ioi.Sentence, cfg ioi.DetectionConfig) (*ioi.Circuit, *Report, error) {
	startTime := time.Now()
	runID := core.NewRunID()

	circuit, cands, err := s.runDetection(ctx, attn, sentence, cfg)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{
		RunID:            runID,
		Model:            s.model,
		Fingerprint:      circuit.Fingerprint(),
		Layers:           len(attn),
		SeqLen:           attn.SeqLen(),
		CandidatesScored: len(cands),
		HeadsClassified:  circuit.TotalHeads(),
		ValidityScore:    circuit.ValidityScore,
		RoleStats:        buildRoleStats(circuit, cands, cfg),
		RuntimeMs:        time.Since(startTime).Milliseconds(),
		CreatedAt:        core.Now(),
	}

	s.log.Info("Run %s: %d candidates over %d layers, %d heads classified, validity %.3f in %dms",
		runID, report.CandidatesScored, report.Layers, report.HeadsClassified,
		report.ValidityScore, report.RuntimeMs)

	return circuit, report, nil
}

// DetectFromSource collects attention through the instrumentation port,
// then detects. The source must instrument the service's model kind.
func (s *DetectService) DetectFromSource(ctx context.Context, src ports.AttentionSource, tokenIDs []int, sentence *ioi.Sentence, cfg ioi.DetectionConfig) (*ioi.Circuit, error) {
	if src == nil {
		return nil, fmt.Errorf("attention source must not be nil")
	}
	if src.ModelKind() != s.model {
		return nil, fmt.Errorf("attention source instruments %q, service detects %q",
			src.ModelKind(), s.model)
	}

	attn, err := src.CollectAttention(ctx, tokenIDs)
	if err != nil {
		return nil, errors.SourceError(string(src.ModelKind()), err)
	}

	return s.Detect(ctx, attn, sentence, cfg)
}

// runDetection is the shared scoring -> classification -> assembly path.
func (s *DetectService) runDetection(ctx context.Context, attn attention.Map, sentence *ioi.Sentence, cfg ioi.DetectionConfig) (*ioi.Circuit, []detect.Candidate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	cands, err := s.engine.ScoreAll(ctx, attn, sentence)
	if err != nil {
		return nil, nil, fmt.Errorf("scoring attention heads: %w", err)
	}

	byRole, err := detect.Classify(cands, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("classifying candidates: %w", err)
	}
	for _, role := range ioi.AllRoles() {
		s.log.Debug("Role %s: %d heads classified", role, len(byRole[role]))
	}

	circuit, err := ioi.Assemble(sentence, s.model, byRole)
	if err != nil {
		return nil, nil, fmt.Errorf("assembling circuit: %w", err)
	}

	return circuit, cands, nil
}

// buildRoleStats computes the per-role candidate summary for a report.
func buildRoleStats(circuit *ioi.Circuit, cands []detect.Candidate, cfg ioi.DetectionConfig) map[ioi.Role]RoleStats {
	out := make(map[ioi.Role]RoleStats, len(ioi.AllRoles()))
	for _, role := range ioi.AllRoles() {
		layerRange, restricted := cfg.RangeFor(role)

		pool := 0
		for _, cand := range cands {
			if restricted && !layerRange.Contains(cand.Layer) {
				continue
			}
			pool++
		}

		heads := circuit.HeadsFor(role)
		rs := RoleStats{Candidates: pool, Classified: len(heads)}
		if len(heads) > 0 {
			scores := make([]float64, len(heads))
			for i, h := range heads {
				scores[i] = h.Score
			}
			rs.TopScore = heads[0].Score
			if mean, err := stats.Mean(scores); err == nil {
				rs.MeanScore = mean
			}
		}
		out[role] = rs
	}
	return out
}
