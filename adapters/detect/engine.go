// Package detect scores attention heads against the five IOI role
// signatures and classifies them into circuit roles.
package detect

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"

	"circuitscope/domain/attention"
	"circuitscope/domain/core"
	"circuitscope/domain/ioi"
)

// Engine runs every role scorer over every head of an attention map.
// Layers are scored concurrently under a weighted semaphore; results
// are merged in ascending layer order, so output is identical whatever
// the worker count.
type Engine struct {
	scorers []RoleScorer
	workers int64
}

// NewEngine creates an engine with the default scorers and one worker
// per CPU.
func NewEngine() *Engine {
	return NewEngineWithWorkers(runtime.NumCPU())
}

// NewEngineWithWorkers creates an engine with a fixed worker budget.
// Counts below 1 are raised to 1.
func NewEngineWithWorkers(workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		scorers: DefaultScorers(),
		workers: int64(workers),
	}
}

// Workers returns the engine's concurrent layer budget.
func (e *Engine) Workers() int {
	return int(e.workers)
}

// ScoreAll validates the inputs and scores every (layer, head) pair,
// returning candidates in ascending (layer, head) order.
func (e *Engine) ScoreAll(ctx context.Context, attn attention.Map, sent *ioi.Sentence) ([]Candidate, error) {
	if sent == nil {
		return nil, core.NewSentenceSpecError("sentence", "must not be nil")
	}
	if err := sent.Validate(); err != nil {
		return nil, err
	}
	if err := attn.Validate(); err != nil {
		return nil, err
	}

	layers := attn.Layers()
	slots := make([][]Candidate, len(layers))

	type layerResult struct {
		index int
		cands []Candidate
		err   error
	}

	// Buffered to layer count so no sender blocks after an early error.
	resultChan := make(chan layerResult, len(layers))
	sem := semaphore.NewWeighted(e.workers)

	for i, layer := range layers {
		go func(idx, layer int) {
			if err := sem.Acquire(ctx, 1); err != nil {
				resultChan <- layerResult{index: idx, err: err}
				return
			}
			defer sem.Release(1)

			resultChan <- layerResult{index: idx, cands: e.scoreLayer(attn[layer], layer, sent)}
		}(i, layer)
	}

	var firstErr error
	for range layers {
		res := <-resultChan
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		slots[res.index] = res.cands
	}
	if firstErr != nil {
		return nil, firstErr
	}

	total := 0
	for _, cands := range slots {
		total += len(cands)
	}
	merged := make([]Candidate, 0, total)
	for _, cands := range slots {
		merged = append(merged, cands...)
	}
	return merged, nil
}

// scoreLayer runs every scorer over every head of one layer's tensor.
func (e *Engine) scoreLayer(p attention.Pattern, layer int, sent *ioi.Sentence) []Candidate {
	cands := make([]Candidate, 0, p.Heads())
	for h := 0; h < p.Heads(); h++ {
		scores := make(map[ioi.Role]float64, len(e.scorers))
		metrics := make(map[ioi.Role]map[string]float64, len(e.scorers))
		for _, scorer := range e.scorers {
			score, m := scorer.Score(p, h, sent)
			scores[scorer.Role()] = score
			metrics[scorer.Role()] = m
		}
		cands = append(cands, Candidate{
			Layer:   layer,
			Head:    h,
			Scores:  scores,
			Metrics: metrics,
		})
	}
	return cands
}
