package ml

import (
	"math"

	"treeval/internal/common"
	"treeval/internal/model"
)

// ScorerConfig selects how raw tree outputs become a score vector.
type ScorerConfig struct {
	// TrackGenerations keeps every cumulative partial sum instead of only the last one.
	TrackGenerations bool
	// Logistic squashes every retained value through Sigmoid.
	Logistic bool
	// Tracer, when set, observes every tree walk.
	Tracer Tracer
}

// Scorer runs every tree of an ensemble over a feature vector.
type Scorer struct {
	ensemble *model.Ensemble
	cfg      ScorerConfig
}

// NewScorer returns a Scorer over ens. The ensemble must contain at least one tree.
func NewScorer(ens *model.Ensemble, cfg ScorerConfig) (*Scorer, error) {
	if ens == nil || ens.NumTrees() == 0 {
		return nil, common.Configurationf("ensemble has no trees")
	}
	return &Scorer{ensemble: ens, cfg: cfg}, nil
}

// Generations returns the length of every score vector this scorer produces.
func (s *Scorer) Generations() int {
	if s.cfg.TrackGenerations {
		return s.ensemble.NumTrees()
	}
	return 1
}

// RawValues evaluates each tree independently, in ensemble order.
func (s *Scorer) RawValues(features []float64) ([]float64, error) {
	raw := make([]float64, s.ensemble.NumTrees())
	for i := range s.ensemble.Trees {
		v, path, err := walk(&s.ensemble.Trees[i], features, s.cfg.Tracer != nil)
		if err != nil {
			return nil, err
		}
		if s.cfg.Tracer != nil {
			s.cfg.Tracer.TraceTree(i, path, v)
		}
		raw[i] = v
	}
	return raw, nil
}

// Score returns the cumulative sums of the raw tree values (generation g = sum of trees 0..g),
// collapsed to the final sum unless generations are tracked, then optionally squashed.
func (s *Scorer) Score(features []float64) ([]float64, error) {
	scores, err := s.RawValues(features)
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(scores); i++ {
		scores[i] += scores[i-1]
	}
	if !s.cfg.TrackGenerations {
		scores = scores[len(scores)-1:]
	}
	if s.cfg.Logistic {
		for i, v := range scores {
			scores[i] = Sigmoid(v)
		}
	}
	return scores, nil
}

// Sigmoid is e^x / (1 + e^x), computed without overflow for large |x|.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
