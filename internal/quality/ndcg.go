package quality

import (
	"fmt"
	"math"
	"sort"

	"treeval/internal/common"
)

// NDCG is the query-level normalized discounted cumulative gain, averaged over queries.
type NDCG struct {
	Averaging
	depth int
}

// NewNDCG returns an NDCG accumulator truncating rankings at depth. Depth 0 keeps every document.
func NewNDCG(depth int) *NDCG { return &NDCG{depth: depth} }

// Depth returns the truncation depth.
func (m *NDCG) Depth() int { return m.depth }

func (m *NDCG) Name() string {
	if m.depth > 0 {
		return fmt.Sprintf("NDCG@%d", m.depth)
	}
	return "NDCG"
}

// ConsumeQuery adds one query's per-generation NDCG as a single averaging entry.
// A query whose ideal DCG is 0 contributes its raw DCG.
func (m *NDCG) ConsumeQuery(labels []float64, scoresByGeneration [][]float64) error {
	depth := m.depth
	if depth == 0 || depth > len(labels) {
		depth = len(labels)
	}

	ideal := append([]float64(nil), labels...)
	sort.SliceStable(ideal, func(i, j int) bool { return ideal[i] > ideal[j] })
	idcg := 0.0
	for p := 0; p < depth; p++ {
		idcg += ideal[p] * discount(p)
	}

	ndcgs := make([]float64, len(scoresByGeneration))
	for g, scores := range scoresByGeneration {
		if len(scores) != len(labels) {
			return common.Invariantf("generation %d has %d scores for %d documents", g, len(scores), len(labels))
		}
		dcg := dcg(labels, scores, depth)
		if idcg == 0 {
			ndcgs[g] = dcg
			continue
		}
		ndcgs[g] = dcg / idcg
	}
	return m.AddEntry(ndcgs)
}

// dcg ranks documents by descending score, ties kept in input order.
func dcg(labels, scores []float64, depth int) float64 {
	perm := make([]int, len(scores))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool { return scores[perm[i]] > scores[perm[j]] })

	sum := 0.0
	for p := 0; p < depth; p++ {
		sum += labels[perm[p]] * discount(p)
	}
	return sum
}

func discount(pos int) float64 {
	return 1 / math.Log2(2+float64(pos))
}
