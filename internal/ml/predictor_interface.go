// Package ml evaluates tree ensembles: a deterministic root-to-leaf walk per tree and
// the cumulative per-generation scoring of a whole ensemble.
//
// Everything here is a pure function of the loaded ensemble and the feature vector;
// no state is carried from one row to the next.
package ml

// Predictor scores one dense feature vector. The result holds one value per tracked
// generation, or a single final value when generation tracking is off.
type Predictor interface {
	Score(features []float64) ([]float64, error)
}

// Tracer observes every tree walk: the tree index, the branch path taken from the root
// ("L"/"R" per split) and the leaf value reached.
type Tracer interface {
	TraceTree(tree int, path string, value float64)
}

// TracerFunc adapts a plain function to Tracer.
type TracerFunc func(tree int, path string, value float64)

// TraceTree calls f.
func (f TracerFunc) TraceTree(tree int, path string, value float64) { f(tree, path, value) }
