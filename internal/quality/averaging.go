package quality

import (
	"math"

	"treeval/internal/common"
)

// Averaging keeps a per-position running mean over equally sized vectors. It is the
// building block embedded by the concrete metrics.
type Averaging struct {
	numerator   []float64
	denominator []float64
	sized       bool
}

// AddEntry adds values to the running sums. The first entry fixes the vector length for
// the rest of the run.
func (a *Averaging) AddEntry(values []float64) error {
	if !a.sized {
		a.numerator = make([]float64, len(values))
		a.denominator = make([]float64, len(values))
		a.sized = true
	}
	if len(values) != len(a.numerator) {
		return common.Invariantf("score vector length %d, expected %d", len(values), len(a.numerator))
	}
	for i, v := range values {
		a.numerator[i] += v
		a.denominator[i]++
	}
	return nil
}

// Entries returns how many vectors have been added.
func (a *Averaging) Entries() int {
	if len(a.denominator) == 0 {
		return 0
	}
	return int(a.denominator[0])
}

// Result returns the elementwise mean. It is empty until the first entry.
func (a *Averaging) Result() []float64 {
	out := make([]float64, len(a.numerator))
	for i := range a.numerator {
		if a.denominator[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = a.numerator[i] / a.denominator[i]
	}
	return out
}

// Final returns the last position of Result, or NaN when there is none.
func (a *Averaging) Final() float64 {
	return last(a.Result())
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}
