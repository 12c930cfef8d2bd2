package quality

import "math"

// RMSE is the root mean squared error of every generation's score against the label.
type RMSE struct {
	Averaging
}

// NewRMSE returns an empty RMSE accumulator.
func NewRMSE() *RMSE { return &RMSE{} }

func (m *RMSE) Name() string { return "RMSE" }

func (m *RMSE) ConsumeRow(row Row) error {
	sq := make([]float64, len(row.Scores))
	for i, s := range row.Scores {
		d := s - row.Label
		sq[i] = d * d
	}
	return m.AddEntry(sq)
}

func (m *RMSE) Flush() error { return nil }

// Result is the square root of the averaged squared errors.
func (m *RMSE) Result() []float64 {
	out := m.Averaging.Result()
	for i, v := range out {
		out[i] = math.Sqrt(v)
	}
	return out
}

// Accuracy is the fraction of rows whose score falls on the same side of 0.5 as the label.
type Accuracy struct {
	Averaging
}

// NewAccuracy returns an empty Accuracy accumulator.
func NewAccuracy() *Accuracy { return &Accuracy{} }

func (m *Accuracy) Name() string { return "Accuracy" }

func (m *Accuracy) ConsumeRow(row Row) error {
	positive := row.Label > 0.5
	hits := make([]float64, len(row.Scores))
	for i, s := range row.Scores {
		if (s > 0.5) == positive {
			hits[i] = 1
		}
	}
	return m.AddEntry(hits)
}

func (m *Accuracy) Flush() error { return nil }
