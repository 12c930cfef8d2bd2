// Package quality holds the streaming quality metrics of an evaluation run.
//
// Every metric follows the same contract: rows are consumed one at a time while the run
// is accumulating, Flush is called once at end of stream, and Result may then be read any
// number of times. Results hold one value per tracked generation.
package quality

// Row is one scored input record.
type Row struct {
	Label   float64
	QueryID string
	Scores  []float64
}

// Metric is a streaming quality measure over scored rows.
type Metric interface {
	// Name is the display name used in the summary line, e.g. "RMSE" or "NDCG@10".
	Name() string
	ConsumeRow(row Row) error
	// Flush completes any buffered work. It must be called once after the last row.
	Flush() error
	// Result returns the per-generation values; empty if nothing was consumed.
	Result() []float64
}

// QueryMetric is a ranking metric fed one complete query group at a time.
// scoresByGeneration[g][d] is the generation-g score of document d.
type QueryMetric interface {
	Name() string
	ConsumeQuery(labels []float64, scoresByGeneration [][]float64) error
	Result() []float64
}

// Final returns the last generation's value of m, or NaN when m has no result.
func Final(m Metric) float64 {
	return last(m.Result())
}
