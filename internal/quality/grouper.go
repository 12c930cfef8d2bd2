package quality

import "treeval/internal/common"

// QueryGrouper buffers contiguous rows with the same query id and hands each finished
// group to a QueryMetric. Input must be sorted by query id: a repeated id that is not
// contiguous starts a new group.
type QueryGrouper struct {
	metric  QueryMetric
	lastID  string
	labels  []float64
	scores  [][]float64
	flushed int

	// OnFlush, when set, is called with the size of every group handed to the metric.
	OnFlush func(size int)
}

// NewQueryGrouper wraps metric.
func NewQueryGrouper(metric QueryMetric) *QueryGrouper {
	return &QueryGrouper{metric: metric}
}

func (q *QueryGrouper) Name() string { return q.metric.Name() }

// ConsumeRow closes the open group when the query id changes, then buffers the row.
func (q *QueryGrouper) ConsumeRow(row Row) error {
	if row.QueryID != q.lastID {
		if err := q.Flush(); err != nil {
			return err
		}
		q.lastID = row.QueryID
	}
	q.labels = append(q.labels, row.Label)
	q.scores = append(q.scores, row.Scores)
	return nil
}

// Flush hands the open group, if any, to the metric. The grouper never flushes on its
// own at end of stream.
func (q *QueryGrouper) Flush() error {
	if len(q.labels) == 0 {
		return nil
	}

	generations := len(q.scores[0])
	byGeneration := make([][]float64, generations)
	for g := range byGeneration {
		byGeneration[g] = make([]float64, len(q.scores))
	}
	for d, row := range q.scores {
		if len(row) != generations {
			return common.Invariantf("query %q: row %d has %d generations, expected %d", q.lastID, d, len(row), generations)
		}
		for g, s := range row {
			byGeneration[g][d] = s
		}
	}

	size := len(q.labels)
	if err := q.metric.ConsumeQuery(q.labels, byGeneration); err != nil {
		return err
	}
	q.labels = q.labels[:0]
	q.scores = q.scores[:0]
	q.flushed++
	if q.OnFlush != nil {
		q.OnFlush(size)
	}
	return nil
}

// Groups returns the number of groups flushed so far.
func (q *QueryGrouper) Groups() int { return q.flushed }

func (q *QueryGrouper) Result() []float64 { return q.metric.Result() }
