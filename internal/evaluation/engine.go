package evaluation

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"treeval/internal/common"
	"treeval/internal/ml"
	"treeval/internal/quality"

	"github.com/rs/zerolog/log"
)

// Instrumentation observes the processing loop.
type Instrumentation interface {
	RowScored(trees int, elapsed time.Duration)
	QueryFlushed(size int)
	ParseFailed()
}

type nopInstrumentation struct{}

func (nopInstrumentation) RowScored(int, time.Duration) {}
func (nopInstrumentation) QueryFlushed(int)             {}
func (nopInstrumentation) ParseFailed()                 {}

// EngineConfig holds the per-run options of the processing loop.
type EngineConfig struct {
	// ExponentiateLabel replaces every label with 2^label - 1 before scoring.
	ExponentiateLabel bool
	// Trees is the ensemble size, reported to Instrumentation per row.
	Trees int
	// KeepScores retains every final score in Results for the report.
	KeepScores bool

	Sinks           []Sink
	Instrumentation Instrumentation
}

// MetricResult is the outcome of one quality metric.
type MetricResult struct {
	Name        string
	Generations []float64
}

// Final returns the last generation's value, or NaN when the metric saw no data.
func (m MetricResult) Final() float64 {
	if len(m.Generations) == 0 {
		return math.NaN()
	}
	return m.Generations[len(m.Generations)-1]
}

// Results holds the outcome of an evaluation run.
type Results struct {
	Rows      int
	Queries   int
	Metrics   []MetricResult
	Scores    []float64
	StartTime time.Time
	EndTime   time.Time
}

// Engine drives every input row through scoring, the sinks and the quality metrics,
// one row at a time.
type Engine struct {
	config    EngineConfig
	predictor ml.Predictor
	rows      RowReader
	metrics   []quality.Metric
	inst      Instrumentation
	results   *Results
}

// NewEngine creates an engine over an explicit list of metrics.
func NewEngine(config EngineConfig, predictor ml.Predictor, rows RowReader, metrics []quality.Metric) *Engine {
	e := &Engine{
		config:    config,
		predictor: predictor,
		rows:      rows,
		metrics:   metrics,
		inst:      config.Instrumentation,
		results:   &Results{},
	}
	if e.inst == nil {
		e.inst = nopInstrumentation{}
	}

	for _, m := range metrics {
		if g, ok := m.(*quality.QueryGrouper); ok {
			g.OnFlush = func(size int) {
				e.results.Queries++
				e.inst.QueryFlushed(size)
			}
		}
	}
	return e
}

// Run reads the input to the end. Any error aborts the run; the sinks are closed on
// every path.
func (e *Engine) Run() (err error) {
	log.Info().
		Int("metrics", len(e.metrics)).
		Int("sinks", len(e.config.Sinks)).
		Bool("exponentiate_label", e.config.ExponentiateLabel).
		Msg("Starting evaluation")

	e.results.StartTime = time.Now()
	defer func() {
		e.results.EndTime = time.Now()
		if closeErr := e.closeSinks(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for {
		rec, err := e.rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, common.ErrParse) {
				e.inst.ParseFailed()
			}
			return fmt.Errorf("row %d: %w", e.results.Rows+1, err)
		}

		start := time.Now()
		label := rec.Label
		if e.config.ExponentiateLabel {
			label = math.Pow(2, label) - 1
		}

		scores, err := e.predictor.Score(rec.Values)
		if err != nil {
			return fmt.Errorf("row %d: %w", e.results.Rows+1, err)
		}

		for _, sink := range e.config.Sinks {
			if err := sink.WriteScore(label, scores); err != nil {
				return fmt.Errorf("row %d: %w", e.results.Rows+1, err)
			}
		}

		row := quality.Row{Label: label, QueryID: rec.QueryID, Scores: scores}
		for _, m := range e.metrics {
			if err := m.ConsumeRow(row); err != nil {
				return fmt.Errorf("row %d: %s: %w", e.results.Rows+1, m.Name(), err)
			}
		}

		if e.config.KeepScores {
			e.results.Scores = append(e.results.Scores, scores[len(scores)-1])
		}
		e.results.Rows++
		e.inst.RowScored(e.config.Trees, time.Since(start))
	}

	for _, m := range e.metrics {
		if err := m.Flush(); err != nil {
			return fmt.Errorf("flush %s: %w", m.Name(), err)
		}
		e.results.Metrics = append(e.results.Metrics, MetricResult{Name: m.Name(), Generations: m.Result()})
	}

	log.Info().
		Int("rows", e.results.Rows).
		Int("queries", e.results.Queries).
		Dur("elapsed", time.Since(e.results.StartTime)).
		Msg("Evaluation finished")
	return nil
}

// GetResults returns the results collected so far.
func (e *Engine) GetResults() *Results {
	return e.results
}

func (e *Engine) closeSinks() error {
	var first error
	for _, sink := range e.config.Sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
