package evaluation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"treeval/internal/storage"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog/log"
)

// RunMeta identifies a run in reports and run records.
type RunMeta struct {
	RunID     string
	Model     string
	Input     string
	Objective string

	// ScoresSaved is set when every row's score was written to the run store.
	ScoresSaved bool
}

// Reporter renders the results of a finished run.
type Reporter struct {
	results *Results
	meta    RunMeta
}

// NewReporter creates a new reporter
func NewReporter(results *Results, meta RunMeta) *Reporter {
	return &Reporter{results: results, meta: meta}
}

// PrintSummary writes one "NAME = value" line per metric.
func (r *Reporter) PrintSummary(w io.Writer) error {
	for _, m := range r.results.Metrics {
		if _, err := fmt.Fprintf(w, "%s = %f\n", m.Name, m.Final()); err != nil {
			return err
		}
	}
	return nil
}

// WriteGenerations writes one line per generation. Each line holds the value of every
// metric at that generation, tab separated, as if the run had stopped there.
func (r *Reporter) WriteGenerations(path string) error {
	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create generations file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	generations := 0
	for _, m := range r.results.Metrics {
		if len(m.Generations) > generations {
			generations = len(m.Generations)
		}
	}

	fields := make([]string, len(r.results.Metrics))
	for g := 0; g < generations; g++ {
		for i, m := range r.results.Metrics {
			v := math.NaN()
			if g < len(m.Generations) {
				v = m.Generations[g]
			}
			fields[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, "\t")); err != nil {
			return fmt.Errorf("failed to write generations file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write generations file: %w", err)
	}

	log.Info().Str("file", path).Int("generations", generations).Msg("Generations file written")
	return nil
}

// ScoreStats summarizes the distribution of final scores.
type ScoreStats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
}

// MarshalJSON writes non-finite statistics as null.
func (s ScoreStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Count  int      `json:"count"`
		Min    *float64 `json:"min"`
		Max    *float64 `json:"max"`
		Mean   *float64 `json:"mean"`
		Median *float64 `json:"median"`
		StdDev *float64 `json:"std_dev"`
		P90    *float64 `json:"p90"`
		P99    *float64 `json:"p99"`
	}{
		Count:  s.Count,
		Min:    finite(s.Min),
		Max:    finite(s.Max),
		Mean:   finite(s.Mean),
		Median: finite(s.Median),
		StdDev: finite(s.StdDev),
		P90:    finite(s.P90),
		P99:    finite(s.P99),
	})
}

// CalculateScoreStats returns nil when there are no scores.
func CalculateScoreStats(scores []float64) (*ScoreStats, error) {
	if len(scores) == 0 {
		return nil, nil
	}

	var (
		s   = &ScoreStats{Count: len(scores)}
		err error
	)
	if s.Min, err = stats.Min(scores); err != nil {
		return nil, err
	}
	if s.Max, err = stats.Max(scores); err != nil {
		return nil, err
	}
	if s.Mean, err = stats.Mean(scores); err != nil {
		return nil, err
	}
	if s.Median, err = stats.Median(scores); err != nil {
		return nil, err
	}
	if s.StdDev, err = stats.StandardDeviation(scores); err != nil {
		return nil, err
	}
	// Percentile rejects inputs too small to interpolate; the single value is every percentile.
	if s.P90, err = stats.Percentile(scores, 90); err != nil {
		s.P90 = s.Max
	}
	if s.P99, err = stats.Percentile(scores, 99); err != nil {
		s.P99 = s.Max
	}
	return s, nil
}

type metricReport struct {
	Name        string         `json:"name"`
	Final       *float64       `json:"final"`
	Generations storage.Series `json:"generations"`
}

type jsonReport struct {
	RunID       string         `json:"run_id"`
	Model       string         `json:"model"`
	Input       string         `json:"input"`
	Objective   string         `json:"objective"`
	Rows        int            `json:"rows"`
	Queries     int            `json:"queries,omitempty"`
	Metrics     []metricReport `json:"metrics"`
	Scores      *ScoreStats    `json:"scores,omitempty"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
	DurationMS  int64          `json:"duration_ms"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// WriteJSON writes the full report of the run.
func (r *Reporter) WriteJSON(path string) error {
	scoreStats, err := CalculateScoreStats(r.results.Scores)
	if err != nil {
		return fmt.Errorf("failed to summarize scores: %w", err)
	}

	report := jsonReport{
		RunID:       r.meta.RunID,
		Model:       r.meta.Model,
		Input:       r.meta.Input,
		Objective:   r.meta.Objective,
		Rows:        r.results.Rows,
		Queries:     r.results.Queries,
		Scores:      scoreStats,
		StartTime:   r.results.StartTime,
		EndTime:     r.results.EndTime,
		DurationMS:  r.results.EndTime.Sub(r.results.StartTime).Milliseconds(),
		GeneratedAt: time.Now(),
	}
	for _, m := range r.results.Metrics {
		report.Metrics = append(report.Metrics, metricReport{
			Name:        m.Name,
			Final:       finite(m.Final()),
			Generations: storage.Series(m.Generations),
		})
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", path).Msg("JSON report generated")
	return nil
}

// RunRecord converts the results into the persisted form. The first metric is the
// run's primary metric. runErr, if any, is recorded as the failure reason.
func (r *Reporter) RunRecord(runErr error) storage.RunRecord {
	rec := storage.RunRecord{
		ID:          r.meta.RunID,
		StartedAt:   r.results.StartTime,
		FinishedAt:  r.results.EndTime,
		Model:       r.meta.Model,
		Input:       r.meta.Input,
		Objective:   r.meta.Objective,
		Rows:        r.results.Rows,
		Queries:     r.results.Queries,
		ScoresSaved: r.meta.ScoresSaved,
	}
	if len(r.results.Metrics) > 0 {
		primary := r.results.Metrics[0]
		rec.Metric = primary.Name
		rec.Final = finite(primary.Final())
		rec.Generations = storage.Series(primary.Generations)
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
