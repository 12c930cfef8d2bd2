package evaluation

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"treeval/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() *Results {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Results{
		Rows:    4,
		Queries: 2,
		Metrics: []MetricResult{
			{Name: "RMSE", Generations: []float64{1.5, 0.25}},
			{Name: "NDCG@3", Generations: []float64{0.5, 0.75}},
		},
		Scores:    []float64{0.1, 0.2, 0.3, 0.4},
		StartTime: start,
		EndTime:   start.Add(1500 * time.Millisecond),
	}
}

func TestReporter_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewReporter(sampleResults(), RunMeta{}).PrintSummary(&buf))
	assert.Equal(t, "RMSE = 0.250000\nNDCG@3 = 0.750000\n", buf.String())
}

func TestReporter_PrintSummary_NoData(t *testing.T) {
	results := &Results{Metrics: []MetricResult{{Name: "Accuracy"}}}

	var buf bytes.Buffer
	require.NoError(t, NewReporter(results, RunMeta{}).PrintSummary(&buf))
	assert.Equal(t, "Accuracy = NaN\n", buf.String())
}

func TestReporter_WriteGenerations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generations.txt")
	require.NoError(t, NewReporter(sampleResults(), RunMeta{}).WriteGenerations(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1.5\t0.5\n0.25\t0.75\n", string(data))
}

func TestReporter_WriteGenerations_BadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "generations.txt")
	assert.Error(t, NewReporter(sampleResults(), RunMeta{}).WriteGenerations(path))
}

func TestReporter_WriteJSON(t *testing.T) {
	results := sampleResults()
	results.Metrics = append(results.Metrics, MetricResult{Name: "Accuracy"})
	meta := RunMeta{RunID: "run-1", Model: "model.json", Input: "data.tsv", Objective: "regression"}

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, NewReporter(results, meta).WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var report jsonReport
	require.NoError(t, json.Unmarshal(data, &report))

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "data.tsv", report.Input)
	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, 2, report.Queries)
	assert.Equal(t, int64(1500), report.DurationMS)

	require.Len(t, report.Metrics, 3)
	require.NotNil(t, report.Metrics[0].Final)
	assert.Equal(t, 0.25, *report.Metrics[0].Final)
	assert.Nil(t, report.Metrics[2].Final)

	require.NotNil(t, report.Scores)
	assert.Equal(t, 4, report.Scores.Count)
	assert.InDelta(t, 0.25, report.Scores.Mean, 1e-12)
}

func TestCalculateScoreStats(t *testing.T) {
	s, err := CalculateScoreStats(nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = CalculateScoreStats([]float64{7})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 7.0, s.Min)
	assert.Equal(t, 7.0, s.Median)
	assert.Equal(t, 7.0, s.P90)
	assert.Equal(t, 7.0, s.P99)
	assert.Zero(t, s.StdDev)

	scores := make([]float64, 100)
	for i := range scores {
		scores[i] = float64(i + 1)
	}
	s, err = CalculateScoreStats(scores)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 100.0, s.Max)
	assert.Equal(t, 50.5, s.Mean)
	assert.Equal(t, 50.5, s.Median)
	assert.InDelta(t, 90, s.P90, 1)
	assert.InDelta(t, 99, s.P99, 1)
}

func TestReporter_RunRecord(t *testing.T) {
	meta := RunMeta{RunID: "run-2", Model: "m.json", Input: "stdin", Objective: "lambda_rank"}
	rec := NewReporter(sampleResults(), meta).RunRecord(nil)

	assert.Equal(t, "run-2", rec.ID)
	assert.Equal(t, "RMSE", rec.Metric)
	require.NotNil(t, rec.Final)
	assert.Equal(t, 0.25, *rec.Final)
	assert.Equal(t, storage.Series{1.5, 0.25}, rec.Generations)
	assert.False(t, rec.ScoresSaved)
	assert.Equal(t, 4, rec.Rows)
	assert.Empty(t, rec.Error)

	failed := &Results{Metrics: []MetricResult{{Name: "RMSE", Generations: []float64{math.NaN()}}}}
	rec = NewReporter(failed, meta).RunRecord(errors.New("boom"))
	assert.Nil(t, rec.Final)
	assert.Equal(t, "boom", rec.Error)
}

func TestReporter_WriteJSON_NonFinite(t *testing.T) {
	results := &Results{
		Rows:    2,
		Metrics: []MetricResult{{Name: "RMSE", Generations: []float64{math.Inf(1), math.NaN()}}},
		Scores:  []float64{1, math.Inf(1)},
	}

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, NewReporter(results, RunMeta{RunID: "run-3"}).WriteJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	metric := raw["metrics"].([]interface{})[0].(map[string]interface{})
	assert.Nil(t, metric["final"])
	assert.Equal(t, []interface{}{nil, nil}, metric["generations"])

	scores := raw["scores"].(map[string]interface{})
	assert.Equal(t, 2.0, scores["count"])
	assert.Equal(t, 1.0, scores["min"])
	assert.Nil(t, scores["max"])
	assert.Nil(t, scores["mean"])
}
