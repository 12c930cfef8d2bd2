package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"treeval/internal/cfg"
	"treeval/internal/common"
	"treeval/internal/model"
	"treeval/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	calls   int
	quality map[string]float64
	err     error
}

func (o *recordingObserver) RunFinished(_ time.Duration, quality map[string]float64, err error) {
	o.calls++
	o.quality = quality
	o.err = err
}

func baseSettings(dir, input string) *cfg.Settings {
	return &cfg.Settings{
		InputFormat:  common.FormatTSV,
		InputFile:    input,
		Compression:  common.CompressionAuto,
		TSVSeparator: "\t",
		LabelColumn:  common.DefaultLabelColumn,
		ModelPath:    filepath.Join(dir, "model.json"),
	}
}

func TestRunner_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeFile(t, dir, "model.json", twoTreeModel)
	ens, err := model.LoadFile(modelPath)
	require.NoError(t, err)

	settings := baseSettings(dir, writeFile(t, dir, "data.tsv", "Label\tx\n1\t0\n3\t1\n"))
	settings.ScoreFile = filepath.Join(dir, "scores.txt")
	settings.GenerationsFile = filepath.Join(dir, "generations.txt")
	settings.ReportFile = filepath.Join(dir, "report.json")

	var stdout bytes.Buffer
	observer := &recordingObserver{}
	runner := NewRunner(settings, ens, RunnerOptions{Stdout: &stdout, Observer: observer})
	require.NoError(t, runner.Execute(context.Background()))

	assert.Equal(t, "RMSE = 0.707107\n", stdout.String())

	scores, err := os.ReadFile(settings.ScoreFile)
	require.NoError(t, err)
	assert.Equal(t, "0.000000\n3.000000\n", string(scores))

	generations, err := os.ReadFile(settings.GenerationsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(generations)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1.4142135623730951", lines[0])

	_, err = os.Stat(settings.ReportFile)
	assert.NoError(t, err)

	assert.Equal(t, 1, observer.calls)
	assert.NoError(t, observer.err)
	assert.InDelta(t, math.Sqrt(0.5), observer.quality["RMSE"], 1e-12)
}

func TestRunner_StoresRunAndScores(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.New(filepath.Join(dir, "data"))
	require.NoError(t, err)
	defer store.Close()

	settings := baseSettings(dir, writeFile(t, dir, "data.tsv", "Label\tx\n1\t0\n3\t1\n"))
	settings.StoreScores = true
	settings.Metrics = []string{"rmse", "accuracy"}

	runner := NewRunner(settings, twoTreeEnsemble(), RunnerOptions{Store: store})
	require.NoError(t, runner.Execute(context.Background()))

	rec, err := store.GetRun(runner.RunID())
	require.NoError(t, err)
	assert.Equal(t, "RMSE", rec.Metric)
	assert.Equal(t, 2, rec.Rows)
	assert.Equal(t, "regression", rec.Objective)
	require.NotNil(t, rec.Final)
	assert.InDelta(t, math.Sqrt(0.5), *rec.Final, 1e-12)
	assert.Empty(t, rec.Error)

	stored, err := store.Scores(runner.RunID())
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 0.0, stored[0].Score)
	assert.Equal(t, 3.0, stored[1].Score)
	assert.Equal(t, 3.0, stored[1].Label)
	assert.True(t, rec.ScoresSaved)
}

func TestRunner_FailedRunIsRecorded(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.New(filepath.Join(dir, "data"))
	require.NoError(t, err)
	defer store.Close()

	settings := baseSettings(dir, writeFile(t, dir, "data.tsv", "Label\tx\n1\t0\n2\tnope\n"))
	observer := &recordingObserver{}

	var stdout bytes.Buffer
	runner := NewRunner(settings, twoTreeEnsemble(), RunnerOptions{Store: store, Observer: observer, Stdout: &stdout})
	err = runner.Execute(context.Background())
	require.ErrorIs(t, err, common.ErrParse)

	assert.Empty(t, stdout.String())
	assert.Equal(t, 1, observer.calls)
	assert.ErrorIs(t, observer.err, common.ErrParse)

	rec, err := store.GetRun(runner.RunID())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Error)
	assert.Equal(t, 1, rec.Rows)
	assert.False(t, rec.ScoresSaved)
}

func TestRunner_InfiniteLabelStillReports(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.New(filepath.Join(dir, "data"))
	require.NoError(t, err)
	defer store.Close()

	// 2^1100 - 1 overflows to +Inf, so every RMSE generation is +Inf.
	settings := baseSettings(dir, writeFile(t, dir, "data.tsv", "Label\tx\n1100\t0\n1\t1\n"))
	settings.ExponentiateLabel = true
	settings.GenerationsFile = filepath.Join(dir, "generations.txt")
	settings.ReportFile = filepath.Join(dir, "report.json")

	var stdout bytes.Buffer
	runner := NewRunner(settings, twoTreeEnsemble(), RunnerOptions{Store: store, Stdout: &stdout})
	require.NoError(t, runner.Execute(context.Background()))

	assert.Equal(t, "RMSE = +Inf\n", stdout.String())

	generations, err := os.ReadFile(settings.GenerationsFile)
	require.NoError(t, err)
	assert.Equal(t, "+Inf\n+Inf\n", string(generations))

	report, err := os.ReadFile(settings.ReportFile)
	require.NoError(t, err)
	var decoded jsonReport
	require.NoError(t, json.Unmarshal(report, &decoded))
	require.Len(t, decoded.Metrics, 1)
	assert.Nil(t, decoded.Metrics[0].Final)
	require.Len(t, decoded.Metrics[0].Generations, 2)
	assert.True(t, math.IsNaN(decoded.Metrics[0].Generations[1]))

	rec, err := store.GetRun(runner.RunID())
	require.NoError(t, err)
	assert.Empty(t, rec.Error)
	assert.Nil(t, rec.Final)
	require.Len(t, rec.Generations, 2)
	assert.True(t, math.IsNaN(rec.Generations[0]))
}

func TestRunner_Plan(t *testing.T) {
	dir := t.TempDir()

	t.Run("default metric follows objective", func(t *testing.T) {
		settings := baseSettings(dir, "data.tsv")
		settings.Objective = "binary_classification"

		objective, metrics, err := NewRunner(settings, twoTreeEnsemble(), RunnerOptions{}).Plan()
		require.NoError(t, err)
		assert.True(t, objective.Logistic())
		require.Len(t, metrics, 1)
		assert.Equal(t, "Accuracy", metrics[0].Name())
	})

	t.Run("query metric without query source", func(t *testing.T) {
		settings := baseSettings(dir, "data.tsv")
		settings.Metrics = []string{"ndcg@5"}

		_, _, err := NewRunner(settings, twoTreeEnsemble(), RunnerOptions{}).Plan()
		assert.ErrorIs(t, err, common.ErrConfiguration)
	})

	t.Run("query metric with query column", func(t *testing.T) {
		settings := baseSettings(dir, "data.tsv")
		settings.Metrics = []string{"ndcg@5"}
		settings.QueryColumn = "QueryId"

		_, metrics, err := NewRunner(settings, twoTreeEnsemble(), RunnerOptions{}).Plan()
		require.NoError(t, err)
		require.Len(t, metrics, 1)
		assert.Equal(t, "NDCG@5", metrics[0].Name())
	})

	t.Run("unknown metric", func(t *testing.T) {
		settings := baseSettings(dir, "data.tsv")
		settings.Metrics = []string{"auc"}

		_, _, err := NewRunner(settings, twoTreeEnsemble(), RunnerOptions{}).Plan()
		assert.ErrorIs(t, err, common.ErrConfiguration)
	})
}

func TestRunner_RankingOverSparseInput(t *testing.T) {
	dir := t.TempDir()
	settings := baseSettings(dir, writeFile(t, dir, "data.svm",
		"1 qid:1 0:1\n0 qid:1 0:0\n0 qid:2 0:1\n1 qid:2 0:0\n"))
	settings.InputFormat = common.FormatSVM
	settings.QueryKey = "qid"
	settings.Objective = "lambda_rank@2"

	var stdout bytes.Buffer
	runner := NewRunner(settings, twoTreeEnsemble(), RunnerOptions{Stdout: &stdout})
	require.NoError(t, runner.Execute(context.Background()))

	inverted := 1 / math.Log2(3)
	assert.Equal(t, fmt.Sprintf("NDCG@2 = %f\n", (1+inverted)/2), stdout.String())
}

func TestRunner_StoreFailureKeepsSummary(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.New(filepath.Join(dir, "data"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	settings := baseSettings(dir, writeFile(t, dir, "data.tsv", "Label\tx\n1\t0\n3\t1\n"))

	var stdout bytes.Buffer
	runner := NewRunner(settings, twoTreeEnsemble(), RunnerOptions{Store: store, Stdout: &stdout})
	err = runner.Execute(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "store run record")
	assert.Equal(t, "RMSE = 0.707107\n", stdout.String())
}
