package evaluation

import (
	"context"
	"fmt"
	"io"
	"time"

	"treeval/internal/cfg"
	"treeval/internal/common"
	"treeval/internal/ml"
	"treeval/internal/model"
	"treeval/internal/quality"
	"treeval/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RunObserver is told how every run ended.
type RunObserver interface {
	RunFinished(elapsed time.Duration, quality map[string]float64, err error)
}

// RunnerOptions carries the optional collaborators of a Runner.
type RunnerOptions struct {
	// Store persists the run record and, with StoreScores, every row's score.
	Store           *storage.Store
	Instrumentation Instrumentation
	Observer        RunObserver
	Tracer          ml.Tracer
	// Stdout receives the summary lines.
	Stdout io.Writer
}

// Runner performs one complete evaluation run of an ensemble.
type Runner struct {
	settings *cfg.Settings
	ensemble *model.Ensemble
	opts     RunnerOptions
	runID    string

	// scoreStore is set once a score bucket has been opened for the run.
	scoreStore bool
}

// NewRunner assigns the run a fresh id.
func NewRunner(settings *cfg.Settings, ensemble *model.Ensemble, opts RunnerOptions) *Runner {
	return &Runner{
		settings: settings,
		ensemble: ensemble,
		opts:     opts,
		runID:    uuid.NewString(),
	}
}

// RunID returns the id under which the run is logged and stored.
func (r *Runner) RunID() string { return r.runID }

// Plan resolves the objective and builds the metric list. It touches no input or output.
func (r *Runner) Plan() (quality.Objective, []quality.Metric, error) {
	objective, err := quality.ResolveObjective(r.settings.Objective, r.ensemble.CostFunction)
	if err != nil {
		return quality.Objective{}, nil, err
	}

	var specs []quality.MetricSpec
	if len(r.settings.Metrics) == 0 {
		specs = append(specs, quality.DefaultMetric(objective, r.settings.NDCGDepth))
	}
	for _, name := range r.settings.Metrics {
		spec, err := quality.ParseMetric(name, r.settings.NDCGDepth)
		if err != nil {
			return quality.Objective{}, nil, err
		}
		specs = append(specs, spec)
	}

	metrics := make([]quality.Metric, 0, len(specs))
	for _, spec := range specs {
		if spec.IsQuery() && !r.hasQuerySource() {
			return quality.Objective{}, nil, common.Configurationf("metric %s needs query ids: set a query column (tsv) or query key (svm)", spec.Name)
		}
		metrics = append(metrics, spec.New())
	}
	return objective, metrics, nil
}

func (r *Runner) hasQuerySource() bool {
	if r.settings.InputFormat == common.FormatSVM {
		return r.settings.QueryKey != ""
	}
	return r.settings.QueryColumn != ""
}

// Execute runs the evaluation and writes every configured output: the summary lines,
// the generations file, the JSON report and the stored run record. A failed run still
// gets a run record when a store is configured.
func (r *Runner) Execute(ctx context.Context) error {
	objective, metrics, err := r.Plan()
	if err != nil {
		return err
	}

	logger := log.With().Str("run_id", r.runID).Logger()
	logger.Info().
		Str("model", r.settings.ModelName()).
		Str("input", r.settings.InputName()).
		Str("objective", objective.Name).
		Bool("generations", r.settings.TrackGenerations()).
		Msg("Run planned")

	results, runErr := r.run(ctx, objective, metrics)
	elapsed := results.EndTime.Sub(results.StartTime)

	reporter := NewReporter(results, RunMeta{
		RunID:       r.runID,
		Model:       r.settings.ModelName(),
		Input:       r.settings.InputName(),
		Objective:   objective.Name,
		ScoresSaved: r.scoreStore && runErr == nil,
	})

	if r.opts.Observer != nil {
		finals := make(map[string]float64, len(results.Metrics))
		for _, m := range results.Metrics {
			finals[m.Name] = m.Final()
		}
		r.opts.Observer.RunFinished(elapsed, finals, runErr)
	}

	// A run record that cannot be stored fails the command, but only after the
	// outputs of a successful run have been written.
	var storeErr error
	if r.opts.Store != nil {
		if err := r.opts.Store.PutRun(reporter.RunRecord(runErr)); err != nil {
			logger.Error().Err(err).Msg("Failed to store run record")
			storeErr = fmt.Errorf("store run record: %w", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	if err := r.writeOutputs(reporter); err != nil {
		return err
	}
	return storeErr
}

func (r *Runner) writeOutputs(reporter *Reporter) error {
	if r.opts.Stdout != nil {
		if err := reporter.PrintSummary(r.opts.Stdout); err != nil {
			return fmt.Errorf("%w: write summary: %v", common.ErrStream, err)
		}
	}
	if r.settings.GenerationsFile != "" {
		if err := reporter.WriteGenerations(r.settings.GenerationsFile); err != nil {
			return err
		}
	}
	if r.settings.ReportFile != "" {
		if err := reporter.WriteJSON(r.settings.ReportFile); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) run(ctx context.Context, objective quality.Objective, metrics []quality.Metric) (results *Results, err error) {
	results = &Results{StartTime: time.Now()}
	defer func() {
		if results.EndTime.IsZero() {
			results.EndTime = time.Now()
		}
	}()

	scorer, err := ml.NewScorer(r.ensemble, ml.ScorerConfig{
		TrackGenerations: r.settings.TrackGenerations(),
		Logistic:         objective.Logistic(),
		Tracer:           r.opts.Tracer,
	})
	if err != nil {
		return results, err
	}

	src, err := OpenSource(ctx, r.settings)
	if err != nil {
		return results, err
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	rows, err := NewRowReader(src, r.ensemble, r.settings)
	if err != nil {
		return results, err
	}

	sinks, err := r.openSinks()
	if err != nil {
		return results, err
	}

	engine := NewEngine(EngineConfig{
		ExponentiateLabel: r.settings.ExponentiateLabel,
		Trees:             r.ensemble.NumTrees(),
		KeepScores:        r.settings.ReportFile != "",
		Sinks:             sinks,
		Instrumentation:   r.opts.Instrumentation,
	}, scorer, rows, metrics)

	err = engine.Run()
	return engine.GetResults(), err
}

// openSinks opens every configured score destination, closing the ones already open
// if a later one fails.
func (r *Runner) openSinks() ([]Sink, error) {
	var sinks []Sink
	fail := func(err error) ([]Sink, error) {
		for _, s := range sinks {
			_ = s.Close()
		}
		return nil, err
	}

	if r.settings.ScoreFile != "" {
		sink, err := NewTextSink(r.settings.ScoreFile)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, sink)
	}
	if r.settings.StoreScores && r.opts.Store != nil {
		writer, err := r.opts.Store.NewScoreWriter(r.runID, storage.DefaultBatchSize)
		if err != nil {
			return fail(fmt.Errorf("open score store: %w", err))
		}
		sinks = append(sinks, writer)
		r.scoreStore = true
	}
	return sinks, nil
}
