package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"treeval/internal/cfg"
	"treeval/internal/evaluation"
	"treeval/internal/metrics"
	"treeval/internal/ml"
	"treeval/internal/model"
	"treeval/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		modelPath   = flag.String("model", "", "Path to the ensemble JSON document")
		modelURL    = flag.String("model-url", "", "HTTP(S) URL of the ensemble JSON document")
		inputFormat = flag.String("format", "", "Input format: tsv or svm")
		inputFile   = flag.String("input", "", "Input data file, - for stdin")
		inputPipe   = flag.String("pipe", "", "Shell command whose output is the input data")
		compression = flag.String("compression", "", "Input compression: auto, none, gzip, zstd, lz4")
		objective   = flag.String("objective", "", "Objective: regression, binary_classification, lambda_rank[@N]")
		metricList  = flag.String("metric", "", "Comma-separated metrics: rmse, accuracy, ndcg[@N]")
		ndcgDepth   = flag.Int("ndcg-depth", -1, "NDCG truncation depth, 0 for full depth")
		queryColumn = flag.String("query-column", "", "TSV column holding the query id")
		queryKey    = flag.String("query-key", "", "SVM token key holding the query id")
		expLabel    = flag.Bool("exponentiate-label", false, "Replace every label with 2^label - 1")
		generations = flag.String("generations", "", "Write per-generation metric values to this file")
		scoreFile   = flag.String("scores", "", "Write the final score of every row to this file")
		reportFile  = flag.String("report", "", "Write a JSON run report to this file")
		dataPath    = flag.String("data", "", "Directory of the run store")
		storeScores = flag.Bool("store-scores", false, "Persist every row's score in the run store")
		metricsPort = flag.Int("metrics-port", -1, "Serve Prometheus metrics on this port while running")
		logLevel    = flag.String("log-level", "", "Log level: trace, debug, info, warn, error")
	)
	flag.Parse()

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Flags override file and environment settings
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			config.ModelPath = *modelPath
		case "model-url":
			config.ModelURL = *modelURL
		case "format":
			config.InputFormat = *inputFormat
		case "input":
			config.InputFile = *inputFile
		case "pipe":
			config.InputPipe = *inputPipe
		case "compression":
			config.Compression = *compression
		case "objective":
			config.Objective = *objective
		case "metric":
			config.Metrics = cfg.SplitList(*metricList)
		case "ndcg-depth":
			config.NDCGDepth = *ndcgDepth
		case "query-column":
			config.QueryColumn = *queryColumn
		case "query-key":
			config.QueryKey = *queryKey
		case "exponentiate-label":
			config.ExponentiateLabel = *expLabel
		case "generations":
			config.GenerationsFile = *generations
		case "scores":
			config.ScoreFile = *scoreFile
		case "report":
			config.ReportFile = *reportFile
		case "data":
			config.DataPath = *dataPath
		case "store-scores":
			config.StoreScores = *storeScores
		case "metrics-port":
			config.MetricsPort = *metricsPort
		case "log-level":
			config.LogLevel = *logLevel
		}
	})

	setupLogging(config.LogLevel)

	if err := config.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ens, err := loadEnsemble(ctx, &config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load model")
	}

	m := metrics.New()
	mw := metrics.NewWrapper(m)
	mw.ModelLoaded(ens.NumTrees(), ens.NumFeatures())

	if config.MetricsPort > 0 {
		startMetricsServer(ctx, config.MetricsPort)
	}

	store := initializeStorage(&config)
	if store != nil {
		defer store.Close()
	}

	opts := evaluation.RunnerOptions{
		Store:           store,
		Instrumentation: mw,
		Observer:        mw,
		Stdout:          os.Stdout,
	}
	if zerolog.GlobalLevel() <= zerolog.TraceLevel {
		opts.Tracer = ml.TracerFunc(func(tree int, path string, value float64) {
			log.Trace().Int("tree", tree).Str("path", path).Float64("value", value).Msg("Tree walk")
		})
	}

	runner := evaluation.NewRunner(&config, ens, opts)
	if err := runner.Execute(ctx); err != nil {
		if store != nil {
			store.Close()
		}
		log.Fatal().Err(err).Str("run_id", runner.RunID()).Msg("Evaluation failed")
	}

	log.Info().Str("run_id", runner.RunID()).Msg("Evaluation completed successfully")
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func loadEnsemble(ctx context.Context, c *cfg.Settings) (*model.Ensemble, error) {
	if c.ModelURL != "" {
		return model.Fetch(ctx, c.ModelURL, c.ModelTimeout)
	}
	return model.LoadFile(c.ModelPath)
}

// initializeStorage opens the run store if DATA_PATH is configured
func initializeStorage(c *cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		if c.StoreScores {
			log.Fatal().Err(err).Msg("Failed to open run store")
		}
		log.Warn().Err(err).Msg("Run store unavailable, continuing without persistence")
		return nil
	}
	return store
}

// startMetricsServer serves /metrics and /health until ctx is cancelled
func startMetricsServer(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown metrics server")
		}
	}()

	go func() {
		log.Info().Int("port", port).Msg("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}
