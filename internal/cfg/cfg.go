package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"treeval/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ModelPath    string
	ModelURL     string
	ModelTimeout time.Duration

	InputFormat  string
	InputFile    string
	InputPipe    string
	InputStdin   bool
	Compression  string
	TSVSeparator string
	LabelColumn  string
	QueryColumn  string
	QueryKey     string

	Objective         string
	Metrics           []string
	NDCGDepth         int
	ExponentiateLabel bool

	GenerationsFile string
	ScoreFile       string
	ReportFile      string

	DataPath    string
	StoreScores bool
	MetricsPort int
	LogLevel    string
}

type ConfigFile struct {
	Model struct {
		Path    string `yaml:"path"`
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"model"`

	Input struct {
		Format      string `yaml:"format"`
		File        string `yaml:"file"`
		Pipe        string `yaml:"pipe"`
		Stdin       bool   `yaml:"stdin"`
		Compression string `yaml:"compression"`
		Separator   string `yaml:"separator"`
		LabelColumn string `yaml:"labelColumn"`
		QueryColumn string `yaml:"queryColumn"`
		QueryKey    string `yaml:"queryKey"`
	} `yaml:"input"`

	Evaluation struct {
		Objective         string `yaml:"objective"`
		Metric            string `yaml:"metric"`
		NDCGDepth         int    `yaml:"ndcgDepth"`
		ExponentiateLabel bool   `yaml:"exponentiateLabel"`
	} `yaml:"evaluation"`

	Output struct {
		GenerationsFile string `yaml:"generationsFile"`
		ScoreFile       string `yaml:"scoreFile"`
		ReportFile      string `yaml:"reportFile"`
	} `yaml:"output"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		StoreScores bool   `yaml:"storeScores"`
		MetricsPort int    `yaml:"metricsPort"`
		LogLevel    string `yaml:"logLevel"`
	} `yaml:"system"`
}

// Load reads an optional .env file, then the YAML file named by TREEVAL_CONFIG if set,
// and applies environment overrides. The result is not validated: callers apply their
// own overrides (command-line flags) and then call Validate.
func Load() (Settings, error) {
	if err := loadDotEnv(getEnvOrDefault(common.EnvDotEnvFile, common.DefaultDotEnvFile)); err != nil {
		return Settings{}, err
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

// loadDotEnv exports the variables of path without overriding ones already set.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("%w: failed to parse config file: %v", common.ErrConfiguration, err)
	}

	return fromConfig(config)
}

func loadFromEnv() (Settings, error) {
	return fromConfig(ConfigFile{})
}

// fromConfig layers environment variables over config, then defaults under both.
func fromConfig(config ConfigFile) (Settings, error) {
	timeout, err := time.ParseDuration(firstNonEmpty(config.Model.Timeout, common.DefaultModelTimeout))
	if err != nil {
		return Settings{}, common.Configurationf("model timeout %q: %v", config.Model.Timeout, err)
	}

	settings := Settings{
		ModelPath:    getEnvOrDefault(common.EnvModelPath, config.Model.Path),
		ModelURL:     getEnvOrDefault(common.EnvModelURL, config.Model.URL),
		ModelTimeout: getDurationOrDefault(common.EnvModelTimeout, timeout),

		InputFormat:  strings.ToLower(getEnvOrDefault(common.EnvInputFormat, firstNonEmpty(config.Input.Format, common.DefaultInputFormat))),
		InputFile:    getEnvOrDefault(common.EnvInputFile, config.Input.File),
		InputPipe:    getEnvOrDefault(common.EnvInputPipe, config.Input.Pipe),
		InputStdin:   getBoolFromEnvOrConfig(common.EnvInputStdin, config.Input.Stdin),
		Compression:  strings.ToLower(getEnvOrDefault(common.EnvCompression, firstNonEmpty(config.Input.Compression, common.DefaultCompression))),
		TSVSeparator: getEnvOrDefault(common.EnvTSVSeparator, firstNonEmpty(config.Input.Separator, common.DefaultTSVSeparator)),
		LabelColumn:  getEnvOrDefault(common.EnvLabelColumn, firstNonEmpty(config.Input.LabelColumn, common.DefaultLabelColumn)),
		QueryColumn:  getEnvOrDefault(common.EnvQueryColumn, config.Input.QueryColumn),
		QueryKey:     getEnvOrDefault(common.EnvQueryKey, config.Input.QueryKey),

		Objective:         getEnvOrDefault(common.EnvObjective, config.Evaluation.Objective),
		Metrics:           SplitList(getEnvOrDefault(common.EnvMetric, config.Evaluation.Metric)),
		NDCGDepth:         getIntFromEnvOrConfig(common.EnvNDCGDepth, config.Evaluation.NDCGDepth),
		ExponentiateLabel: getBoolFromEnvOrConfig(common.EnvExponentiateLabel, config.Evaluation.ExponentiateLabel),

		GenerationsFile: getEnvOrDefault(common.EnvGenerationsFile, config.Output.GenerationsFile),
		ScoreFile:       getEnvOrDefault(common.EnvScoreFile, config.Output.ScoreFile),
		ReportFile:      getEnvOrDefault(common.EnvReportFile, config.Output.ReportFile),

		DataPath:    getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		StoreScores: getBoolFromEnvOrConfig(common.EnvStoreScores, config.System.StoreScores),
		MetricsPort: getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort),
		LogLevel:    strings.ToLower(getEnvOrDefault(common.EnvLogLevel, firstNonEmpty(config.System.LogLevel, common.DefaultLogLevel))),
	}

	return settings, nil
}

// Validate checks the settings of one evaluation run. Every failure wraps common.ErrConfiguration.
func (s *Settings) Validate() error {
	if err := validateSettings(s); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// TrackGenerations reports whether per-generation scores are needed, which is exactly
// when a generations file is requested.
func (s *Settings) TrackGenerations() bool { return s.GenerationsFile != "" }

// InputName describes the configured data source for logs and run records.
func (s *Settings) InputName() string {
	switch {
	case s.InputPipe != "":
		return "pipe:" + s.InputPipe
	case s.InputStdin || s.InputFile == common.StdinPath:
		return "stdin"
	default:
		return s.InputFile
	}
}

// ModelName describes the configured model source.
func (s *Settings) ModelName() string {
	if s.ModelURL != "" {
		return s.ModelURL
	}
	return s.ModelPath
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	return configValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings checks that sources are unambiguous and every enumerated value is known.
func validateSettings(settings *Settings) error {
	// Validate model source
	if settings.ModelPath == "" && settings.ModelURL == "" {
		return common.Configurationf("a model path or model URL is required")
	}
	if settings.ModelPath != "" && settings.ModelURL != "" {
		return common.Configurationf("model path and model URL are mutually exclusive")
	}
	if settings.ModelURL != "" && (settings.ModelTimeout < time.Second || settings.ModelTimeout > 10*time.Minute) {
		return common.Configurationf("model timeout must be between 1s and 10m, got %v", settings.ModelTimeout)
	}

	// Validate input source
	sources := 0
	if settings.InputFile != "" {
		sources++
	}
	if settings.InputPipe != "" {
		sources++
	}
	if settings.InputStdin {
		sources++
	}
	if sources != 1 {
		return common.Configurationf("exactly one of input file, input pipe or stdin is required, got %d", sources)
	}

	switch settings.InputFormat {
	case common.FormatTSV:
		if utf8.RuneCountInString(settings.TSVSeparator) != 1 {
			return common.Configurationf("TSV separator must be a single character, got %q", settings.TSVSeparator)
		}
		if settings.LabelColumn == "" {
			return common.Configurationf("label column cannot be empty")
		}
		if settings.QueryKey != "" {
			return common.Configurationf("query key applies to svm input; use a query column for tsv")
		}
	case common.FormatSVM:
		if settings.QueryColumn != "" {
			return common.Configurationf("query column applies to tsv input; use a query key for svm")
		}
	default:
		return common.Configurationf("input format must be %q or %q, got %q", common.FormatTSV, common.FormatSVM, settings.InputFormat)
	}

	switch settings.Compression {
	case common.CompressionAuto, common.CompressionNone, common.CompressionGzip, common.CompressionZstd, common.CompressionLZ4:
	default:
		return common.Configurationf("unknown compression %q", settings.Compression)
	}

	// Validate evaluation parameters
	if settings.NDCGDepth < 0 {
		return common.Configurationf("NDCG depth must be non-negative, got %d", settings.NDCGDepth)
	}

	// Validate system parameters
	if settings.MetricsPort != 0 && (settings.MetricsPort < 1024 || settings.MetricsPort > 65535) {
		return common.Configurationf("metrics port must be 0 or between 1024 and 65535, got %d", settings.MetricsPort)
	}
	if settings.StoreScores && settings.DataPath == "" {
		return common.Configurationf("storing scores requires a data path")
	}
	switch settings.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return common.Configurationf("unknown log level %q", settings.LogLevel)
	}

	return nil
}
