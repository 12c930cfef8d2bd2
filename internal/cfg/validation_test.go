package cfg

import (
	"errors"
	"testing"
	"time"

	"treeval/internal/common"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		ModelPath:    "model.json",
		ModelTimeout: 30 * time.Second,
		InputFormat:  "tsv",
		InputFile:    "data.tsv",
		Compression:  "auto",
		TSVSeparator: "\t",
		LabelColumn:  "Label",
		LogLevel:     "info",
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	settings := createValidSettings()

	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *Settings)
	}{
		{"no model", func(s *Settings) { s.ModelPath = "" }},
		{"two model sources", func(s *Settings) { s.ModelURL = "http://x/model.json" }},
		{"url timeout too short", func(s *Settings) {
			s.ModelPath = ""
			s.ModelURL = "http://x/model.json"
			s.ModelTimeout = 10 * time.Millisecond
		}},
		{"no input", func(s *Settings) { s.InputFile = "" }},
		{"two inputs", func(s *Settings) { s.InputStdin = true }},
		{"unknown format", func(s *Settings) { s.InputFormat = "parquet" }},
		{"long separator", func(s *Settings) { s.TSVSeparator = "||" }},
		{"empty separator", func(s *Settings) { s.TSVSeparator = "" }},
		{"empty label column", func(s *Settings) { s.LabelColumn = "" }},
		{"query key with tsv", func(s *Settings) { s.QueryKey = "qid" }},
		{"query column with svm", func(s *Settings) {
			s.InputFormat = "svm"
			s.QueryColumn = "QueryId"
		}},
		{"unknown compression", func(s *Settings) { s.Compression = "brotli" }},
		{"negative depth", func(s *Settings) { s.NDCGDepth = -1 }},
		{"privileged metrics port", func(s *Settings) { s.MetricsPort = 80 }},
		{"metrics port too high", func(s *Settings) { s.MetricsPort = 70000 }},
		{"scores without data path", func(s *Settings) { s.StoreScores = true }},
		{"unknown log level", func(s *Settings) { s.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.modify(settings)

			err := settings.Validate()
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !errors.Is(err, common.ErrConfiguration) {
				t.Errorf("Expected configuration error, got %v", err)
			}
		})
	}
}

func TestValidateSettings_ValidVariants(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *Settings)
	}{
		{"model url", func(s *Settings) {
			s.ModelPath = ""
			s.ModelURL = "https://models/ensemble.json"
		}},
		{"stdin", func(s *Settings) {
			s.InputFile = ""
			s.InputStdin = true
		}},
		{"pipe", func(s *Settings) {
			s.InputFile = ""
			s.InputPipe = "zcat data.tsv.gz"
		}},
		{"svm with query key", func(s *Settings) {
			s.InputFormat = "svm"
			s.QueryKey = "qid"
		}},
		{"comma separator", func(s *Settings) { s.TSVSeparator = "," }},
		{"metrics port", func(s *Settings) { s.MetricsPort = 9090 }},
		{"stored scores", func(s *Settings) {
			s.StoreScores = true
			s.DataPath = t.TempDir()
		}},
		{"zstd", func(s *Settings) { s.Compression = "zstd" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.modify(settings)

			if err := settings.Validate(); err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
		})
	}
}
