package common

// Environment variable keys
const (
	EnvConfigFile        = "TREEVAL_CONFIG"
	EnvDotEnvFile        = "TREEVAL_DOTENV"
	EnvModelPath         = "MODEL_PATH"
	EnvModelURL          = "MODEL_URL"
	EnvModelTimeout      = "MODEL_TIMEOUT"
	EnvInputFormat       = "INPUT_FORMAT"
	EnvInputFile         = "INPUT_FILE"
	EnvInputPipe         = "INPUT_PIPE"
	EnvInputStdin        = "INPUT_STDIN"
	EnvCompression       = "INPUT_COMPRESSION"
	EnvTSVSeparator      = "TSV_SEPARATOR"
	EnvLabelColumn       = "LABEL_COLUMN"
	EnvQueryColumn       = "QUERY_COLUMN"
	EnvQueryKey          = "QUERY_KEY"
	EnvObjective         = "OBJECTIVE"
	EnvMetric            = "METRIC"
	EnvNDCGDepth         = "NDCG_DEPTH"
	EnvExponentiateLabel = "EXPONENTIATE_LABEL"
	EnvGenerationsFile   = "GENERATIONS_FILE"
	EnvScoreFile         = "SCORE_FILE"
	EnvReportFile        = "REPORT_FILE"
	EnvDataPath          = "DATA_PATH"
	EnvStoreScores       = "STORE_SCORES"
	EnvMetricsPort       = "METRICS_PORT"
	EnvLogLevel          = "LOG_LEVEL"
)

// Configuration defaults
const (
	DefaultDotEnvFile   = ".env"
	DefaultInputFormat  = FormatTSV
	DefaultCompression  = CompressionAuto
	DefaultTSVSeparator = "\t"
	DefaultLabelColumn  = "Label"
	DefaultLogLevel     = "info"
	DefaultModelTimeout = "30s"
)

// Input formats
const (
	FormatTSV = "tsv"
	FormatSVM = "svm"
)

// Input compression modes
const (
	CompressionAuto = "auto"
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

// Objectives the ensemble may have been trained for
const (
	ObjectiveRegression           = "regression"
	ObjectiveBinaryClassification = "binary_classification"
	ObjectiveLambdaRank           = "lambda_rank"
)

// StdinPath selects standard input as the data source.
const StdinPath = "-"
