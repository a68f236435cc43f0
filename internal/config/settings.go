package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment keys
const (
	KeyOutputDir       = "DLIVE_OUTPUT_DIR"
	KeyEndpoint        = "DLIVE_API_ENDPOINT"
	KeyUserAgent       = "DLIVE_USER_AGENT"
	KeyFFmpegPath      = "FFMPEG_PATH"
	KeySegmentWorkers  = "SEGMENT_WORKERS"
	KeyMaxParallel     = "MAX_PARALLEL_DOWNLOADS"
	KeyAllowInitOnly   = "ALLOW_INIT_ONLY"
	KeyLogLevel        = "LOG_LEVEL"
	KeyLogFile         = "LOG_FILE"
	KeyUploadEndpoint  = "UPLOAD_S3_ENDPOINT"
	KeyUploadAccessKey = "UPLOAD_S3_ACCESS_KEY"
	KeyUploadSecretKey = "UPLOAD_S3_SECRET_KEY"
	KeyUploadBucket    = "UPLOAD_S3_BUCKET"
	KeyUploadRegion    = "UPLOAD_S3_REGION"
	KeyUploadUseSSL    = "UPLOAD_S3_USE_SSL"
)

// Default values
const (
	DefaultSegmentWorkers = 4
	DefaultMaxParallel    = 2
	MinSegmentWorkers     = 1
	MaxSegmentWorkers     = 16
	DefaultLogLevel       = "info"
)

// UploadSettings configures the optional post-download artifact upload to
// an S3-compatible bucket. Upload is enabled only when an endpoint and a
// bucket are both set.
type UploadSettings struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Enabled reports whether upload is configured.
func (u UploadSettings) Enabled() bool {
	return u.Endpoint != "" && u.Bucket != ""
}

// Settings holds the application configuration, loaded from environment
// variables (optionally via a .env file) with sensible defaults.
type Settings struct {
	OutputDir      string
	Endpoint       string // "" keeps the built-in GraphQL endpoint
	UserAgent      string // "" keeps the built-in user agent
	FFmpegPath     string
	SegmentWorkers int
	MaxParallel    int
	AllowInitOnly  bool
	LogLevel       string
	LogFile        string
	Upload         UploadSettings
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored but never overrides variables already set.
func Load() *Settings {
	// Missing .env is the normal case; existing env vars win either way.
	_ = godotenv.Load()

	outputDir := getEnv(KeyOutputDir, "")
	if outputDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			outputDir = cwd
		} else {
			outputDir = "."
		}
	}

	s := &Settings{
		OutputDir:      outputDir,
		Endpoint:       getEnv(KeyEndpoint, ""),
		UserAgent:      getEnv(KeyUserAgent, ""),
		FFmpegPath:     getEnv(KeyFFmpegPath, ""),
		SegmentWorkers: getEnvInt(KeySegmentWorkers, DefaultSegmentWorkers),
		MaxParallel:    getEnvInt(KeyMaxParallel, DefaultMaxParallel),
		AllowInitOnly:  getEnvBool(KeyAllowInitOnly, true),
		LogLevel:       getEnv(KeyLogLevel, DefaultLogLevel),
		LogFile:        getEnv(KeyLogFile, ""),
		Upload: UploadSettings{
			Endpoint:  getEnv(KeyUploadEndpoint, ""),
			AccessKey: getEnv(KeyUploadAccessKey, ""),
			SecretKey: getEnv(KeyUploadSecretKey, ""),
			Bucket:    getEnv(KeyUploadBucket, ""),
			Region:    getEnv(KeyUploadRegion, ""),
			UseSSL:    getEnvBool(KeyUploadUseSSL, true),
		},
	}
	s.clamp()
	return s
}

// clamp keeps numeric settings inside their supported ranges.
func (s *Settings) clamp() {
	if s.SegmentWorkers < MinSegmentWorkers {
		s.SegmentWorkers = MinSegmentWorkers
	}
	if s.SegmentWorkers > MaxSegmentWorkers {
		s.SegmentWorkers = MaxSegmentWorkers
	}
	if s.MaxParallel < 1 {
		s.MaxParallel = 1
	}
	if s.MaxParallel > 10 {
		s.MaxParallel = 10
	}
}
