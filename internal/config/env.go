package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file into the process environment if one exists.
// Variables already set are not overwritten. A missing file is not an error.
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// ApplyEnv overwrites fields of cfg from BACI_* environment variables when
// they are set (non-empty). Malformed numeric values are ignored.
func ApplyEnv(cfg *Run) {
	setStr(&cfg.Job, "BACI_JOB")
	setStr(&cfg.InputDir, "BACI_INPUT_DIR")
	setStr(&cfg.OutputFile, "BACI_OUTPUT_FILE")
	setStr(&cfg.Format, "BACI_FORMAT")

	setBool(&cfg.Sampling.Enabled, "BACI_SAMPLE")
	setFloat64(&cfg.Sampling.Fraction, "BACI_SAMPLE_FRACTION")
	setUint64(&cfg.Sampling.Seed, "BACI_SEED")

	setInt(&cfg.Runtime.Workers, "BACI_WORKERS")
	setInt(&cfg.Runtime.ChunkSize, "BACI_CHUNK_SIZE")
	setInt(&cfg.Summary.TopN, "BACI_TOP_N")

	setStr(&cfg.Storage.DSN, "BACI_STORAGE_DSN")
	setStr(&cfg.Storage.Table, "BACI_STORAGE_TABLE")
	setInt(&cfg.Storage.BatchSize, "BACI_STORAGE_BATCH_SIZE")

	setStr(&cfg.Publish.S3.Endpoint, "BACI_S3_ENDPOINT")
	setStr(&cfg.Publish.S3.Region, "BACI_S3_REGION")
	setStr(&cfg.Publish.S3.Bucket, "BACI_S3_BUCKET")
	setStr(&cfg.Publish.S3.Prefix, "BACI_S3_PREFIX")
	setStr(&cfg.Publish.S3.AccessKey, "BACI_S3_ACCESS_KEY")
	setStr(&cfg.Publish.S3.SecretKey, "BACI_S3_SECRET_KEY")
	setBool(&cfg.Publish.S3.UseSSL, "BACI_S3_USE_SSL")
	setBool(&cfg.Publish.S3.ForcePathStyle, "BACI_S3_FORCE_PATH_STYLE")

	setStr(&cfg.Metrics.Backend, "BACI_METRICS_BACKEND")
	setStr(&cfg.Metrics.PushgatewayURL, "BACI_PUSHGATEWAY_URL")
	setStr(&cfg.Metrics.DatadogAddr, "BACI_DATADOG_ADDR")
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
