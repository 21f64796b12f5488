package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageS3    = "s3"
	StorageMinio = "minio"
	StorageGCS   = "gcs"
	StorageLocal = "local"

	ReaderGDAL = "gdal"
	ReaderTIFF = "tiff"
)

// Config holds runtime configuration for the salvage CLI and server.
type Config struct {
	// Salvage run
	ScratchDir       string
	KeepScratch      bool
	Tolerance        float64
	ProbeSuffix      string
	TrimSuffix       string
	CleanKeyPrefix   string
	SalvageKeyPrefix string
	BatchConcurrency int

	// Raster tooling
	RasterReader     string
	GDALTranslateBin string
	GDALInfoBin      string

	// Blob storage
	StorageBackend         string
	StorageRoot            string
	StorageRetryMaxElapsed time.Duration
	S3Region               string
	S3Endpoint             string
	S3ForcePathStyle       bool
	S3AccessKeyID          string
	S3SecretAccessKey      string
	MinioEndpoint          string
	MinioAccessKey         string
	MinioSecretKey         string
	MinioUseSSL            bool
	GCSCredentialsFile     string

	// Run journal; empty disables it
	DatabaseURL string

	// HTTP server
	ListenAddr       string
	AdminToken       string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitWindow  time.Duration
	RateLimitIP      int
	RateLimitKey     int
}

func Load() (Config, error) {
	cfg := Config{
		ScratchDir:       getenv("SCRATCH_DIR", os.TempDir()),
		KeepScratch:      getenvBool("KEEP_SCRATCH", false),
		Tolerance:        getenvFloat("SALVAGE_TOLERANCE", 0.95),
		ProbeSuffix:      getenv("PROBE_SUFFIX", "_forthelulz"),
		TrimSuffix:       getenv("TRIM_SUFFIX", "_compressed_and_trimmed"),
		CleanKeyPrefix:   getenv("CLEAN_KEY_PREFIX", "trimmed/"),
		SalvageKeyPrefix: getenv("SALVAGE_KEY_PREFIX", "trimmed/"),
		BatchConcurrency: getenvInt("BATCH_CONCURRENCY", 1),

		RasterReader:     strings.ToLower(getenv("RASTER_READER", ReaderGDAL)),
		GDALTranslateBin: getenv("GDAL_TRANSLATE_BIN", "gdal_translate"),
		GDALInfoBin:      getenv("GDALINFO_BIN", "gdalinfo"),

		StorageBackend:         strings.ToLower(getenv("STORAGE_BACKEND", StorageS3)),
		StorageRoot:            getenv("STORAGE_ROOT", "./data"),
		StorageRetryMaxElapsed: getenvDuration("STORAGE_RETRY_MAX_ELAPSED", 0),
		S3Region:               getenv("S3_REGION", ""),
		S3Endpoint:             getenv("S3_ENDPOINT", ""),
		S3ForcePathStyle:       getenvBool("S3_FORCE_PATH_STYLE", false),
		S3AccessKeyID:          getenv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:      getenv("S3_SECRET_ACCESS_KEY", ""),
		MinioEndpoint:          getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey:         getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:         getenv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:            getenvBool("MINIO_USE_SSL", true),
		GCSCredentialsFile:     getenv("GCS_CREDENTIALS_FILE", ""),

		DatabaseURL: getenv("DATABASE_URL", ""),

		ListenAddr:       getenv("LISTEN_ADDR", ":8080"),
		AdminToken:       getenv("ADMIN_TOKEN", ""),
		HTTPReadTimeout:  getenvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		HTTPWriteTimeout: getenvDuration("HTTP_WRITE_TIMEOUT", 30*time.Minute),
		HTTPIdleTimeout:  getenvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		RateLimitWindow:  getenvDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitIP:      getenvInt("RATE_LIMIT_IP", 10),
		RateLimitKey:     getenvInt("RATE_LIMIT_KEY", 60),
	}

	if !(cfg.Tolerance > 0 && cfg.Tolerance <= 1) {
		return Config{}, fmt.Errorf("SALVAGE_TOLERANCE must be in (0, 1], got %v", cfg.Tolerance)
	}
	if strings.TrimSpace(cfg.ScratchDir) == "" {
		return Config{}, fmt.Errorf("SCRATCH_DIR cannot be empty")
	}
	if cfg.ProbeSuffix == cfg.TrimSuffix {
		return Config{}, fmt.Errorf("PROBE_SUFFIX and TRIM_SUFFIX must differ")
	}
	switch cfg.RasterReader {
	case ReaderGDAL, ReaderTIFF:
	default:
		return Config{}, fmt.Errorf("RASTER_READER must be %q or %q, got %q", ReaderGDAL, ReaderTIFF, cfg.RasterReader)
	}
	switch cfg.StorageBackend {
	case StorageS3, StorageGCS:
	case StorageMinio:
		if cfg.MinioEndpoint == "" {
			return Config{}, fmt.Errorf("MINIO_ENDPOINT is required for the minio backend")
		}
	case StorageLocal:
		if strings.TrimSpace(cfg.StorageRoot) == "" {
			return Config{}, fmt.Errorf("STORAGE_ROOT cannot be empty")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 1
	}
	if cfg.StorageRetryMaxElapsed < 0 {
		cfg.StorageRetryMaxElapsed = 0
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
