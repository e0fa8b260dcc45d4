package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceName    string `yaml:"service_name"`
	DatabaseURL    string `yaml:"database_url"`
	HTTPListenAddr string `yaml:"http_listen_addr"`
	LogLevel       string `yaml:"log_level"`

	// DataDir is the local root for scratch files (export assembly,
	// restore downloads). ContentDir is the tree the archiver captures.
	DataDir    string `yaml:"data_dir"`
	ContentDir string `yaml:"content_dir"`

	Storage StorageConfig `yaml:"storage"`
}

// StorageConfig selects and parameterizes the artifact storage backend.
type StorageConfig struct {
	// Driver is "fs" or "s3".
	Driver string `yaml:"driver"`
	// Dir prefixes every object key so unrelated data can share a
	// bucket or filesystem root.
	Dir string `yaml:"dir"`
	// Root is the base directory for the fs driver.
	Root string `yaml:"root"`

	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Region    string `yaml:"s3_region"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
}

// Load builds the config from an optional YAML file (QUILL_CONFIG) with
// environment variables taking precedence.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("QUILL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.ServiceName = getEnv("SERVICE_NAME", fallback(cfg.ServiceName, "quill-api"))
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.HTTPListenAddr = getEnv("HTTP_LISTEN_ADDR", fallback(cfg.HTTPListenAddr, ":8090"))
	cfg.LogLevel = getEnv("LOG_LEVEL", fallback(cfg.LogLevel, "info"))
	cfg.DataDir = getEnv("DATA_DIR", fallback(cfg.DataDir, "data"))
	cfg.ContentDir = getEnv("CONTENT_DIR", fallback(cfg.ContentDir, "content"))

	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", fallback(cfg.Storage.Driver, "fs"))
	cfg.Storage.Dir = getEnv("STORAGE_DIR", fallback(cfg.Storage.Dir, "quill/upload"))
	cfg.Storage.Root = getEnv("STORAGE_ROOT", fallback(cfg.Storage.Root, "data/storage"))
	cfg.Storage.S3Endpoint = getEnv("S3_ENDPOINT", cfg.Storage.S3Endpoint)
	cfg.Storage.S3Region = getEnv("S3_REGION", fallback(cfg.Storage.S3Region, "us-east-1"))
	cfg.Storage.S3Bucket = getEnv("S3_BUCKET", cfg.Storage.S3Bucket)
	cfg.Storage.S3AccessKey = getEnv("S3_ACCESS_KEY", cfg.Storage.S3AccessKey)
	cfg.Storage.S3SecretKey = getEnv("S3_SECRET_KEY", cfg.Storage.S3SecretKey)

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.Storage.Driver {
	case "fs":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
