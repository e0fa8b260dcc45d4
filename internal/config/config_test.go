package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "quill-api", cfg.ServiceName)
	assert.Equal(t, ":8090", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "content", cfg.ContentDir)
	assert.Equal(t, "fs", cfg.Storage.Driver)
	assert.Equal(t, "quill/upload", cfg.Storage.Dir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/quill")
	t.Setenv("HTTP_LISTEN_ADDR", ":9999")
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("S3_BUCKET", "quill-backups")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/quill", cfg.DatabaseURL)
	assert.Equal(t, ":9999", cfg.HTTPListenAddr)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, "quill-backups", cfg.Storage.S3Bucket)
}

func TestLoad_YAMLFile_EnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://filehost/quill
log_level: debug
storage:
  driver: s3
  s3_bucket: file-bucket
`), 0o644))
	t.Setenv("QUILL_CONFIG", path)
	t.Setenv("S3_BUCKET", "env-bucket")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://filehost/quill", cfg.DatabaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, "env-bucket", cfg.Storage.S3Bucket, "environment overrides the file")
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("::: not yaml"), 0o644))
	t.Setenv("QUILL_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{DatabaseURL: "", Storage: StorageConfig{Driver: "fs"}}
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")

	cfg = &Config{DatabaseURL: "postgres://x", Storage: StorageConfig{Driver: "fs"}}
	assert.NoError(t, cfg.Validate())

	cfg = &Config{DatabaseURL: "postgres://x", Storage: StorageConfig{Driver: "s3"}}
	assert.ErrorContains(t, cfg.Validate(), "S3_BUCKET")

	cfg = &Config{DatabaseURL: "postgres://x", Storage: StorageConfig{Driver: "s3", S3Bucket: "b"}}
	assert.NoError(t, cfg.Validate())

	cfg = &Config{DatabaseURL: "postgres://x", Storage: StorageConfig{Driver: "ftp"}}
	assert.ErrorContains(t, cfg.Validate(), "unknown storage driver")
}
