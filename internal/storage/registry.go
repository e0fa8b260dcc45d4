package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/quillcms/quill/internal/config"
)

// Registry constructs one driver per distinct storage configuration and
// reuses it across requests. Drivers hold long-lived connections, so
// construction is keyed by a fingerprint of the non-default parameters
// rather than happening per call.
type Registry struct {
	mu      sync.Mutex
	drivers map[string]Driver
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Get returns the driver for the given configuration, constructing it on
// first use.
func (r *Registry) Get(ctx context.Context, cfg config.StorageConfig) (Driver, error) {
	key := Fingerprint(cfg)

	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.drivers[key]; ok {
		return d, nil
	}

	d, err := newDriver(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r.drivers[key] = d
	return d, nil
}

func newDriver(ctx context.Context, cfg config.StorageConfig) (Driver, error) {
	switch cfg.Driver {
	case "fs":
		return NewFSDriver(cfg.Root, cfg.Dir)
	case "s3":
		return NewS3Driver(ctx, S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Dir:       cfg.Dir,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Fingerprint hashes the connection-relevant parameters of a storage config.
// Two configs with the same fingerprint share a driver instance.
func Fingerprint(cfg config.StorageConfig) string {
	parts := []string{
		cfg.Driver,
		cfg.Dir,
		cfg.Root,
		cfg.S3Endpoint,
		cfg.S3Region,
		cfg.S3Bucket,
		cfg.S3AccessKey,
		cfg.S3SecretKey,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
