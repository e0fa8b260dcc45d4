package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrNotFound is returned when a key does not resolve to a stored object.
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Size         int64
	ContentType  string
	CacheControl string
}

// Driver is the uniform capability over one artifact store. Implementations
// are constructed once per configuration by the Registry and shared across
// requests, so they must be safe for concurrent use.
type Driver interface {
	// Name identifies the backend ("fs", "s3"). Backup records persist it
	// so the artifact can be resolved by the same backend later.
	Name() string

	// Key normalizes a caller-supplied name into the driver's object key.
	// Upload locators and caller keys are not always the same shape, so a
	// full path is tolerated by taking its last segment.
	Key(name string) string

	Write(ctx context.Context, key string, data []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	OpenRead(ctx context.Context, key string) (io.ReadCloser, error)
	OpenWrite(ctx context.Context, key string) (io.WriteCloser, error)

	// UploadStream stores the reader's contents under key and returns the
	// locator. It is the path multipart uploads take.
	UploadStream(ctx context.Context, key string, r io.Reader) (string, error)

	// Delete removes the given keys, tolerating keys that are already gone.
	Delete(ctx context.Context, keys ...string) error

	Copy(ctx context.Context, src, dst string) error
}

// objectKey joins the driver's configured dir prefix with the last path
// segment of name.
func objectKey(dir, name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
