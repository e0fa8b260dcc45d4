package storage

import (
	"context"
	"fmt"
	"io"
	"os"
)

// DriverToFs copies a backend-resident artifact to a local path and returns
// that path. The file is fully written and closed on return. A missing key
// surfaces as ErrNotFound, distinct from transient read failures.
func DriverToFs(ctx context.Context, d Driver, key, localPath string) (string, error) {
	src, err := d.OpenRead(ctx, key)
	if err != nil {
		if err == ErrNotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("open %s from %s driver: %w", key, d.Name(), err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", localPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(localPath)
		return "", fmt.Errorf("copy %s to %s: %w", key, localPath, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("close %s: %w", localPath, err)
	}

	return localPath, nil
}

// FsToDriver uploads a local file to the driver and returns the locator.
// Partially written objects have no visibility guarantee; callers must only
// read the key after this returns.
func FsToDriver(ctx context.Context, d Driver, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	locator, err := d.UploadStream(ctx, key, f)
	if err != nil {
		return "", fmt.Errorf("upload %s to %s driver: %w", localPath, d.Name(), err)
	}
	return locator, nil
}
