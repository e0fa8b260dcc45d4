package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// FSDriver stores artifacts on the local filesystem under a root directory.
type FSDriver struct {
	root string
	dir  string
}

func NewFSDriver(root, dir string) (*FSDriver, error) {
	d := &FSDriver{root: root, dir: dir}
	if err := os.MkdirAll(d.basePath(), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return d, nil
}

func (d *FSDriver) Name() string { return "fs" }

func (d *FSDriver) Key(name string) string {
	return objectKey(d.dir, name)
}

func (d *FSDriver) basePath() string {
	return filepath.Join(d.root, filepath.FromSlash(d.dir))
}

func (d *FSDriver) path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(d.Key(key)))
}

func (d *FSDriver) Write(ctx context.Context, key string, data []byte) (string, error) {
	if err := os.WriteFile(d.path(key), data, 0o644); err != nil {
		return "", fmt.Errorf("fs write %s: %w", key, err)
	}
	return d.Key(key), nil
}

func (d *FSDriver) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fs read %s: %w", key, err)
	}
	return data, nil
}

func (d *FSDriver) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	fi, err := os.Stat(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("fs stat %s: %w", key, err)
	}
	return ObjectInfo{
		Size:        fi.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(key)),
	}, nil
}

func (d *FSDriver) OpenRead(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fs open %s: %w", key, err)
	}
	return f, nil
}

func (d *FSDriver) OpenWrite(ctx context.Context, key string) (io.WriteCloser, error) {
	f, err := os.Create(d.path(key))
	if err != nil {
		return nil, fmt.Errorf("fs create %s: %w", key, err)
	}
	return f, nil
}

func (d *FSDriver) UploadStream(ctx context.Context, key string, r io.Reader) (string, error) {
	f, err := os.Create(d.path(key))
	if err != nil {
		return "", fmt.Errorf("fs create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(d.path(key))
		return "", fmt.Errorf("fs upload %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("fs close %s: %w", key, err)
	}
	return d.Key(key), nil
}

func (d *FSDriver) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := os.Remove(d.path(key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("fs delete %s: %w", key, err)
		}
	}
	return nil
}

func (d *FSDriver) Copy(ctx context.Context, src, dst string) error {
	in, err := os.Open(d.path(src))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("fs copy open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(d.path(dst))
	if err != nil {
		return fmt.Errorf("fs copy create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("fs copy %s -> %s: %w", src, dst, err)
	}
	return out.Close()
}
