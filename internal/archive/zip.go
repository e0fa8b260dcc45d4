package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quillcms/quill/internal/core"
)

// ZipArchiver captures the content directory as a zip archive and restores
// it from one. It implements core.Archiver.
type ZipArchiver struct {
	contentDir string
	logger     zerolog.Logger
}

func NewZipArchiver(contentDir string, logger zerolog.Logger) *ZipArchiver {
	return &ZipArchiver{
		contentDir: contentDir,
		logger:     logger.With().Str("component", "archiver").Logger(),
	}
}

// Export writes the content tree to output as a zip archive.
func (a *ZipArchiver) Export(ctx context.Context, output string) error {
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", output, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	err = filepath.Walk(a.contentDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(a.contentDir, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, src)
		src.Close()
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("archive content dir: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	a.logger.Info().Str("output", output).Msg("content exported")
	return nil
}

// Import extracts the archive over the content tree. Without force a
// non-empty content dir rejects the import.
func (a *ZipArchiver) Import(ctx context.Context, params core.ImportParams) error {
	if !params.Force {
		empty, err := dirEmpty(a.contentDir)
		if err != nil {
			return err
		}
		if !empty {
			return fmt.Errorf("content dir %s is not empty, use force to overwrite", a.contentDir)
		}
	}

	zr, err := zip.OpenReader(params.File)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", params.File, err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.extract(zf); err != nil {
			return fmt.Errorf("extract %s: %w", zf.Name, err)
		}
	}

	a.logger.Info().Str("file", params.File).Str("user", params.User).Msg("content imported")
	return nil
}

func (a *ZipArchiver) extract(zf *zip.File) error {
	// Reject entries that would escape the content dir.
	name := filepath.FromSlash(zf.Name)
	dst := filepath.Join(a.contentDir, name)
	if !strings.HasPrefix(dst, filepath.Clean(a.contentDir)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal archive path %q", zf.Name)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	src, err := zf.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func dirEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("read content dir: %w", err)
	}
	return len(entries) == 0, nil
}
