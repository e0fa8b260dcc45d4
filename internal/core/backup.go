package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/quillcms/quill/internal/model"
	"github.com/quillcms/quill/internal/platform"
	"github.com/quillcms/quill/internal/storage"
)

const backupColumns = "id, name, state, provider, document, created_at, updated_at"

// BackupService owns the backup lifecycle: snapshot exports, uploads,
// restores, downloads, and deletion. All state transitions of backup
// records go through here.
type BackupService struct {
	db       DB
	driver   storage.Driver
	archiver Archiver
	paths    platform.Paths
	runner   *Runner
	logger   zerolog.Logger
}

func NewBackupService(db DB, driver storage.Driver, archiver Archiver, paths platform.Paths, runner *Runner, logger zerolog.Logger) *BackupService {
	return &BackupService{
		db:       db,
		driver:   driver,
		archiver: archiver,
		paths:    paths,
		runner:   runner,
		logger:   logger.With().Str("component", "backup-service").Logger(),
	}
}

func (s *BackupService) List(ctx context.Context) ([]model.Backup, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+backupColumns+` FROM backups ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		var b model.Backup
		if err := rows.Scan(&b.ID, &b.Name, &b.State, &b.Provider, &b.Document, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backups: %w", err)
	}
	return backups, nil
}

func (s *BackupService) GetByID(ctx context.Context, id string) (*model.Backup, error) {
	var b model.Backup
	err := s.db.QueryRow(ctx,
		`SELECT `+backupColumns+` FROM backups WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.State, &b.Provider, &b.Document, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get backup %s: %w", id, err)
	}
	return &b, nil
}

// CreateSnapshot inserts a pending record and detaches the export. The
// insert is a single guarded statement, so by the time the caller gets a
// response the pending row is committed and any concurrent create observes
// it. A partial unique index over pending rows backs the guard at the
// schema level.
func (s *BackupService) CreateSnapshot(ctx context.Context) (*model.Backup, error) {
	now := time.Now().UTC()
	backup := &model.Backup{
		ID:        platform.NewID(),
		Name:      platform.NewName("bk"),
		State:     model.StatePending,
		Provider:  s.driver.Name(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO backups (id, name, state, provider, created_at, updated_at)
		 SELECT $1, $2, $3, $4, $5, $6
		 WHERE NOT EXISTS (SELECT 1 FROM backups WHERE state = $7)`,
		backup.ID, backup.Name, backup.State, backup.Provider,
		backup.CreatedAt, backup.UpdatedAt, model.StatePending,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrBackupRunning
		}
		return nil, fmt.Errorf("insert pending backup: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrBackupRunning
	}

	s.runner.Go("backup-export-"+backup.ID, func(ctx context.Context) error {
		return s.runExport(ctx, backup)
	})

	return backup, nil
}

// runExport is the detached phase of CreateSnapshot: build the archive in
// the scratch dir, hand it to the storage driver, mark the record ready.
// Any failure, a panic in the archiver included, deletes the partial
// artifact and the pending record; the scratch file is removed in every
// outcome.
func (s *BackupService) runExport(ctx context.Context, backup *model.Backup) error {
	output := s.paths.BackupFile(backup.Name)
	key := "export-" + backup.Name
	defer os.Remove(output)

	err := func() (err error) {
		// A panicking export must still reach the cleanup below, or the
		// pending record would block every later create.
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("export panic: %v", p)
			}
		}()
		if err := s.paths.EnsureBackupsDir(); err != nil {
			return err
		}
		if err := s.archiver.Export(ctx, output); err != nil {
			return fmt.Errorf("export content: %w", err)
		}

		locator, err := storage.FsToDriver(ctx, s.driver, output, key)
		if err != nil {
			return err
		}

		_, err = s.db.Exec(ctx,
			`UPDATE backups SET state = $1, document = $2, updated_at = $3 WHERE id = $4`,
			model.StateReady, locator, time.Now().UTC(), backup.ID)
		if err != nil {
			return fmt.Errorf("mark backup %s ready: %w", backup.ID, err)
		}
		return nil
	}()

	if err != nil {
		if derr := s.driver.Delete(ctx, key); derr != nil {
			s.logger.Warn().Err(derr).Str("key", key).Msg("failed to delete partial backup artifact")
		}
		if _, derr := s.db.Exec(ctx, `DELETE FROM backups WHERE id = $1`, backup.ID); derr != nil {
			s.logger.Warn().Err(derr).Str("id", backup.ID).Msg("failed to delete pending backup record")
		}
		return fmt.Errorf("backup export %s: %w", backup.ID, err)
	}

	return nil
}

// CreateFromUpload records an already-stored uploaded artifact as a ready
// backup. If persistence fails the artifact is deleted before the error is
// returned, so a failed import leaves nothing behind.
func (s *BackupService) CreateFromUpload(ctx context.Context, key string) (*model.Backup, error) {
	now := time.Now().UTC()
	backup := &model.Backup{
		ID:        platform.NewID(),
		Name:      platform.NewName("bk"),
		State:     model.StateReady,
		Provider:  s.driver.Name(),
		Document:  &key,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO backups (id, name, state, provider, document, created_at, updated_at)
		 SELECT $1, $2, $3, $4, $5, $6, $7
		 WHERE NOT EXISTS (SELECT 1 FROM backups WHERE state = $8)`,
		backup.ID, backup.Name, backup.State, backup.Provider, key,
		backup.CreatedAt, backup.UpdatedAt, model.StatePending,
	)
	if err != nil || tag.RowsAffected() == 0 {
		if derr := s.driver.Delete(ctx, key); derr != nil {
			s.logger.Warn().Err(derr).Str("key", key).Msg("failed to delete uploaded artifact after insert failure")
		}
		if err != nil {
			return nil, fmt.Errorf("insert uploaded backup: %w", err)
		}
		return nil, ErrBackupRunning
	}

	return backup, nil
}

// Restore copies the record's artifact to the local import path and hands
// it to the archiver. The local file is removed whether the import succeeds
// or fails, and the archiver's error is returned unchanged.
func (s *BackupService) Restore(ctx context.Context, user, id string, force bool) error {
	backup, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if backup.Document == nil {
		return ErrBackupPending
	}
	if err := s.checkProvider(backup); err != nil {
		return err
	}

	file, err := storage.DriverToFs(ctx, s.driver, *backup.Document, s.paths.ImportFile())
	if err != nil {
		return fmt.Errorf("fetch backup %s artifact: %w", id, err)
	}
	defer os.Remove(file)

	return s.archiver.Import(ctx, ImportParams{User: user, File: file, Force: force})
}

// Download opens a read stream over the record's artifact and returns the
// attachment filename to serve it under.
func (s *BackupService) Download(ctx context.Context, id string) (io.ReadCloser, string, error) {
	backup, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if backup.State == model.StatePending || backup.Document == nil {
		return nil, "", ErrBackupPending
	}
	if err := s.checkProvider(backup); err != nil {
		return nil, "", err
	}

	rc, err := s.driver.OpenRead(ctx, *backup.Document)
	if err != nil {
		return nil, "", fmt.Errorf("open backup %s artifact: %w", id, err)
	}

	filename := fmt.Sprintf("export-%s-%s.zip", backup.Name, backup.CreatedAt.UTC().Format(time.RFC3339))
	return rc, filename, nil
}

// Delete removes the artifact, then the record. Artifact deletion failures
// are logged but do not block record removal; a transient storage error
// must not make a record permanently undeletable. The resulting orphaned
// artifact is reconciled out of band. Pending records are deletable too,
// which is the escape hatch for an export that crashed without cleaning up.
func (s *BackupService) Delete(ctx context.Context, id string) error {
	backup, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if backup.Document != nil {
		if err := s.checkProvider(backup); err != nil {
			return err
		}
		if err := s.driver.Delete(ctx, *backup.Document); err != nil {
			s.logger.Warn().Err(err).Str("id", id).Str("key", *backup.Document).
				Msg("failed to delete backup artifact, removing record anyway")
		}
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM backups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete backup %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// checkProvider rejects cross-provider resolution: a record written by one
// backend cannot be read through another.
func (s *BackupService) checkProvider(b *model.Backup) error {
	if b.Provider != s.driver.Name() {
		return fmt.Errorf("provider mismatch: backup %s stored by %q, active driver is %q", b.ID, b.Provider, s.driver.Name())
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
