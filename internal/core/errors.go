package core

import "errors"

// Sentinel errors for the backup API taxonomy. Handlers map these onto
// HTTP statuses; everything else is an internal error.
var (
	// ErrNotFound means the id does not resolve to a backup record.
	ErrNotFound = errors.New("not_found")

	// ErrBackupRunning means a pending backup already exists; only one
	// export may be in flight at a time.
	ErrBackupRunning = errors.New("backup_running")

	// ErrBackupPending means the record has no artifact yet.
	ErrBackupPending = errors.New("backup_pending")

	// ErrInvalidInput means the request carried no usable file.
	ErrInvalidInput = errors.New("invalid_file")
)
