package model

import "time"

// Backup is the persisted record for one export/import artifact.
// Document is the storage-backend locator for the archive; it is set
// exactly when the record is ready. Provider names the storage driver
// that owns the artifact.
type Backup struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Provider  string    `json:"provider"`
	Document  *string   `json:"document,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// StatePending means an export is in flight; at most one pending
	// record exists at a time. A pending record that fails is removed,
	// there is no failed state.
	StatePending = "pending"
	StateReady   = "ready"
)
