package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths resolves locations under the service's local data root. Scratch
// files for exports and imports live here, never inside the content tree.
type Paths struct {
	root string
}

func NewPaths(root string) Paths {
	return Paths{root: root}
}

func (p Paths) Root() string {
	return p.root
}

// BackupsDir is the scratch directory where export archives are assembled
// before being handed to the storage driver.
func (p Paths) BackupsDir() string {
	return filepath.Join(p.root, "backups")
}

func (p Paths) BackupFile(name string) string {
	return filepath.Join(p.BackupsDir(), name+".zip")
}

// ImportFile is the fixed local path a restore downloads its archive to.
func (p Paths) ImportFile() string {
	return filepath.Join(p.root, "import.zip")
}

func (p Paths) EnsureBackupsDir() error {
	if err := os.MkdirAll(p.BackupsDir(), 0o755); err != nil {
		return fmt.Errorf("create backups dir: %w", err)
	}
	return nil
}
