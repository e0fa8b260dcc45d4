package core

import "context"

// Archiver is the content export/import capability. The backup service
// treats the archive format as opaque: Export produces a local archive
// file, Import consumes one.
type Archiver interface {
	Export(ctx context.Context, output string) error
	Import(ctx context.Context, params ImportParams) error
}

// ImportParams carries a restore request into the archiver. User is the
// caller identity, File a local archive path. Force lets the import
// overwrite existing content.
type ImportParams struct {
	User  string
	File  string
	Force bool
}
