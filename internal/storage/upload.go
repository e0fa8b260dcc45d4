package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrNoFile is returned when the multipart request carries no usable file.
var ErrNoFile = errors.New("no file in request")

// maxUploadMemory bounds how much of the multipart form is held in memory
// before spilling to temp files.
const maxUploadMemory = 32 << 20

// ReceiveUpload is the multipart adapter for artifact uploads: it pulls the
// named file field out of the request, stores the bytes through the driver
// under a fresh key, and returns the resulting locator. The fs driver
// streams straight to disk; the s3 driver buffers the file in memory before
// committing.
func ReceiveUpload(ctx context.Context, d Driver, r *http.Request, field string) (string, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return "", ErrNoFile
	}

	file, _, err := r.FormFile(field)
	if err != nil {
		return "", ErrNoFile
	}
	defer file.Close()

	key := uuid.New().String()
	locator, err := d.UploadStream(ctx, key, file)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return locator, nil
}
