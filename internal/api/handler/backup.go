package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	mw "github.com/quillcms/quill/internal/api/middleware"
	"github.com/quillcms/quill/internal/api/request"
	"github.com/quillcms/quill/internal/api/response"
	"github.com/quillcms/quill/internal/core"
	"github.com/quillcms/quill/internal/model"
	"github.com/quillcms/quill/internal/storage"
)

type Backup struct {
	svc    *core.BackupService
	driver storage.Driver
	logger zerolog.Logger
}

func NewBackup(svc *core.BackupService, driver storage.Driver, logger zerolog.Logger) *Backup {
	return &Backup{svc: svc, driver: driver, logger: logger}
}

func (h *Backup) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.svc.List(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	response.WriteJSON(w, http.StatusOK, backups)
}

func (h *Backup) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	backup, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeBackupError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, backup)
}

// Create starts a snapshot export. The pending record is committed before
// this responds; the export itself runs detached.
func (h *Backup) Create(w http.ResponseWriter, r *http.Request) {
	backup, err := h.svc.CreateSnapshot(r.Context())
	if err != nil {
		writeBackupError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, backup)
}

// Import records an uploaded archive as a ready backup. The artifact is
// stored through the driver's upload path before the record is inserted.
func (h *Backup) Import(w http.ResponseWriter, r *http.Request) {
	key, err := storage.ReceiveUpload(r.Context(), h.driver, r, "file")
	if err != nil {
		if errors.Is(err, storage.ErrNoFile) {
			response.WriteError(w, http.StatusBadRequest, core.ErrInvalidInput.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	backup, err := h.svc.CreateFromUpload(r.Context(), key)
	if err != nil {
		writeBackupError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, backup)
}

func (h *Backup) Restore(w http.ResponseWriter, r *http.Request) {
	var req request.RestoreBackup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user string
	if identity := mw.GetIdentity(r.Context()); identity != nil {
		user = identity.ID
	}

	if err := h.svc.Restore(r.Context(), user, req.ID, req.Force); err != nil {
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrBackupPending) {
			writeBackupError(w, err)
			return
		}
		// Importer errors pass through verbatim.
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Backup) Download(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc, filename, err := h.svc.Download(r.Context(), id)
	if err != nil {
		writeBackupError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone by now; all we can do is log.
		h.logger.Warn().Err(err).Str("id", id).Msg("backup download aborted")
	}
}

func (h *Backup) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeBackupError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"id": id})
}

// writeBackupError maps service sentinels onto the API taxonomy.
func writeBackupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		response.WriteError(w, http.StatusNotFound, core.ErrNotFound.Error())
	case errors.Is(err, core.ErrBackupRunning):
		response.WriteError(w, http.StatusBadRequest, core.ErrBackupRunning.Error())
	case errors.Is(err, core.ErrBackupPending):
		response.WriteError(w, http.StatusBadRequest, core.ErrBackupPending.Error())
	case errors.Is(err, core.ErrInvalidInput):
		response.WriteError(w, http.StatusBadRequest, core.ErrInvalidInput.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
