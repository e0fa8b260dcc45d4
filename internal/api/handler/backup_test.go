package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mw "github.com/quillcms/quill/internal/api/middleware"
	"github.com/quillcms/quill/internal/core"
	"github.com/quillcms/quill/internal/model"
	"github.com/quillcms/quill/internal/platform"
	"github.com/quillcms/quill/internal/storage"
)

type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error { return m.scanFunc(dest...) }

type fakeArchiver struct {
	importErr error
	imports   []core.ImportParams
}

func (a *fakeArchiver) Export(ctx context.Context, output string) error {
	return os.WriteFile(output, []byte("archive-bytes"), 0o644)
}

func (a *fakeArchiver) Import(ctx context.Context, params core.ImportParams) error {
	a.imports = append(a.imports, params)
	return a.importErr
}

type handlerEnv struct {
	handler *Backup
	db      *mockDB
	driver  storage.Driver
	arch    *fakeArchiver
	runner  *core.Runner
	router  *chi.Mux
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	tmp := t.TempDir()

	driver, err := storage.NewFSDriver(filepath.Join(tmp, "store"), "quill/upload")
	require.NoError(t, err)

	db := &mockDB{}
	arch := &fakeArchiver{}
	paths := platform.NewPaths(filepath.Join(tmp, "data"))
	runner := core.NewRunner(zerolog.Nop())
	svc := core.NewBackupService(db, driver, arch, paths, runner, zerolog.Nop())

	h := NewBackup(svc, driver, zerolog.Nop())

	r := chi.NewRouter()
	r.Get("/backups", h.List)
	r.Post("/backups", h.Create)
	r.Post("/backups/import", h.Import)
	r.Post("/backups/restore", h.Restore)
	r.Get("/backups/download/{id}", h.Download)
	r.Get("/backups/{id}", h.Get)
	r.Delete("/backups/{id}", h.Delete)

	return &handlerEnv{handler: h, db: db, driver: driver, arch: arch, runner: runner, router: r}
}

func (e *handlerEnv) do(req *http.Request) *httptest.ResponseRecorder {
	identity := &mw.APIKeyIdentity{ID: "key-1", Scopes: []string{"all"}}
	req = req.WithContext(context.WithValue(req.Context(), mw.APIKeyIdentityKey, identity))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func scanBackup(b model.Backup) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = b.ID
		*dest[1].(*string) = b.Name
		*dest[2].(*string) = b.State
		*dest[3].(*string) = b.Provider
		*dest[4].(**string) = b.Document
		*dest[5].(*time.Time) = b.CreatedAt
		*dest[6].(*time.Time) = b.UpdatedAt
		return nil
	}
}

func TestBackupHandler_List_EmptyIsArray(t *testing.T) {
	env := newHandlerEnv(t)
	env.db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newEmptyRows(), nil)

	rec := env.do(httptest.NewRequest("GET", "/backups", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestBackupHandler_Get_NotFound(t *testing.T) {
	env := newHandlerEnv(t)
	env.db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})

	rec := env.do(httptest.NewRequest("GET", "/backups/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorBody(t, rec))
}

func TestBackupHandler_Create_Success(t *testing.T) {
	env := newHandlerEnv(t)
	env.db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "INSERT INTO backups")
	}), mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()
	env.db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "UPDATE backups")
	}), mock.Anything).Return(pgconn.NewCommandTag("UPDATE 1"), nil).Once()

	rec := env.do(httptest.NewRequest("POST", "/backups", nil))
	env.runner.Wait()

	assert.Equal(t, http.StatusOK, rec.Code)
	var body model.Backup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, model.StatePending, body.State)
	assert.NotEmpty(t, body.ID)
}

func TestBackupHandler_Create_Conflict(t *testing.T) {
	env := newHandlerEnv(t)
	env.db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 0"), nil).Once()

	rec := env.do(httptest.NewRequest("POST", "/backups", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "backup_running", errorBody(t, rec))
}

func TestBackupHandler_Import_Success(t *testing.T) {
	env := newHandlerEnv(t)
	env.db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "backup.zip")
	require.NoError(t, err)
	_, err = part.Write([]byte("zip-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/backups/import", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := env.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body model.Backup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, model.StateReady, body.State)
	require.NotNil(t, body.Document)
}

func TestBackupHandler_Import_NoFile(t *testing.T) {
	env := newHandlerEnv(t)

	req := httptest.NewRequest("POST", "/backups/import", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_file", errorBody(t, rec))
}

func TestBackupHandler_Restore_InvalidBody(t *testing.T) {
	env := newHandlerEnv(t)

	rec := env.do(httptest.NewRequest("POST", "/backups/restore", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(httptest.NewRequest("POST", "/backups/restore", strings.NewReader(`{"force":true}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "validation error")
}

func TestBackupHandler_Restore_NotFound(t *testing.T) {
	env := newHandlerEnv(t)
	env.db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})

	rec := env.do(httptest.NewRequest("POST", "/backups/restore", strings.NewReader(`{"id":"missing"}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorBody(t, rec))
}

func TestBackupHandler_Restore_ImporterErrorPassesThrough(t *testing.T) {
	env := newHandlerEnv(t)
	env.arch.importErr = errors.New("content conflict: post already exists")

	key, err := env.driver.UploadStream(context.Background(), "export-bk1", strings.NewReader("archive-bytes"))
	require.NoError(t, err)
	b := readyRecord(key)
	env.db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanBackup(b)})

	rec := env.do(httptest.NewRequest("POST", "/backups/restore", strings.NewReader(`{"id":"`+b.ID+`","force":true}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "content conflict: post already exists", errorBody(t, rec))
}

func TestBackupHandler_Restore_Success_UsesKeyIdentityAsUser(t *testing.T) {
	env := newHandlerEnv(t)

	key, err := env.driver.UploadStream(context.Background(), "export-bk1", strings.NewReader("archive-bytes"))
	require.NoError(t, err)
	b := readyRecord(key)
	env.db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanBackup(b)})

	rec := env.do(httptest.NewRequest("POST", "/backups/restore", strings.NewReader(`{"id":"`+b.ID+`","force":true}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.arch.imports, 1)
	assert.Equal(t, "key-1", env.arch.imports[0].User)
	assert.True(t, env.arch.imports[0].Force)
}

func TestBackupHandler_Download_Success(t *testing.T) {
	env := newHandlerEnv(t)

	key, err := env.driver.UploadStream(context.Background(), "export-bk1", strings.NewReader("archive-bytes"))
	require.NoError(t, err)
	b := readyRecord(key)
	env.db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanBackup(b)})

	rec := env.do(httptest.NewRequest("GET", "/backups/download/"+b.ID, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "export-"+b.Name)
	assert.Equal(t, "archive-bytes", rec.Body.String())
}

func TestBackupHandler_Download_Pending(t *testing.T) {
	env := newHandlerEnv(t)
	b := pendingRecord()
	env.db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanBackup(b)})

	rec := env.do(httptest.NewRequest("GET", "/backups/download/"+b.ID, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "backup_pending", errorBody(t, rec))
}

func TestBackupHandler_Delete_Success(t *testing.T) {
	env := newHandlerEnv(t)

	key, err := env.driver.UploadStream(context.Background(), "export-bk1", strings.NewReader("archive-bytes"))
	require.NoError(t, err)
	b := readyRecord(key)
	env.db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanBackup(b)})
	env.db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 1"), nil).Once()

	rec := env.do(httptest.NewRequest("DELETE", "/backups/"+b.ID, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, b.ID, body["id"])
}

func readyRecord(document string) model.Backup {
	now := time.Now().UTC()
	return model.Backup{
		ID:        "backup-1",
		Name:      "bk1",
		State:     model.StateReady,
		Provider:  "fs",
		Document:  &document,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func pendingRecord() model.Backup {
	now := time.Now().UTC()
	return model.Backup{
		ID:        "backup-1",
		Name:      "bk1",
		State:     model.StatePending,
		Provider:  "fs",
		CreatedAt: now,
		UpdatedAt: now,
	}
}
