package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/smazurov/paws/internal/api/models"
	"github.com/smazurov/paws/internal/driver"
	"github.com/smazurov/paws/internal/updater"
)

type stubSource struct{ release *updater.Release }

func (s stubSource) Latest(context.Context, string) (*updater.Release, error) {
	return s.release, nil
}

func (stubSource) Install(context.Context, *updater.Release, string) error { return nil }

func newUpdateServer(t *testing.T, rel *updater.Release) *Server {
	t.Helper()
	dir := t.TempDir()
	exe := filepath.Join(dir, "paws")
	if err := os.WriteFile(exe, []byte("binary"), 0o755); err != nil {
		t.Fatal(err)
	}
	u, err := updater.New(updater.Options{
		Source:     stubSource{release: rel},
		Executable: exe,
		BackupDir:  filepath.Join(dir, "backup"),
		Restart:    func() {},
	})
	if err != nil {
		t.Fatal(err)
	}
	return NewServer(&Options{Driver: driver.New(), Updater: u})
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestUpdateRoutes(t *testing.T) {
	s := newUpdateServer(t, &updater.Release{Version: "9.9.9", Notes: "faster blinking", Newer: true})

	rec := serve(s, http.MethodGet, "/api/update/check")
	if rec.Code != http.StatusOK {
		t.Fatalf("check status = %d: %s", rec.Code, rec.Body.String())
	}
	check := decode[models.UpdateCheckData](t, rec)
	if !check.UpdateAvailable || check.LatestVersion != "9.9.9" || check.ReleaseNotes != "faster blinking" {
		t.Errorf("check = %+v", check)
	}

	if rec := serve(s, http.MethodPost, "/api/update/rollback"); rec.Code != http.StatusNotFound {
		t.Errorf("rollback before apply = %d, want 404", rec.Code)
	}

	if rec := serve(s, http.MethodPost, "/api/update/apply"); rec.Code != http.StatusOK {
		t.Fatalf("apply status = %d: %s", rec.Code, rec.Body.String())
	}
	status := decode[updater.Status](t, serve(s, http.MethodGet, "/api/update/status"))
	if status.State != updater.StateRestarting || status.TargetVersion != "9.9.9" {
		t.Errorf("status = %+v", status)
	}
}

func TestUpdateWithoutNewerRelease(t *testing.T) {
	s := newUpdateServer(t, &updater.Release{Version: "0.0.1"})
	if rec := serve(s, http.MethodPost, "/api/update/apply"); rec.Code != http.StatusBadRequest {
		t.Errorf("apply status = %d, want 400", rec.Code)
	}
}

func TestUpdateRoutesAbsentWithoutUpdater(t *testing.T) {
	s := NewServer(&Options{Driver: driver.New()})
	if rec := serve(s, http.MethodGet, "/api/update/status"); rec.Code == http.StatusOK {
		t.Errorf("status = %d, want the route to be missing", rec.Code)
	}
}
