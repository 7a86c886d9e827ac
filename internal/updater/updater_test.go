package updater

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smazurov/paws/internal/version"
)

type fakeSource struct {
	release    *Release
	err        error
	installErr error
	checks     int
	installs   int
	payload    []byte
}

func (f *fakeSource) Latest(context.Context, string) (*Release, error) {
	f.checks++
	return f.release, f.err
}

func (f *fakeSource) Install(_ context.Context, _ *Release, executable string) error {
	f.installs++
	if f.payload != nil {
		if err := os.WriteFile(executable, f.payload, 0o755); err != nil {
			return err
		}
	}
	return f.installErr
}

type fixture struct {
	updater  *Updater
	source   *fakeSource
	exe      string
	restarts int
}

func newFixture(t *testing.T, src *fakeSource) *fixture {
	t.Helper()
	dir := t.TempDir()
	exe := filepath.Join(dir, "paws")
	if err := os.WriteFile(exe, []byte("old binary"), 0o755); err != nil {
		t.Fatal(err)
	}

	f := &fixture{source: src, exe: exe}
	u, err := New(Options{
		Source:     src,
		Executable: exe,
		BackupDir:  filepath.Join(dir, "backup"),
		Restart:    func() { f.restarts++ },
	})
	if err != nil {
		t.Fatal(err)
	}
	f.updater = u
	return f
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestCheck(t *testing.T) {
	f := newFixture(t, &fakeSource{release: &Release{Version: "1.2.0", Newer: true}})

	rel, err := f.updater.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rel.Version != "1.2.0" {
		t.Errorf("version = %q", rel.Version)
	}
	st := f.updater.Status()
	if st.State != StateAvailable || st.TargetVersion != "1.2.0" || st.LastChecked == nil {
		t.Errorf("status = %+v", st)
	}
	if st.CurrentVersion != version.Version {
		t.Errorf("current = %q", st.CurrentVersion)
	}
}

func TestCheckUpToDate(t *testing.T) {
	f := newFixture(t, &fakeSource{release: &Release{Version: "1.0.0"}})

	if _, err := f.updater.Check(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := f.updater.Status(); st.State != StateIdle || st.TargetVersion != "" {
		t.Errorf("status = %+v", st)
	}
	if err := f.updater.Apply(context.Background()); !errors.Is(err, ErrNoUpdate) {
		t.Errorf("Apply() error = %v, want ErrNoUpdate", err)
	}
}

func TestCheckErrors(t *testing.T) {
	f := newFixture(t, &fakeSource{})
	if _, err := f.updater.Check(context.Background()); !errors.Is(err, ErrNoRelease) {
		t.Errorf("error = %v, want ErrNoRelease", err)
	}

	boom := errors.New("rate limited")
	f = newFixture(t, &fakeSource{err: boom})
	if _, err := f.updater.Check(context.Background()); !errors.Is(err, boom) {
		t.Errorf("error = %v", err)
	}
	if st := f.updater.Status(); st.State != StateError || st.Error != "rate limited" {
		t.Errorf("status = %+v", st)
	}
}

func TestApplyAndRollback(t *testing.T) {
	src := &fakeSource{release: &Release{Version: "2.0.0", Newer: true}, payload: []byte("new binary")}
	f := newFixture(t, src)
	ctx := context.Background()

	if err := f.updater.Apply(ctx); err != nil {
		t.Fatal(err)
	}
	if src.checks != 1 || src.installs != 1 || f.restarts != 1 {
		t.Errorf("checks=%d installs=%d restarts=%d", src.checks, src.installs, f.restarts)
	}
	if got := readFile(t, f.exe); got != "new binary" {
		t.Errorf("executable = %q", got)
	}
	st := f.updater.Status()
	if st.State != StateRestarting || st.BackupVersion != version.Version {
		t.Errorf("status = %+v", st)
	}

	if err := f.updater.Rollback(ctx); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, f.exe); got != "old binary" {
		t.Errorf("executable after rollback = %q", got)
	}
	if f.restarts != 2 || f.updater.Status().State != StateRolledBack {
		t.Errorf("restarts = %d, state = %s", f.restarts, f.updater.Status().State)
	}
}

func TestApplyFailureRestoresBinary(t *testing.T) {
	src := &fakeSource{
		release:    &Release{Version: "2.0.0", Newer: true},
		payload:    []byte("half written"),
		installErr: errors.New("checksum mismatch"),
	}
	f := newFixture(t, src)

	if err := f.updater.Apply(context.Background()); err == nil {
		t.Fatal("Apply() should fail")
	}
	if got := readFile(t, f.exe); got != "old binary" {
		t.Errorf("executable = %q, want the backup restored", got)
	}
	if f.restarts != 0 {
		t.Errorf("restarts = %d", f.restarts)
	}
	if st := f.updater.Status(); st.State != StateError {
		t.Errorf("state = %s", st.State)
	}
}

func TestRollbackWithoutBackup(t *testing.T) {
	f := newFixture(t, &fakeSource{})
	if err := f.updater.Rollback(context.Background()); !errors.Is(err, ErrNoBackup) {
		t.Errorf("error = %v, want ErrNoBackup", err)
	}
}

func TestBackupSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "paws")
	if err := os.WriteFile(exe, []byte("v1"), 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := openBackupStore(filepath.Join(dir, "backup"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.save(exe, "1.0.0"); err != nil {
		t.Fatal(err)
	}

	reopened, err := openBackupStore(filepath.Join(dir, "backup"))
	if err != nil {
		t.Fatal(err)
	}
	if v := reopened.version(); v != "1.0.0" {
		t.Errorf("version = %q", v)
	}
}

func TestWritable(t *testing.T) {
	f := newFixture(t, &fakeSource{})
	if err := f.updater.Writable(); err != nil {
		t.Errorf("Writable() = %v", err)
	}
}
