// Package updater replaces the running paws binary with a newer GitHub release and can roll
// back to the binary it replaced.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/paws/internal/logging"
	"github.com/smazurov/paws/internal/version"
)

// State is the phase an Updater is in.
type State string

// Updater states.
const (
	StateIdle       State = "idle"
	StateChecking   State = "checking"
	StateAvailable  State = "available"
	StateApplying   State = "applying"
	StateRestarting State = "restarting"
	StateError      State = "error"
	StateRolledBack State = "rolled_back"
)

var (
	// ErrBusy is returned when a check or apply is already running.
	ErrBusy = errors.New("update already in progress")
	// ErrNoUpdate is returned by Apply when the latest release is not newer.
	ErrNoUpdate = errors.New("no update available")
	// ErrNoRelease is returned when the repository has no usable release.
	ErrNoRelease = errors.New("repository has no releases")
	// ErrNoBackup is returned by Rollback before any update was applied.
	ErrNoBackup = errors.New("no backup available")
)

// Release describes a published release.
type Release struct {
	Version     string
	Notes       string
	URL         string
	PublishedAt time.Time
	Size        int
	// Newer reports whether the release is newer than the running binary.
	Newer bool

	asset any
}

// Source finds and installs releases.
type Source interface {
	Latest(ctx context.Context, current string) (*Release, error)
	Install(ctx context.Context, rel *Release, executable string) error
}

// Options configures an Updater.
type Options struct {
	// Source defaults to GitHub releases of Repository.
	Source     Source
	Repository string
	Prerelease bool
	// Executable defaults to the running binary.
	Executable string
	// BackupDir defaults to ~/.cache/paws/backup.
	BackupDir string
	// Restart runs after a successful apply or rollback. It defaults to sending SIGTERM
	// to the current process so the service manager starts the new binary.
	Restart func()
}

// Status is a snapshot of an Updater.
type Status struct {
	State          State      `json:"state"`
	CurrentVersion string     `json:"current_version"`
	TargetVersion  string     `json:"target_version,omitempty"`
	Error          string     `json:"error,omitempty"`
	LastChecked    *time.Time `json:"last_checked,omitempty"`
	BackupVersion  string     `json:"backup_version,omitempty"`
}

// Updater checks for, applies and rolls back releases. It is safe for concurrent use.
type Updater struct {
	source     Source
	executable string
	backups    *backupStore
	restart    func()
	logger     *slog.Logger

	mu          sync.Mutex
	state       State
	latest      *Release
	lastChecked *time.Time
	lastErr     error
}

// New creates an Updater.
func New(opts Options) (*Updater, error) {
	u := &Updater{
		source:     opts.Source,
		executable: opts.Executable,
		restart:    opts.Restart,
		state:      StateIdle,
		logger:     logging.GetLogger("updater"),
	}

	if u.source == nil {
		if opts.Repository == "" {
			return nil, errors.New("updater: repository is required")
		}
		src, err := NewGitHubSource(opts.Repository, opts.Prerelease)
		if err != nil {
			return nil, err
		}
		u.source = src
	}

	if u.executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		if exe, err = filepath.EvalSymlinks(exe); err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		u.executable = exe
	}

	dir := opts.BackupDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate backup dir: %w", err)
		}
		dir = filepath.Join(home, ".cache", "paws", "backup")
	}
	backups, err := openBackupStore(dir)
	if err != nil {
		return nil, err
	}
	u.backups = backups

	if u.restart == nil {
		u.restart = u.signalRestart
	}
	return u, nil
}

// Writable reports whether the binary's directory accepts the replacement file.
func (u *Updater) Writable() error {
	probe, err := os.CreateTemp(filepath.Dir(u.executable), ".paws-update-*")
	if err != nil {
		return fmt.Errorf("cannot replace %s: %w", u.executable, err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// Check asks the source for the latest release.
func (u *Updater) Check(ctx context.Context) (*Release, error) {
	if !u.enter(StateChecking, StateIdle, StateAvailable, StateError, StateRolledBack) {
		return nil, ErrBusy
	}

	rel, err := u.source.Latest(ctx, version.Version)
	now := time.Now()

	u.mu.Lock()
	defer u.mu.Unlock()
	u.lastChecked = &now
	switch {
	case err != nil:
		u.fail(err)
		return nil, fmt.Errorf("check for update: %w", err)
	case rel == nil:
		u.fail(ErrNoRelease)
		return nil, ErrNoRelease
	case rel.Newer:
		u.latest = rel
		u.state = StateAvailable
	default:
		u.latest = nil
		u.state = StateIdle
	}
	u.logger.Info("Checked for update", "current", version.Version, "latest", rel.Version, "newer", rel.Newer)
	return rel, nil
}

// Apply backs up the running binary, installs the latest release over it and restarts.
// It checks first when no newer release is known. A failed install restores the backup.
func (u *Updater) Apply(ctx context.Context) error {
	u.mu.Lock()
	known := u.latest != nil && u.state == StateAvailable
	u.mu.Unlock()
	if !known {
		rel, err := u.Check(ctx)
		if err != nil {
			return err
		}
		if !rel.Newer {
			return ErrNoUpdate
		}
	}

	if !u.enter(StateApplying, StateAvailable) {
		return ErrBusy
	}
	u.mu.Lock()
	rel := u.latest
	u.mu.Unlock()

	if err := u.backups.save(u.executable, version.Version); err != nil {
		u.setError(err)
		return fmt.Errorf("back up binary: %w", err)
	}

	if err := u.source.Install(ctx, rel, u.executable); err != nil {
		u.setError(err)
		if restoreErr := u.backups.restore(); restoreErr != nil {
			u.logger.Error("Restoring backup after failed update failed", "error", restoreErr)
		}
		return fmt.Errorf("install %s: %w", rel.Version, err)
	}

	u.logger.Info("Update installed, restarting", "version", rel.Version)
	u.setState(StateRestarting)
	u.restart()
	return nil
}

// Rollback restores the binary saved by the last Apply and restarts.
func (u *Updater) Rollback(_ context.Context) error {
	if u.backups.version() == "" {
		return ErrNoBackup
	}
	if err := u.backups.restore(); err != nil {
		u.setError(err)
		return fmt.Errorf("restore backup: %w", err)
	}
	u.logger.Info("Rolled back, restarting", "version", u.backups.version())
	u.setState(StateRolledBack)
	u.restart()
	return nil
}

// Status returns the current state.
func (u *Updater) Status() Status {
	u.mu.Lock()
	defer u.mu.Unlock()

	st := Status{
		State:          u.state,
		CurrentVersion: version.Version,
		LastChecked:    u.lastChecked,
		BackupVersion:  u.backups.version(),
	}
	if u.latest != nil {
		st.TargetVersion = u.latest.Version
	}
	if u.lastErr != nil {
		st.Error = u.lastErr.Error()
	}
	return st
}

// enter moves to next when the current state is one of from.
func (u *Updater) enter(next State, from ...State) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, s := range from {
		if u.state == s {
			u.state = next
			u.lastErr = nil
			return true
		}
	}
	return false
}

func (u *Updater) setState(s State) {
	u.mu.Lock()
	u.state = s
	u.mu.Unlock()
}

func (u *Updater) setError(err error) {
	u.mu.Lock()
	u.fail(err)
	u.mu.Unlock()
}

// fail records err. Callers hold mu.
func (u *Updater) fail(err error) {
	u.state = StateError
	u.lastErr = err
}

func (u *Updater) signalRestart() {
	go func() {
		// Let the HTTP response that triggered the update flush first.
		time.Sleep(500 * time.Millisecond)
		if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
			u.logger.Error("Restart signal failed", "error", err)
		}
	}()
}
