package updater

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	backupBinary = "paws.backup"
	backupMeta   = "backup.json"
)

type backupInfo struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Path      string    `json:"path"`
}

// backupStore keeps one copy of a replaced binary.
type backupStore struct {
	dir  string
	mu   sync.Mutex
	info *backupInfo
}

func openBackupStore(dir string) (*backupStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	b := &backupStore{dir: dir}

	data, err := os.ReadFile(filepath.Join(dir, backupMeta))
	if err != nil {
		return b, nil
	}
	var info backupInfo
	if json.Unmarshal(data, &info) != nil {
		return b, nil
	}
	if _, err := os.Stat(filepath.Join(dir, backupBinary)); err == nil {
		b.info = &info
	}
	return b, nil
}

func (b *backupStore) save(path, version string) error {
	if err := copyFile(path, filepath.Join(b.dir, backupBinary)); err != nil {
		return err
	}
	info := backupInfo{Version: version, CreatedAt: time.Now(), Path: path}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(b.dir, backupMeta), data, 0o644); err != nil {
		return err
	}

	b.mu.Lock()
	b.info = &info
	b.mu.Unlock()
	return nil
}

func (b *backupStore) restore() error {
	b.mu.Lock()
	info := b.info
	b.mu.Unlock()
	if info == nil {
		return ErrNoBackup
	}
	return copyFile(filepath.Join(b.dir, backupBinary), info.Path)
}

func (b *backupStore) version() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.info == nil {
		return ""
	}
	return b.info.Version
}

// copyFile writes src to a temporary file next to dst and renames it into place, so a
// running binary is never truncated.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".paws-copy-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
