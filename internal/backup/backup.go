// Package backup implements the `backup` CLI/tool surface: point-in-time
// snapshots of the sqlite store taken with VACUUM INTO, listed and
// pruned against a configured retention count. Grounded on the
// teacher's internal/infrastructure/migrations CLI wrapper shape
// (one small struct, one method per subcommand) adapted from migration
// bookkeeping to snapshot bookkeeping.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/agent-memory/agent-memory/internal/adapter/storage"
	"github.com/agent-memory/agent-memory/internal/config"
	"github.com/agent-memory/agent-memory/internal/domain/apperror"
)

// Info describes one snapshot file on disk.
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager creates, lists, and prunes snapshots under cfg.Backup.Dir.
type Manager struct {
	dir        string
	maxBackups int
	db         storage.Adapter
	dialect    string
}

// New builds a Manager. dir defaults to <data dir>/backups when
// cfg.Backup.Dir is empty.
func New(cfg *config.Config, db storage.Adapter) *Manager {
	dir := cfg.Backup.Dir
	if dir == "" {
		dir = filepath.Join(cfg.App.DataDir, "backups")
	}
	max := cfg.Backup.MaxBackups
	if max <= 0 {
		max = 7
	}
	return &Manager{dir: dir, maxBackups: max, db: db, dialect: string(cfg.Storage.Backend)}
}

// Create snapshots the store to a new timestamped file and returns its
// info. Only the sqlite backend supports VACUUM INTO; other backends
// report CodeUnsupportedPayload.
func (m *Manager) Create(ctx context.Context) (Info, error) {
	if m.dialect != "sqlite" {
		return Info{}, apperror.New(apperror.CodeUnsupportedPayload, "backup is only supported for the sqlite backend")
	}
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return Info{}, apperror.Wrap(apperror.CodeStorageFatal, "create backup directory", err)
	}

	name := fmt.Sprintf("agent-memory-%s.db", time.Now().UTC().Format("20060102T150405Z"))
	dest := filepath.Join(m.dir, name)

	if _, err := m.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		return Info{}, apperror.Wrap(apperror.CodeStorageFatal, "vacuum into snapshot", err)
	}

	fi, err := os.Stat(dest)
	if err != nil {
		return Info{}, apperror.Wrap(apperror.CodeStorageFatal, "stat snapshot", err)
	}
	return Info{Name: name, Path: dest, SizeBytes: fi.Size(), CreatedAt: fi.ModTime().UTC()}, nil
}

// List returns every snapshot under dir, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, apperror.Wrap(apperror.CodeStorageFatal, "list backup directory", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:      e.Name(),
			Path:      filepath.Join(m.dir, e.Name()),
			SizeBytes: fi.Size(),
			CreatedAt: fi.ModTime().UTC(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.After(infos[j].CreatedAt) })
	return infos, nil
}

// Cleanup removes snapshots beyond maxBackups, oldest first, returning
// the names removed.
func (m *Manager) Cleanup() ([]string, error) {
	infos, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(infos) <= m.maxBackups {
		return []string{}, nil
	}

	removed := make([]string, 0, len(infos)-m.maxBackups)
	for _, info := range infos[m.maxBackups:] {
		if err := os.Remove(info.Path); err != nil && !os.IsNotExist(err) {
			return removed, apperror.Wrap(apperror.CodeStorageFatal, "remove stale snapshot", err)
		}
		removed = append(removed, info.Name)
	}
	return removed, nil
}
