package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"showshelf/internal/timeutil"
)

const (
	backupPrefix     = "showshelf_backup_"
	backupSuffix     = ".db"
	backupTimeLayout = "2006-01-02_150405.000"
)

// BackupService snapshots the show database into a backup directory
type BackupService struct {
	db   *sqlx.DB
	dir  string
	keep int
}

// backupFile is one snapshot found on disk.
type backupFile struct {
	path    string
	takenAt time.Time
}

// NewBackupService creates a BackupService keeping the newest keep snapshots
// (4 when keep is not positive).
func NewBackupService(db *sqlx.DB, dir string, keep int) *BackupService {
	if keep <= 0 {
		keep = 4
	}
	return &BackupService{db: db, dir: dir, keep: keep}
}

// Backup writes a consistent snapshot of the database and prunes old ones.
func (b *BackupService) Backup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	path := filepath.Join(b.dir, backupPrefix+timeutil.Now().UTC().Format(backupTimeLayout)+backupSuffix)

	// VACUUM INTO snapshots under concurrent writers
	if _, err := b.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}

	if err := b.Prune(); err != nil {
		zap.S().Warnw("failed to prune backups", "dir", b.dir, "err", err)
	}
	return path, nil
}

// LastBackupTime returns when the newest snapshot was taken, or the zero
// time when there is none.
func (b *BackupService) LastBackupTime() (time.Time, error) {
	files, err := b.snapshots()
	if err != nil || len(files) == 0 {
		return time.Time{}, err
	}
	return files[len(files)-1].takenAt, nil
}

// Prune deletes all but the newest snapshots.
func (b *BackupService) Prune() error {
	files, err := b.snapshots()
	if err != nil {
		return err
	}
	for len(files) > b.keep {
		if err := os.Remove(files[0].path); err != nil {
			return fmt.Errorf("failed to remove backup %s: %w", files[0].path, err)
		}
		files = files[1:]
	}
	return nil
}

// snapshots lists backups oldest first. Files whose name carries no
// timestamp are ignored.
func (b *BackupService) snapshots() ([]backupFile, error) {
	paths, err := filepath.Glob(filepath.Join(b.dir, backupPrefix+"*"+backupSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	files := make([]backupFile, 0, len(paths))
	for _, p := range paths {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), backupPrefix), backupSuffix)
		takenAt, err := time.Parse(backupTimeLayout, stamp)
		if err != nil {
			continue
		}
		files = append(files, backupFile{path: p, takenAt: takenAt})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].takenAt.Before(files[j].takenAt) })
	return files, nil
}
