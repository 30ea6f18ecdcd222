package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const backupTimeFormat = "20060102_150405.000000"

// BackupManager keeps timestamped copies of structure files before they are
// overwritten.
type BackupManager struct {
	store *Store
	keep  int
}

// NewBackupManager creates a backup manager keeping at most keep backups
// per structure. keep == 0 disables backups.
func NewBackupManager(store *Store, keep int) *BackupManager {
	return &BackupManager{store: store, keep: keep}
}

// Enabled reports whether backups are kept.
func (bm *BackupManager) Enabled() bool {
	return bm.keep > 0
}

func (bm *BackupManager) dir(ref Ref) string {
	switch ref.Kind {
	case KindMenu, KindFooter:
		return filepath.Join(bm.store.BackupsDir(), string(ref.Kind))
	}
	return filepath.Join(bm.store.BackupsDir(), string(ref.Kind), filepath.FromSlash(ref.Name))
}

// CreateBackup copies the current content of ref. A structure that does not
// exist yet has nothing to back up.
func (bm *BackupManager) CreateBackup(ref Ref) (string, error) {
	if !bm.Enabled() {
		return "", nil
	}
	data, _, err := bm.store.ReadRaw(ref)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	dir := bm.dir(ref)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	backupPath := filepath.Join(dir, generateBackupFilename(time.Now()))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}
	if err := bm.prune(ref); err != nil {
		bm.store.log.Warnw("failed to prune backups", "ref", ref.String(), "error", err)
	}
	return backupPath, nil
}

// generateBackupFilename creates a filename in the format:
// YYYYMMDD_HHMMSS.ffffff_<id>.json
func generateBackupFilename(t time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s.json", t.UTC().Format(backupTimeFormat), id)
}

// BackupMetadata holds parsed information about a backup file
type BackupMetadata struct {
	FilePath  string    // Full path to backup file
	Timestamp time.Time // Parsed timestamp from filename
	ID        string    // 8-character id
}

// ListBackups returns the backups of ref, oldest first.
func (bm *BackupManager) ListBackups(ref Ref) ([]BackupMetadata, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	dir := bm.dir(ref)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		metadata, err := parseBackupFilename(entry.Name(), filepath.Join(dir, entry.Name()))
		if err != nil {
			continue // Skip files that can't be parsed
		}
		backups = append(backups, metadata)
	}
	sortBackupsByTimestamp(backups)
	return backups, nil
}

// parseBackupFilename extracts metadata from a backup filename
func parseBackupFilename(filename string, fullPath string) (BackupMetadata, error) {
	stem := strings.TrimSuffix(filename, ".json")
	if len(stem) != len(backupTimeFormat)+1+8 || stem[len(backupTimeFormat)] != '_' {
		return BackupMetadata{}, fmt.Errorf("unexpected backup filename %q", filename)
	}
	timestamp, err := time.Parse(backupTimeFormat, stem[:len(backupTimeFormat)])
	if err != nil {
		return BackupMetadata{}, fmt.Errorf("invalid timestamp format: %w", err)
	}
	return BackupMetadata{
		FilePath:  fullPath,
		Timestamp: timestamp,
		ID:        stem[len(backupTimeFormat)+1:],
	}, nil
}

// sortBackupsByTimestamp sorts backups chronologically (oldest first)
func sortBackupsByTimestamp(backups []BackupMetadata) {
	slices.SortFunc(backups, func(a, b BackupMetadata) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func (bm *BackupManager) prune(ref Ref) error {
	backups, err := bm.ListBackups(ref)
	if err != nil {
		return err
	}
	var errs []error
	for len(backups) > bm.keep {
		if err := os.Remove(backups[0].FilePath); err != nil {
			errs = append(errs, err)
		}
		backups = backups[1:]
	}
	return errors.Join(errs...)
}

// RestoreBackup writes a backup back as the current content of ref. The
// backup must parse as a structure of the ref's kind. The content being
// replaced is backed up first.
func (bm *BackupManager) RestoreBackup(ref Ref, backup BackupMetadata) (string, error) {
	if filepath.Dir(backup.FilePath) != bm.dir(ref) {
		return "", fmt.Errorf("backup %s does not belong to %s", backup.FilePath, ref)
	}
	data, err := os.ReadFile(backup.FilePath)
	if err != nil {
		return "", fmt.Errorf("failed to read backup: %w", err)
	}
	if _, err := Parse(ref.Kind, data); err != nil {
		return "", fmt.Errorf("backup %s: %w", backup.FilePath, err)
	}
	if _, err := bm.CreateBackup(ref); err != nil {
		return "", err
	}
	if err := bm.store.WriteRaw(ref, data); err != nil {
		return "", err
	}
	return Revision(data), nil
}
