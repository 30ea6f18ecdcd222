package app

import (
	"fmt"

	"github.com/pstuifzand/sitetree/internal/edit"
	"github.com/pstuifzand/sitetree/internal/storage"
)

// ListBackups returns the backups of a structure, newest first.
func (s *Site) ListBackups(t edit.Target) ([]storage.BackupMetadata, error) {
	ref, err := t.Ref()
	if err != nil {
		return nil, err
	}
	backups, err := s.Backups.ListBackups(ref)
	if err != nil {
		return nil, err
	}
	// Backups are stored oldest-first
	for i, j := 0, len(backups)-1; i < j; i, j = i+1, j-1 {
		backups[i], backups[j] = backups[j], backups[i]
	}
	return backups, nil
}

// Restore writes back the backup at index (0 is the newest) of a
// structure. The current content is backed up first, so a restore can be
// undone by restoring again.
func (s *Site) Restore(t edit.Target, index int) (edit.Result, error) {
	res := edit.Result{Action: "restore"}
	ref, err := t.Ref()
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	backups, err := s.ListBackups(t)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	if index < 0 || index >= len(backups) {
		err := fmt.Errorf("%s has %d backups, no backup %d", ref, len(backups), index)
		res.Error = err.Error()
		return res, err
	}

	backup := backups[index]
	rev, err := s.Backups.RestoreBackup(ref, backup)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.Success = true
	res.Revision = rev
	s.Log.Infow("backup restored", "ref", ref.String(), "backup", backup.FilePath, "timestamp", backup.Timestamp)
	if s.Journal != nil {
		if err := s.Journal.RecordEdit(ref.String(), res); err != nil {
			s.Log.Warnw("failed to journal restore", "ref", ref.String(), "error", err)
		}
	}
	return res, nil
}
