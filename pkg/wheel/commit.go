package wheel

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matzehuels/wheelsmith/pkg/errors"
	"github.com/matzehuels/wheelsmith/pkg/observability"
)

const backupPattern = ".wheelsmith-backup-*"

// rename moves staged files into place. Tests replace it to fail midway.
var rename = os.Rename

// commit moves every staged file to its destination. On failure the
// location is put back the way it was found.
func (in *installer) commit(wheelPath string) error {
	backupDir, err := os.MkdirTemp(in.loc.Dir(), backupPattern)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "failed to create a backup directory in %s", in.loc.Dir())
	}

	tx := &transaction{backupDir: backupDir, seen: map[string]bool{}}
	for _, f := range in.files {
		if err := in.ctx.Err(); err != nil {
			return in.abort(tx, wheelPath, err)
		}
		if err := tx.place(f); err != nil {
			return in.abort(tx, wheelPath, err)
		}
	}

	if err := os.RemoveAll(backupDir); err != nil {
		in.logger.Warn("failed to remove backup directory", "path", backupDir, "error", err)
	}
	return nil
}

func (in *installer) abort(tx *transaction, wheelPath string, cause error) error {
	restored, err := tx.rollback()
	observability.Install().OnRollback(in.ctx, wheelPath, restored, err)
	if err != nil {
		// Replaced files may still be in the backup directory, so keep it.
		in.logger.Error("rollback incomplete", "wheel", filepath.Base(wheelPath), "backup", tx.backupDir, "error", err)
		return errors.Wrap(errors.ErrCodeIO, stderrors.Join(cause, err),
			"Installing %s failed and could not be undone; replaced files are kept in %s", filepath.Base(wheelPath), tx.backupDir)
	}
	in.logger.Warn("rolled back install", "wheel", filepath.Base(wheelPath), "restored", restored)
	os.RemoveAll(tx.backupDir)
	return cause
}

type backup struct {
	original string
	saved    string
}

// transaction remembers every change commit made to the filesystem.
type transaction struct {
	backupDir   string
	createdDirs []string
	placed      []string
	seen        map[string]bool
	backups     []backup
}

func (tx *transaction) place(f stagedFile) error {
	// Each destination is placed at most once.
	if tx.seen[f.dest] {
		return errors.New(errors.ErrCodeInternal, "%s was staged twice", f.dest)
	}
	if err := tx.mkdirs(filepath.Dir(f.dest)); err != nil {
		return err
	}

	if info, err := os.Lstat(f.dest); err == nil {
		if info.IsDir() {
			return errors.New(errors.ErrCodeIO, "cannot install %s: a directory is in the way", f.dest)
		}
		saved := filepath.Join(tx.backupDir, fmt.Sprintf("%06d", len(tx.backups)))
		if err := rename(f.dest, saved); err != nil {
			return errors.Wrap(errors.ErrCodeIO, err, "failed to back up %s", f.dest)
		}
		tx.backups = append(tx.backups, backup{original: f.dest, saved: saved})
	} else if !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeIO, err, "failed to inspect %s", f.dest)
	}

	if err := os.Chmod(f.staged, f.mode); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "failed to set permissions on %s", f.dest)
	}
	if err := rename(f.staged, f.dest); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "failed to install %s", f.dest)
	}
	tx.placed = append(tx.placed, f.dest)
	tx.seen[f.dest] = true
	return nil
}

// mkdirs creates dir and records which of its ancestors did not exist.
func (tx *transaction) mkdirs(dir string) error {
	var missing []string
	for d := dir; ; d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil {
			break
		}
		missing = append(missing, d)
		if filepath.Dir(d) == d {
			break
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "failed to create %s", dir)
	}
	for i := len(missing) - 1; i >= 0; i-- {
		tx.createdDirs = append(tx.createdDirs, missing[i])
	}
	return nil
}

// rollback undoes the transaction newest change first and returns how many
// replaced files were restored.
func (tx *transaction) rollback() (int, error) {
	var errs []error
	for i := len(tx.placed) - 1; i >= 0; i-- {
		if err := os.Remove(tx.placed[i]); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	restored := 0
	for i := len(tx.backups) - 1; i >= 0; i-- {
		b := tx.backups[i]
		if err := os.Rename(b.saved, b.original); err != nil {
			errs = append(errs, err)
			continue
		}
		restored++
	}
	for i := len(tx.createdDirs) - 1; i >= 0; i-- {
		// Only empty directories go; anything else was not ours alone.
		os.Remove(tx.createdDirs[i])
	}
	return restored, stderrors.Join(errs...)
}
