package fsx

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/oklog/ulid/v2"

	"codexmate/internal/logger"
)

// Outcome tells how a write reached the target.
type Outcome int

const (
	// Atomic: content was renamed into place.
	Atomic Outcome = iota
	// Degraded: rename failed and the target was overwritten in place.
	// The write is not atomic: concurrent readers may see a partial file,
	// and a failure partway through leaves the target truncated or partly
	// written. Write returns an error in that case.
	Degraded
)

func (o Outcome) String() string {
	if o == Degraded {
		return "direct_overwrite"
	}
	return "atomic"
}

// Writer performs crash-safe file replacement.
type Writer struct {
	log    logger.Logger
	rename func(oldpath, newpath string) error
}

// NewWriter returns a Writer reporting degraded outcomes to l.
func NewWriter(l logger.Logger) *Writer {
	if l == nil {
		l = logger.Default()
	}
	return &Writer{log: l, rename: renameWithRetry}
}

// AtomicWrite writes content through a default Writer.
func AtomicWrite(path string, content []byte, mode fs.FileMode) error {
	_, err := NewWriter(nil).Write(path, content, mode)
	return err
}

// Write puts content at path so readers see either the previous file or the
// new one. The parent directory is created when missing.
func (w *Writer) Write(path string, content []byte, mode fs.FileMode) (Outcome, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Atomic, fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+base+"."+ulid.Make().String()+".tmp")
	if err := writeSynced(tmp, content, mode); err != nil {
		_ = os.Remove(tmp)
		return Atomic, err
	}

	if err := w.rename(tmp, path); err != nil {
		if ferr := overwrite(tmp, path, mode); ferr != nil {
			_ = os.Remove(tmp)
			return Atomic, fmt.Errorf("replace %s: rename: %v; direct write: %w", path, err, ferr)
		}
		if rerr := os.Remove(tmp); rerr != nil {
			w.log.Debug("temp file left behind", "path", tmp, "error", rerr)
		}
		logger.Degraded(w.log, Degraded.String(), "rename failed, target overwritten in place",
			"path", path, "error", err)
		return Degraded, nil
	}

	if err := syncDir(dir); err != nil {
		logger.Degraded(w.log, "dir_sync_failed", "directory metadata not flushed",
			"dir", dir, "error", err)
	}
	return Atomic, nil
}

func writeSynced(tmp string, content []byte, mode fs.FileMode) error {
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}

// overwrite copies the temp file's content over the target without rename.
// The target is truncated first, so a failed copy does not preserve it.
func overwrite(tmp, path string, mode fs.FileMode) error {
	b, err := os.ReadFile(tmp)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("partial overwrite: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync after overwrite: %w", err)
	}
	return f.Close()
}

// On Windows, rename fails if the destination exists or is locked: remove it
// and retry a few times to get past transient locks.
func renameWithRetry(oldpath, newpath string) error {
	err := os.Rename(oldpath, newpath)
	if err == nil || runtime.GOOS != "windows" {
		return err
	}
	for i := 0; i < 5; i++ {
		if _, statErr := os.Stat(newpath); statErr == nil {
			_ = os.Remove(newpath)
		}
		if err = os.Rename(oldpath, newpath); err == nil {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return err
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// BackupFile creates a timestamped .bak copy if the file exists.
func BackupFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(filepath.Dir(path), fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
	if err := os.WriteFile(bak, b, 0o600); err != nil {
		return "", err
	}
	return bak, nil
}
