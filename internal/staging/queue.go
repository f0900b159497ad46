// Package staging implements the write-ahead buffer between crash capture
// and ingestion: a directory of encrypted files, one pending crash record
// each, named after the record's timestamp. Files are written synchronously
// and fsynced because the writer may be a process that is about to die.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/crashkeeper/internal/common"
)

// FileExt marks files owned by the queue; anything else in the directory is
// ignored.
const FileExt = ".crash"

// Queue is a staged-file directory. It is safe for one writer and one
// reader/deleter: a file is only ever touched by the ingest pass after it
// has been fully written, and the OS guarantees name visibility atomicity.
type Queue struct {
	dir string
}

func NewQueue(dir string) *Queue {
	return &Queue{dir: dir}
}

// Dir returns the queue directory path.
func (q *Queue) Dir() string {
	return q.dir
}

// Write durably stores blob as a new staged file and returns its path. The
// name derives from ts (unix milliseconds); a random suffix is added only
// when two records share a millisecond. The file is synced to disk before
// Write returns, so a crash immediately afterwards cannot lose it.
func (q *Queue) Write(ts time.Time, blob string) (string, error) {
	if err := os.MkdirAll(q.dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", q.dir, err)
	}

	name := strconv.FormatInt(ts.UnixMilli(), 10)
	path := filepath.Join(q.dir, name+FileExt)
	if _, err := os.Stat(path); err == nil {
		suffix, err := common.MakeRandHexString(4)
		if err != nil {
			return "", fmt.Errorf("collision suffix: %w", err)
		}
		path = filepath.Join(q.dir, name+"-"+suffix+FileExt)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := f.WriteString(blob); err != nil {
		f.Close()
		return "", fmt.Errorf("write staged file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("sync staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close staged file: %w", err)
	}
	return path, nil
}

// List returns the paths of all staged files. An absent directory is an
// empty queue, not an error. No ordering is guaranteed.
func (q *Queue) List() ([]string, error) {
	entries, err := os.ReadDir(q.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read staging dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileExt) {
			continue
		}
		paths = append(paths, filepath.Join(q.dir, e.Name()))
	}
	return paths, nil
}

// Read returns the blob stored at path.
func (q *Queue) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read staged file: %w", err)
	}
	return string(data), nil
}

// Remove deletes a staged file. Removing an already-removed file is not an
// error: under at-least-once processing a duplicate pass may race the
// delete.
func (q *Queue) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove staged file: %w", err)
	}
	return nil
}
