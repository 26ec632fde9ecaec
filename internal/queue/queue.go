// Package queue enumerates the images of an input directory and tracks progress.
package queue

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/verte-zerg/boxlabel/internal/result"
)

// ErrExhausted is returned by Next when no images remain.
var ErrExhausted = errors.New("no images left")

var imageExts = map[string]struct{}{
	".jpg": {},
	".png": {},
}

// Queue is the ordered list of images still to annotate.
type Queue struct {
	dir       string
	total     int
	remaining []string
}

// IsImage reports whether name has an eligible image extension.
func IsImage(name string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// List returns the eligible images directly inside dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read input directory")
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Scan builds a queue for dir. Images that already have a sidecar file count
// toward the total but are not queued.
func Scan(dir string) (*Queue, error) {
	paths, err := List(dir)
	if err != nil {
		return nil, err
	}
	q := &Queue{dir: dir, total: len(paths)}
	for _, p := range paths {
		if result.HasSidecar(p) {
			continue
		}
		q.remaining = append(q.remaining, p)
	}
	return q, nil
}

// Next pops the front image.
func (q *Queue) Next() (string, error) {
	if len(q.remaining) == 0 {
		return "", ErrExhausted
	}
	next := q.remaining[0]
	q.remaining = q.remaining[1:]
	return next, nil
}

// Take removes path from the queue, reporting whether it was queued.
func (q *Queue) Take(path string) bool {
	path = filepath.Clean(path)
	for i, p := range q.remaining {
		if p == path {
			q.remaining = append(q.remaining[:i:i], q.remaining[i+1:]...)
			return true
		}
	}
	return false
}

// Progress returns how many images are done (or in hand) out of the total.
func (q *Queue) Progress() (done, total int) {
	return q.total - len(q.remaining), q.total
}

// Total returns the number of eligible images found by the scan.
func (q *Queue) Total() int {
	return q.total
}

// Remaining returns a copy of the queued paths.
func (q *Queue) Remaining() []string {
	return append([]string(nil), q.remaining...)
}

// Dir returns the scanned directory.
func (q *Queue) Dir() string {
	return q.dir
}
