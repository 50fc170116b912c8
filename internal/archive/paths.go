package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// PathResolver hands out output paths that do not exist yet.
//
// Resolution alone is racy: another process may create the returned path
// before the caller does. CreateFile and CreateDir narrow that window by
// holding a lock across resolve+create within this process and by creating
// exclusively, retrying with the next free name if they lose to an outside
// writer.
type PathResolver struct {
	mu sync.Mutex
}

func NewPathResolver() *PathResolver {
	return &PathResolver{}
}

// Resolve returns candidate unchanged when nothing exists there. Otherwise it
// probes "name (1).ext", "name (2).ext", ... and returns the first free path.
func (r *PathResolver) Resolve(candidate string) (string, error) {
	return resolve(candidate, splitExt)
}

// ResolveDir is Resolve for directory names: the counter always goes at the
// end, so "release.v2" becomes "release.v2 (1)".
func (r *PathResolver) ResolveDir(candidate string) (string, error) {
	return resolve(candidate, func(base string) (string, string) { return base, "" })
}

func (r *PathResolver) CreateFile(candidate string) (*os.File, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		path, err := r.Resolve(candidate)
		if err != nil {
			return nil, "", err
		}

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", filesystemError("create "+path, err)
		}
		return file, path, nil
	}
}

func (r *PathResolver) CreateDir(candidate string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(candidate), 0755); err != nil {
		return "", filesystemError("create parent directory", err)
	}

	for {
		path, err := r.ResolveDir(candidate)
		if err != nil {
			return "", err
		}

		err = os.Mkdir(path, 0755)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", filesystemError("create "+path, err)
		}
		return path, nil
	}
}

func resolve(candidate string, split func(base string) (string, string)) (string, error) {
	exists, err := pathExists(candidate)
	if err != nil {
		return "", err
	}
	if !exists {
		return candidate, nil
	}

	dir := filepath.Dir(candidate)
	stem, ext := split(filepath.Base(candidate))

	for i := 1; ; i++ {
		next := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		exists, err := pathExists(next)
		if err != nil {
			return "", err
		}
		if !exists {
			return next, nil
		}
	}
}

func splitExt(base string) (string, string) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		// dotfiles such as ".env" have no extension to preserve
		return base, ""
	}
	return stem, ext
}

func pathExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, filesystemError("stat "+path, err)
}
