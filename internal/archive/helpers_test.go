package archive

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tech-arch1tect/ziphub/internal/logging"
	"github.com/tech-arch1tect/ziphub/internal/notify"
	"github.com/tech-arch1tect/ziphub/internal/progress"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

// readTree returns every regular file under root keyed by its slash-separated
// relative path.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("read tree %s: %v", root, err)
	}
	return out
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

var fastSimulator = progress.Simulator{Interval: 5 * time.Millisecond, Step: 10, Cap: 90}

func newTestService(t *testing.T, outputDir string, compressor Compressor, readers map[Format]ArchiveReader, notifier notify.Notifier) *Service {
	t.Helper()
	opts := Options{OutputDir: outputDir, CompressionLevel: 6, Simulator: fastSimulator}
	if compressor == nil && readers == nil {
		return NewService(opts, notifier, logging.NewNop())
	}
	return NewServiceWithCodecs(opts, compressor, readers, notifier, logging.NewNop())
}

type compressorFunc func(ctx context.Context, sourcePath string, dst io.Writer) (int, error)

func (f compressorFunc) Compress(ctx context.Context, sourcePath string, dst io.Writer) (int, error) {
	return f(ctx, sourcePath, dst)
}

// fakeReader reports one event per listed file entry without writing
// anything to disk.
type fakeReader struct {
	entries    []Entry
	listErr    error
	extractErr error
	skip       map[string]bool
}

func (r *fakeReader) List(ctx context.Context, archivePath string) ([]Entry, error) {
	return r.entries, r.listErr
}

func (r *fakeReader) Extract(ctx context.Context, archivePath, destDir string, onEntry func(EntryEvent)) (int, error) {
	if r.extractErr != nil {
		return 0, r.extractErr
	}
	n := 0
	for _, e := range r.entries {
		if e.IsDir {
			continue
		}
		if r.skip[e.Name] {
			onEntry(EntryEvent{Name: e.Name, Skipped: true, Reason: "unsafe"})
			continue
		}
		n++
		onEntry(EntryEvent{Name: e.Name})
	}
	return n, nil
}

func assertMonotonic(t *testing.T, events []progress.Event) {
	t.Helper()
	last := 0
	for i, e := range events {
		if e.Percent < last {
			t.Fatalf("event %d went backwards: %d after %d (%v)", i, e.Percent, last, events)
		}
		if e.Percent < 0 || e.Percent > 100 {
			t.Fatalf("event %d out of range: %d", i, e.Percent)
		}
		last = e.Percent
	}
}
