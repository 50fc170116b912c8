package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tech-arch1tect/ziphub/internal/archive"
	"github.com/tech-arch1tect/ziphub/internal/logging"
)

func TestKindFor(t *testing.T) {
	tests := []struct {
		path string
		want archive.Kind
	}{
		{"/drop/photos.zip", archive.KindExtract},
		{"/drop/backup.RAR", archive.KindExtract},
		{"/drop/report.pdf", archive.KindCompress},
		{"/drop/project", archive.KindCompress},
		{"/drop/bundle.tar", archive.KindCompress},
	}
	for _, tt := range tests {
		if got := KindFor(tt.path); got != tt.want {
			t.Errorf("KindFor(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestIgnored(t *testing.T) {
	for _, p := range []string{".DS_Store", "movie.mkv.part", "setup.exe.crdownload", "~$report.docx", "x.TMP"} {
		if !Ignored(p) {
			t.Errorf("expected %q to be ignored", p)
		}
	}
	for _, p := range []string{"photos.zip", "notes.txt", "project"} {
		if Ignored(p) {
			t.Errorf("expected %q to be handled", p)
		}
	}
}

func TestWatcherDispatchesSettledPaths(t *testing.T) {
	dir := t.TempDir()
	requests := make(chan archive.OperationRequest, 8)
	dispatcher := DispatcherFunc(func(_ context.Context, req archive.OperationRequest) (string, error) {
		requests <- req
		return "op", nil
	})

	w := New(dir, 50*time.Millisecond, dispatcher, logging.NewNop())
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	for name, content := range map[string]string{
		"photos.zip":   "zip",
		"notes.txt":    "hello",
		".hidden":      "x",
		"big.iso.part": "partial",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got := map[string]archive.Kind{}
	timeout := time.After(3 * time.Second)
	for len(got) < 2 {
		select {
		case req := <-requests:
			got[filepath.Base(req.SourcePath)] = req.Kind
		case <-timeout:
			t.Fatalf("timed out waiting for dispatch, got %v", got)
		}
	}

	if got["photos.zip"] != archive.KindExtract || got["notes.txt"] != archive.KindCompress {
		t.Errorf("unexpected dispatches %v", got)
	}

	select {
	case req := <-requests:
		t.Errorf("unexpected extra dispatch %+v", req)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w := New(t.TempDir(), time.Second, DispatcherFunc(func(context.Context, archive.OperationRequest) (string, error) {
		t.Error("nothing should be dispatched")
		return "", nil
	}), logging.NewNop())
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestWatcherWaitsForDirectoryTreeToSettle(t *testing.T) {
	dir := t.TempDir()
	requests := make(chan archive.OperationRequest, 4)
	dispatcher := DispatcherFunc(func(_ context.Context, req archive.OperationRequest) (string, error) {
		requests <- req
		return "op", nil
	})

	w := New(dir, 100*time.Millisecond, dispatcher, logging.NewNop())
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	nested := filepath.Join(dir, "project", "src", "deep")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	// nested writes raise no events on the watched top level
	copied := make(chan struct{})
	go func() {
		defer close(copied)
		for i := range 15 {
			name := filepath.Join(nested, fmt.Sprintf("file%02d.txt", i))
			if err := os.WriteFile(name, []byte("chunk"), 0644); err != nil {
				t.Error(err)
				return
			}
			time.Sleep(40 * time.Millisecond)
		}
	}()

	select {
	case req := <-requests:
		select {
		case <-copied:
		default:
			t.Fatalf("directory dispatched while still being copied: %+v", req)
		}
		if filepath.Base(req.SourcePath) != "project" || req.Kind != archive.KindCompress {
			t.Errorf("unexpected dispatch %+v", req)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	select {
	case req := <-requests:
		t.Errorf("unexpected extra dispatch %+v", req)
	case <-time.After(300 * time.Millisecond):
	}
}
