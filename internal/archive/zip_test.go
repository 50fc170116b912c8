package archive

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

func compressToFile(t *testing.T, codec *ZipCodec, source, target string) int {
	t.Helper()
	f, err := os.Create(target)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	n, err := codec.Compress(context.Background(), source, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	return n
}

func TestZipRoundTrip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "project")
	files := map[string]string{
		"README.md":         "# project",
		"src/main.go":       "package main",
		"src/pkg/util.go":   "package pkg",
		"assets/logo.svg":   "<svg/>",
		"assets/empty.conf": "",
	}
	writeTree(t, src, files)
	if err := os.MkdirAll(filepath.Join(src, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	codec := NewZipCodec(9)
	archivePath := filepath.Join(t.TempDir(), "project.zip")
	if n := compressToFile(t, codec, src, archivePath); n != len(files) {
		t.Errorf("expected %d files stored, got %d", len(files), n)
	}

	entries, err := codec.List(context.Background(), archivePath)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir {
			names = append(names, e.Name)
		}
		if filepath.IsAbs(e.Name) || strings.HasPrefix(e.Name, "project/") {
			t.Errorf("entry name not relative to source: %s", e.Name)
		}
	}
	sort.Strings(names)
	if len(names) != len(files) {
		t.Errorf("expected %d file entries, got %v", len(files), names)
	}

	dest := filepath.Join(t.TempDir(), "out")
	var events []EntryEvent
	n, err := codec.Extract(context.Background(), archivePath, dest, func(ev EntryEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if n != len(files) || len(events) != len(files) {
		t.Errorf("expected %d extracted files and events, got %d and %d", len(files), n, len(events))
	}

	got := readTree(t, dest)
	for name, content := range files {
		if got[name] != content {
			t.Errorf("%s: expected %q, got %q", name, content, got[name])
		}
	}
	if info, err := os.Stat(filepath.Join(dest, "empty")); err != nil || !info.IsDir() {
		t.Error("empty directory did not survive the round trip")
	}
}

func TestZipCompressFollowsSymlinkedRoot(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	writeTree(t, real, map[string]string{"a.txt": "a", "sub/b.txt": "b"})
	link := filepath.Join(base, "project")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	codec := NewZipCodec(6)
	archivePath := filepath.Join(t.TempDir(), "project.zip")
	if n := compressToFile(t, codec, link, archivePath); n != 2 {
		t.Fatalf("expected 2 files stored, got %d", n)
	}

	dest := filepath.Join(t.TempDir(), "out")
	if _, err := codec.Extract(context.Background(), archivePath, dest, func(EntryEvent) {}); err != nil {
		t.Fatal(err)
	}
	got := readTree(t, dest)
	if got["a.txt"] != "a" || got["sub/b.txt"] != "b" {
		t.Errorf("unexpected contents %v", got)
	}
}

func TestZipCompressSingleFileUsesBaseName(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"report.pdf": "pdf"})

	codec := NewZipCodec(6)
	archivePath := filepath.Join(t.TempDir(), "report.pdf.zip")
	if n := compressToFile(t, codec, filepath.Join(dir, "report.pdf"), archivePath); n != 1 {
		t.Errorf("expected 1 file, got %d", n)
	}

	entries, err := codec.List(context.Background(), archivePath)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "report.pdf" || entries[0].Size != 3 {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestZipCompressSkipsItsOwnOutput(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a"})

	codec := NewZipCodec(6)
	archivePath := filepath.Join(src, "self.zip")
	if n := compressToFile(t, codec, src, archivePath); n != 1 {
		t.Errorf("expected only a.txt to be stored, got %d files", n)
	}
}

func TestZipExtractSkipsEntriesOutsideDestination(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "slip.zip")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, name := range []string{"../evil.txt", "good.txt"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(name))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	root := t.TempDir()
	dest := filepath.Join(root, "out")
	var skipped []string
	n, err := NewZipCodec(6).Extract(context.Background(), archivePath, dest, func(ev EntryEvent) {
		if ev.Skipped {
			skipped = append(skipped, ev.Name)
		}
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 extracted file, got %d", n)
	}
	if len(skipped) != 1 || skipped[0] != "../evil.txt" {
		t.Errorf("expected ../evil.txt to be skipped, got %v", skipped)
	}
	if exists(filepath.Join(root, "evil.txt")) {
		t.Error("entry escaped the destination directory")
	}
}

func TestZipListRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"fake.zip": "definitely not a zip"})

	if _, err := NewZipCodec(6).List(context.Background(), filepath.Join(dir, "fake.zip")); err == nil {
		t.Error("expected an error for a corrupt archive")
	}
}
