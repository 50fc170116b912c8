package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nwaples/rardecode"
)

// RarCodec reads RAR archives. It never supplies a password, so encrypted
// archives surface as errors or as archives with nothing to extract.
type RarCodec struct{}

func NewRarCodec() *RarCodec {
	return &RarCodec{}
}

func (c *RarCodec) List(ctx context.Context, archivePath string) ([]Entry, error) {
	reader, err := rardecode.OpenReader(archivePath, "")
	if err != nil {
		return nil, fmt.Errorf("failed to open rar file: %w", err)
	}
	defer reader.Close()

	var entries []Entry
	for {
		select {
		case <-ctx.Done():
			return entries, ctx.Err()
		default:
		}

		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, fmt.Errorf("failed to read rar header: %w", err)
		}

		entries = append(entries, Entry{
			Name:  header.Name,
			IsDir: header.IsDir,
			Size:  header.UnPackedSize,
		})
	}
}

// Extract lists and extracts in a single pass over the archive headers.
func (c *RarCodec) Extract(ctx context.Context, archivePath, destDir string, onEntry func(EntryEvent)) (int, error) {
	reader, err := rardecode.OpenReader(archivePath, "")
	if err != nil {
		return 0, fmt.Errorf("failed to open rar file: %w", err)
	}
	defer reader.Close()

	fileCount := 0
	for {
		select {
		case <-ctx.Done():
			return fileCount, ctx.Err()
		default:
		}

		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return fileCount, nil
		}
		if err != nil {
			return fileCount, fmt.Errorf("failed to read rar header: %w", err)
		}

		path, err := ValidateExtractPath(destDir, header.Name)
		if err != nil {
			if !header.IsDir {
				onEntry(EntryEvent{Name: header.Name, Skipped: true, Reason: err.Error()})
			}
			continue
		}

		if header.IsDir {
			if err := os.MkdirAll(path, 0755); err != nil {
				return fileCount, fmt.Errorf("failed to create directory %s: %w", header.Name, err)
			}
			continue
		}

		if err := writeRarEntry(reader, header, path); err != nil {
			return fileCount, err
		}

		fileCount++
		onEntry(EntryEvent{Name: header.Name})
	}
}

func writeRarEntry(src io.Reader, header *rardecode.FileHeader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", header.Name, err)
	}

	mode := header.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", header.Name, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		// a wrong or missing password yields garbage that fails the checksum
		os.Remove(path)
		return fmt.Errorf("failed to extract %s: %w", header.Name, err)
	}
	return out.Close()
}
