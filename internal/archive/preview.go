package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Previewer lists what an archive contains without touching the filesystem.
// Directory entries are left out for every format.
type Previewer struct {
	readers map[Format]ArchiveReader
}

func NewPreviewer(readers map[Format]ArchiveReader) *Previewer {
	return &Previewer{readers: readers}
}

func (p *Previewer) ListEntries(ctx context.Context, archivePath string) ([]string, error) {
	if archivePath == "" {
		return nil, fmt.Errorf("%w: archive path is required", ErrInvalidRequest)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, archivePath)
		}
		return nil, filesystemError("stat "+archivePath, err)
	}

	reader, ok := p.readers[DetectFormat(archivePath)]
	if !ok || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(archivePath))
	}

	entries, err := reader.List(ctx, archivePath)
	if err != nil {
		return nil, codecError(err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir {
			files = append(files, e.Name)
		}
	}
	return files, nil
}
