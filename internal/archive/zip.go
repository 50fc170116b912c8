package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

type ZipCodec struct {
	level int
}

func NewZipCodec(level int) *ZipCodec {
	return &ZipCodec{level: level}
}

// Compress stores a directory's contents with names relative to the directory
// itself, or a single file under its base name. Directories become explicit
// entries so empty ones survive a round trip.
func (c *ZipCodec) Compress(ctx context.Context, sourcePath string, dst io.Writer) (int, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat source: %w", err)
	}

	zipWriter := zip.NewWriter(dst)
	level := c.level
	zipWriter.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		fw, err := flate.NewWriter(out, level)
		if err != nil {
			return nil, err
		}
		return fw, nil
	})

	var fileCount int
	if info.IsDir() {
		// WalkDir does not descend into a symlinked root
		root, evalErr := filepath.EvalSymlinks(sourcePath)
		if evalErr != nil {
			return 0, fmt.Errorf("failed to resolve source: %w", evalErr)
		}
		fileCount, err = c.addDirectory(ctx, zipWriter, root, sameFileAs(dst))
	} else {
		err = addFile(zipWriter, sourcePath, info, filepath.Base(sourcePath))
		if err == nil {
			fileCount = 1
		}
	}
	if err != nil {
		zipWriter.Close()
		return fileCount, err
	}

	if err := zipWriter.Close(); err != nil {
		return fileCount, fmt.Errorf("failed to finalize zip: %w", err)
	}
	return fileCount, nil
}

func (c *ZipCodec) addDirectory(ctx context.Context, zipWriter *zip.Writer, root string, skip func(fs.FileInfo) bool) (int, error) {
	fileCount := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		name := filepath.ToSlash(relPath)

		info, err := d.Info()
		if err != nil {
			return err
		}

		if d.IsDir() {
			header, err := zip.FileInfoHeader(info)
			if err != nil {
				return err
			}
			header.Name = name + "/"
			header.Method = zip.Store
			_, err = zipWriter.CreateHeader(header)
			return err
		}

		if !info.Mode().IsRegular() || skip(info) {
			return nil
		}

		if err := addFile(zipWriter, path, info, name); err != nil {
			return err
		}
		fileCount++
		return nil
	})

	return fileCount, err
}

func addFile(zipWriter *zip.Writer, path string, info fs.FileInfo, name string) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zipWriter.CreateHeader(header)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	return nil
}

// sameFileAs keeps the archive being written out of its own contents when the
// output directory sits inside the source tree.
func sameFileAs(dst io.Writer) func(fs.FileInfo) bool {
	f, ok := dst.(*os.File)
	if !ok {
		return func(fs.FileInfo) bool { return false }
	}
	self, err := f.Stat()
	if err != nil {
		return func(fs.FileInfo) bool { return false }
	}
	return func(info fs.FileInfo) bool { return os.SameFile(self, info) }
}

// openZip tolerates the insecure-path error the reader returns alongside a
// usable archive; unsafe names are rejected entry by entry instead.
func openZip(archivePath string) (*zip.ReadCloser, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil && reader == nil {
		return nil, fmt.Errorf("failed to open zip file: %w", err)
	}
	return reader, nil
}

func (c *ZipCodec) List(ctx context.Context, archivePath string) ([]Entry, error) {
	reader, err := openZip(archivePath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	entries := make([]Entry, 0, len(reader.File))
	for _, file := range reader.File {
		entries = append(entries, Entry{
			Name:  file.Name,
			IsDir: file.FileInfo().IsDir(),
			Size:  int64(file.UncompressedSize64),
		})
	}
	return entries, nil
}

// Extract writes every entry under destDir, overwriting what is already
// there. Entries whose names escape destDir are skipped.
func (c *ZipCodec) Extract(ctx context.Context, archivePath, destDir string, onEntry func(EntryEvent)) (int, error) {
	reader, err := openZip(archivePath)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	fileCount := 0
	for _, file := range reader.File {
		select {
		case <-ctx.Done():
			return fileCount, ctx.Err()
		default:
		}

		isDir := file.FileInfo().IsDir()

		path, err := ValidateExtractPath(destDir, file.Name)
		if err != nil {
			if !isDir {
				onEntry(EntryEvent{Name: file.Name, Skipped: true, Reason: err.Error()})
			}
			continue
		}

		if isDir {
			if err := os.MkdirAll(path, 0755); err != nil {
				return fileCount, fmt.Errorf("failed to create directory %s: %w", file.Name, err)
			}
			continue
		}

		if err := extractZipFile(file, path); err != nil {
			return fileCount, err
		}

		fileCount++
		onEntry(EntryEvent{Name: file.Name})
	}

	return fileCount, nil
}

func extractZipFile(file *zip.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", file.Name, err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer src.Close()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", file.Name, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", file.Name, err)
	}
	return out.Close()
}
