package archive

import (
	"context"
	"io"
)

type Kind string

const (
	KindCompress Kind = "compress"
	KindExtract  Kind = "extract"
)

type OperationRequest struct {
	SourcePath string `json:"source_path"`
	Kind       Kind   `json:"kind"`
}

// OperationResult is the single terminal outcome of a compress or extract
// request. OutputPath is always set when Success is true.
type OperationResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	OutputPath string `json:"output_path,omitempty"`
	EntryCount *int   `json:"entry_count,omitempty"`
	SizeBytes  *int64 `json:"size_bytes,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
}

type PreviewResult struct {
	Success bool     `json:"success"`
	Files   []string `json:"files"`
	Message string   `json:"message,omitempty"`
}

type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// EntryEvent is reported by an ArchiveReader once per non-directory entry it
// handles, whether the entry was written or skipped.
type EntryEvent struct {
	Name    string
	Skipped bool
	Reason  string
}

// Compressor writes sourcePath (a directory or a single file) as an archive to
// dst and returns the number of files stored.
type Compressor interface {
	Compress(ctx context.Context, sourcePath string, dst io.Writer) (int, error)
}

type ArchiveReader interface {
	List(ctx context.Context, archivePath string) ([]Entry, error)
	Extract(ctx context.Context, archivePath, destDir string, onEntry func(EntryEvent)) (int, error)
}
