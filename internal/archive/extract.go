package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tech-arch1tect/ziphub/internal/logging"
	"github.com/tech-arch1tect/ziphub/internal/progress"

	"go.uber.org/zap"
)

// ExtractOrchestrator unpacks an archive into a fresh, collision-free
// directory named after it. Progress is exact: processed files over the file
// count taken from a listing pass before extraction starts.
type ExtractOrchestrator struct {
	readers   map[Format]ArchiveReader
	resolver  *PathResolver
	outputDir string
	logger    *logging.Logger
}

func NewExtractOrchestrator(readers map[Format]ArchiveReader, resolver *PathResolver, outputDir string, logger *logging.Logger) *ExtractOrchestrator {
	return &ExtractOrchestrator{
		readers:   readers,
		resolver:  resolver,
		outputDir: outputDir,
		logger:    logger.With(zap.String("component", "extract")),
	}
}

// Extract never returns an error; every failure becomes an unsuccessful
// result. A run that fails midway can leave a partially populated output
// directory behind.
func (o *ExtractOrchestrator) Extract(ctx context.Context, archivePath string, reporter progress.Reporter) OperationResult {
	reporter = progress.Monotonic(reporter)

	if archivePath == "" {
		return Failure(fmt.Errorf("%w: archive path is required", ErrInvalidRequest))
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Failure(fmt.Errorf("%w: %s", ErrNotFound, archivePath))
		}
		return Failure(filesystemError("stat "+archivePath, err))
	}

	format := DetectFormat(archivePath)
	reader, ok := o.readers[format]
	if !ok || info.IsDir() {
		return Failure(fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(archivePath)))
	}

	logger := o.logger.With(
		zap.String("archive_path", archivePath),
		zap.String("format", string(format)),
	)

	reporter.Report(progress.Event{Percent: 0, Message: fmt.Sprintf("Reading %s", filepath.Base(archivePath))})

	entries, err := reader.List(ctx, archivePath)
	if err != nil {
		logger.Error("failed to list archive", zap.Error(err))
		if format == FormatRar && len(entries) == 0 {
			return Failure(fmt.Errorf("%w: %v", ErrEmptyOrProtected, err))
		}
		return Failure(codecError(err))
	}
	total := countFiles(entries)

	destDir, err := o.resolver.CreateDir(filepath.Join(o.outputDir, stripExt(filepath.Base(archivePath))))
	if err != nil {
		return Failure(err)
	}
	logger = logger.With(zap.String("output_path", destDir))
	logger.Debug("extraction started", zap.Int("total_files", total))

	processed := 0
	skipped := 0
	fileCount, err := reader.Extract(ctx, archivePath, destDir, func(ev EntryEvent) {
		processed++
		if ev.Skipped {
			skipped++
			logger.Warn("skipping archive entry",
				zap.String("entry", ev.Name),
				zap.String("reason", ev.Reason),
			)
		}
		reporter.Report(progress.Event{
			Percent: percentOf(processed, total),
			Message: fmt.Sprintf("Extracting %s", ev.Name),
		})
	})
	if err != nil {
		logger.Error("extraction failed",
			zap.Int("extracted", fileCount),
			zap.Error(err),
		)
		// without a password, encrypted rar entries fail on their first read
		if format == FormatRar && fileCount == 0 {
			result := Failure(fmt.Errorf("%w: %v", ErrEmptyOrProtected, err))
			result.OutputPath = destDir
			return result
		}
		result := Failure(codecError(err))
		result.OutputPath = destDir
		return result
	}

	if format == FormatRar && fileCount == 0 {
		logger.Warn("rar archive produced no files")
		result := Failure(ErrEmptyOrProtected)
		result.OutputPath = destDir
		return result
	}

	reporter.Report(progress.Event{Percent: 100, Message: "Extraction complete"})

	logger.Info("extraction completed",
		zap.Int("file_count", fileCount),
		zap.Int("skipped", skipped),
	)

	return OperationResult{
		Success:    true,
		Message:    fmt.Sprintf("Extracted %d files to %s", fileCount, filepath.Base(destDir)),
		OutputPath: destDir,
		EntryCount: &fileCount,
	}
}

func countFiles(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if !e.IsDir {
			n++
		}
	}
	return n
}

func percentOf(processed, total int) int {
	if total <= 0 {
		return 100
	}
	return min(processed*100/total, 100)
}

func stripExt(base string) string {
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return base
	}
	return stem
}
