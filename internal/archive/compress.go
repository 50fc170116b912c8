package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tech-arch1tect/ziphub/internal/logging"
	"github.com/tech-arch1tect/ziphub/internal/progress"

	"go.uber.org/zap"
)

// CompressOrchestrator turns a folder or file into "<name>.zip" in the output
// directory. Progress is simulated: the codec exposes no byte counts, so
// the percentage climbs on a timer and only reaches 100 on success.
type CompressOrchestrator struct {
	codec     Compressor
	resolver  *PathResolver
	outputDir string
	simulator progress.Simulator
	logger    *logging.Logger
}

func NewCompressOrchestrator(codec Compressor, resolver *PathResolver, outputDir string, simulator progress.Simulator, logger *logging.Logger) *CompressOrchestrator {
	return &CompressOrchestrator{
		codec:     codec,
		resolver:  resolver,
		outputDir: outputDir,
		simulator: simulator,
		logger:    logger.With(zap.String("component", "compress")),
	}
}

// Compress never returns an error; every failure becomes an unsuccessful
// result. A failed run can leave a partial archive at the reported path.
func (o *CompressOrchestrator) Compress(ctx context.Context, sourcePath string, reporter progress.Reporter) OperationResult {
	reporter = progress.Monotonic(reporter)

	if sourcePath == "" {
		return Failure(fmt.Errorf("%w: source path is required", ErrInvalidRequest))
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Failure(fmt.Errorf("%w: %s", ErrNotFound, sourcePath))
		}
		return Failure(filesystemError("stat "+sourcePath, err))
	}

	if err := os.MkdirAll(o.outputDir, 0755); err != nil {
		return Failure(filesystemError("create output directory", err))
	}

	archiveName := archiveNameFor(sourcePath)
	file, targetPath, err := o.resolver.CreateFile(filepath.Join(o.outputDir, archiveName))
	if err != nil {
		return Failure(err)
	}

	logger := o.logger.With(
		zap.String("source_path", sourcePath),
		zap.String("output_path", targetPath),
		zap.Bool("is_dir", info.IsDir()),
	)
	logger.Debug("compression started")

	message := fmt.Sprintf("Compressing %s", filepath.Base(targetPath))
	reporter.Report(progress.Event{Percent: 0, Message: message})

	stop := o.simulator.Start(reporter, 0, message)
	fileCount, codecErr := o.codec.Compress(ctx, sourcePath, file)
	stop()

	if closeErr := file.Close(); codecErr == nil && closeErr != nil {
		codecErr = closeErr
	}
	if codecErr != nil {
		logger.Error("compression failed", zap.Error(codecErr))
		result := Failure(codecError(codecErr))
		result.OutputPath = targetPath
		return result
	}

	stat, err := os.Stat(targetPath)
	if err != nil {
		return Failure(filesystemError("stat "+targetPath, err))
	}
	size := stat.Size()

	reporter.Report(progress.Event{Percent: 100, Message: "Compression complete"})

	logger.Info("compression completed",
		zap.Int("file_count", fileCount),
		zap.Int64("size_bytes", size),
	)

	return OperationResult{
		Success:    true,
		Message:    fmt.Sprintf("Saved %s (%.2f MB)", filepath.Base(targetPath), megabytes(size)),
		OutputPath: targetPath,
		EntryCount: &fileCount,
		SizeBytes:  &size,
	}
}

func archiveNameFor(sourcePath string) string {
	base := filepath.Base(filepath.Clean(sourcePath))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "archive"
	}
	return base + ".zip"
}

func megabytes(size int64) float64 {
	return float64(size) / (1024 * 1024)
}
