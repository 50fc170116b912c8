package archive

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tech-arch1tect/ziphub/internal/logging"
	"github.com/tech-arch1tect/ziphub/internal/notify"
	"github.com/tech-arch1tect/ziphub/internal/progress"

	"go.uber.org/zap"
)

type Options struct {
	OutputDir        string
	CompressionLevel int
	Simulator        progress.Simulator
}

type Service struct {
	compressor *CompressOrchestrator
	extractor  *ExtractOrchestrator
	previewer  *Previewer
	notifier   notify.Notifier
	pending    sync.WaitGroup
	logger     *logging.Logger
}

func NewService(opts Options, notifier notify.Notifier, logger *logging.Logger) *Service {
	readers := map[Format]ArchiveReader{
		FormatZip: NewZipCodec(opts.CompressionLevel),
		FormatRar: NewRarCodec(),
	}
	return NewServiceWithCodecs(opts, NewZipCodec(opts.CompressionLevel), readers, notifier, logger)
}

// NewServiceWithCodecs is NewService with the codec capabilities supplied by
// the caller.
func NewServiceWithCodecs(opts Options, compressor Compressor, readers map[Format]ArchiveReader, notifier notify.Notifier, logger *logging.Logger) *Service {
	resolver := NewPathResolver()
	if notifier == nil {
		notifier = notify.Multi()
	}
	return &Service{
		compressor: NewCompressOrchestrator(compressor, resolver, opts.OutputDir, opts.Simulator, logger),
		extractor:  NewExtractOrchestrator(readers, resolver, opts.OutputDir, logger),
		previewer:  NewPreviewer(readers),
		notifier:   notifier,
		logger:     logger.With(zap.String("service", "archive")),
	}
}

func (s *Service) Compress(ctx context.Context, sourcePath string, reporter progress.Reporter) OperationResult {
	return s.Run(ctx, OperationRequest{SourcePath: sourcePath, Kind: KindCompress}, reporter)
}

func (s *Service) Extract(ctx context.Context, archivePath string, reporter progress.Reporter) OperationResult {
	return s.Run(ctx, OperationRequest{SourcePath: archivePath, Kind: KindExtract}, reporter)
}

// Run executes one request to completion and notifies about the outcome.
// Panics from codecs are recovered into a failed result.
func (s *Service) Run(ctx context.Context, req OperationRequest, reporter progress.Reporter) (result OperationResult) {
	start := time.Now()
	reporter = progress.OrNop(reporter)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("archive operation panicked",
				zap.String("kind", string(req.Kind)),
				zap.String("source_path", req.SourcePath),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			result = Failure(fmt.Errorf("internal error: %v", r))
		}
		s.logger.Debug("archive operation finished",
			zap.String("kind", string(req.Kind)),
			zap.Bool("success", result.Success),
			zap.Duration("duration", time.Since(start)),
		)
		s.notify(req.Kind, result)
	}()

	if err := ValidateRequest(req); err != nil {
		return Failure(err)
	}

	switch req.Kind {
	case KindCompress:
		return s.compressor.Compress(ctx, req.SourcePath, reporter)
	default:
		return s.extractor.Extract(ctx, req.SourcePath, reporter)
	}
}

func (s *Service) Preview(ctx context.Context, archivePath string) PreviewResult {
	files, err := s.previewer.ListEntries(ctx, archivePath)
	if err != nil {
		s.logger.Debug("preview failed",
			zap.String("archive_path", archivePath),
			zap.Error(err),
		)
		return PreviewResult{Success: false, Files: []string{}, Message: err.Error()}
	}
	return PreviewResult{Success: true, Files: files}
}

func (s *Service) notify(kind Kind, result OperationResult) {
	title := NotificationTitle(kind, result.Success)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Warn("notifier panicked", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.notifier.Notify(ctx, title, result.Message); err != nil {
			s.logger.Warn("failed to deliver notification",
				zap.String("title", title),
				zap.Error(err),
			)
		}
	}()
}

// WaitNotifications blocks until every notification already triggered has
// been delivered or has failed.
func (s *Service) WaitNotifications() {
	s.pending.Wait()
}

func NotificationTitle(kind Kind, success bool) string {
	switch {
	case kind == KindCompress && success:
		return "Compression complete"
	case kind == KindCompress:
		return "Compression failed"
	case kind == KindExtract && success:
		return "Extraction complete"
	case kind == KindExtract:
		return "Extraction failed"
	default:
		return "Operation failed"
	}
}
