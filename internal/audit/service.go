package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tech-arch1tect/ziphub/internal/logging"

	"go.uber.org/zap"
)

// Service appends operation history to a JSONL file, rotating it once it
// grows past maxSizeBytes. A disabled Service accepts and drops everything.
type Service struct {
	logger       *logging.Logger
	fileWriter   *os.File
	writeMutex   sync.Mutex
	enabled      bool
	logPath      string
	maxSizeBytes int64
	now          func() time.Time
}

type AuditEvent struct {
	Timestamp     time.Time      `json:"timestamp"`
	EventType     string         `json:"event_type"`
	EventCategory string         `json:"event_category"`
	Severity      string         `json:"severity"`
	Success       bool           `json:"success"`
	ClientIP      string         `json:"client_ip,omitempty"`
	OperationID   string         `json:"operation_id,omitempty"`
	Kind          string         `json:"kind,omitempty"`
	SourcePath    string         `json:"source_path,omitempty"`
	OutputPath    string         `json:"output_path,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	DurationMs    int64          `json:"duration_ms,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func NewService(enabled bool, logFilePath string, maxSizeBytes int64, logger *logging.Logger) (*Service, error) {
	if !enabled {
		return &Service{enabled: false}, nil
	}

	if logFilePath == "" {
		return nil, fmt.Errorf("audit log file path is required")
	}

	if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	service := &Service{
		logger:       logger.With(zap.String("service", "audit")),
		enabled:      true,
		logPath:      logFilePath,
		maxSizeBytes: maxSizeBytes,
		now:          time.Now,
	}

	if err := service.openCurrentFile(); err != nil {
		return nil, err
	}

	service.logger.Info("audit log service initialized",
		zap.String("path", logFilePath),
		zap.Int64("max_size_bytes", maxSizeBytes),
	)

	return service, nil
}

func (s *Service) openCurrentFile() error {
	file, err := os.OpenFile(s.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file %s: %w", s.logPath, err)
	}
	s.fileWriter = file
	return nil
}

func (s *Service) rotatedFilePath() string {
	ext := filepath.Ext(s.logPath)
	base := strings.TrimSuffix(s.logPath, ext)
	return fmt.Sprintf("%s-%s%s", base, s.now().Format("20060102-150405.000"), ext)
}

func (s *Service) rotateLocked() error {
	if s.fileWriter != nil {
		if err := s.fileWriter.Close(); err != nil {
			s.logger.Warn("failed to close audit log during rotation", zap.Error(err))
		}
		s.fileWriter = nil
	}

	rotatedPath := s.rotatedFilePath()
	if err := os.Rename(s.logPath, rotatedPath); err != nil {
		return fmt.Errorf("failed to rotate audit log file: %w", err)
	}

	s.logger.Info("rotated audit log file", zap.String("rotated_to", rotatedPath))
	return s.openCurrentFile()
}

func (s *Service) checkSizeRotationLocked() {
	if s.maxSizeBytes <= 0 || s.fileWriter == nil {
		return
	}

	info, err := s.fileWriter.Stat()
	if err != nil {
		s.logger.Warn("failed to stat audit log file", zap.Error(err))
		return
	}

	if info.Size() >= s.maxSizeBytes {
		if err := s.rotateLocked(); err != nil {
			s.logger.Error("failed to rotate audit log file", zap.Error(err))
		}
	}
}

func (s *Service) Log(event AuditEvent) {
	if s == nil || !s.enabled {
		return
	}

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	if s.fileWriter == nil {
		if err := s.openCurrentFile(); err != nil {
			s.logger.Error("failed to reopen audit log file", zap.Error(err))
			return
		}
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	event.EventCategory = GetEventCategory(event.EventType)
	event.Severity = GetEventSeverity(event.EventType)

	jsonData, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal audit event", zap.Error(err))
		return
	}

	if _, err := s.fileWriter.Write(append(jsonData, '\n')); err != nil {
		s.logger.Error("failed to write audit event", zap.Error(err))
		return
	}

	s.checkSizeRotationLocked()
}

func (s *Service) LogOperationEvent(eventType, clientIP, operationID, kind, sourcePath, outputPath string, success bool, failureReason string, durationMs int64) {
	s.Log(AuditEvent{
		EventType:     eventType,
		ClientIP:      clientIP,
		OperationID:   operationID,
		Kind:          kind,
		SourcePath:    sourcePath,
		OutputPath:    outputPath,
		Success:       success,
		FailureReason: failureReason,
		DurationMs:    durationMs,
	})
}

func (s *Service) LogPreviewEvent(clientIP, archivePath string, success bool, failureReason string, fileCount int) {
	s.Log(AuditEvent{
		EventType:     EventArchivePreview,
		ClientIP:      clientIP,
		SourcePath:    archivePath,
		Success:       success,
		FailureReason: failureReason,
		Metadata:      map[string]any{"file_count": fileCount},
	})
}

func (s *Service) LogAuthEvent(clientIP string, failureReason string) {
	s.Log(AuditEvent{
		EventType:     EventAuthFailure,
		ClientIP:      clientIP,
		Success:       false,
		FailureReason: failureReason,
	})
}

func (s *Service) Close() error {
	if s == nil || !s.enabled {
		return nil
	}

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	if s.fileWriter != nil {
		err := s.fileWriter.Close()
		s.fileWriter = nil
		return err
	}
	return nil
}

func (s *Service) IsEnabled() bool {
	return s != nil && s.enabled
}
