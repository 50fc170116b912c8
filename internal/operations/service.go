package operations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/tech-arch1tect/ziphub/internal/archive"
	"github.com/tech-arch1tect/ziphub/internal/audit"
	"github.com/tech-arch1tect/ziphub/internal/logging"
	"github.com/tech-arch1tect/ziphub/internal/progress"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// streamDrainTimeout bounds how long a cancelled Stream waits for its writer
// goroutine to let go of w.
const streamDrainTimeout = 2 * time.Second

var (
	ErrOperationNotFound = errors.New("operation not found")
	ErrShuttingDown      = errors.New("operations service is shutting down")
)

// Runner executes one archive request to completion.
type Runner interface {
	Run(ctx context.Context, req archive.OperationRequest, reporter progress.Reporter) archive.OperationResult
}

// Publisher receives every operation's events in addition to its own SSE
// stream. The websocket hub is the production implementation.
type Publisher interface {
	Reporter(operationID string, kind archive.Kind) progress.Reporter
	BroadcastOperationComplete(operationID string, kind archive.Kind, result archive.OperationResult)
}

type nopPublisher struct{}

func (nopPublisher) Reporter(string, archive.Kind) progress.Reporter { return progress.Nop }

func (nopPublisher) BroadcastOperationComplete(string, archive.Kind, archive.OperationResult) {}

// Service registers archive requests and runs each one in its own goroutine.
// Operations run concurrently; there is no per-path locking because every
// run resolves its own collision-free output name.
type Service struct {
	runner       Runner
	publisher    Publisher
	auditService *audit.Service
	retainFor    time.Duration
	operations   map[string]*entry
	mutex        sync.RWMutex
	wg           sync.WaitGroup
	closed       bool
	logger       *logging.Logger
	now          func() time.Time
}

func NewService(runner Runner, publisher Publisher, auditService *audit.Service, retainFor time.Duration, logger *logging.Logger) *Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	logger.Debug("operations service initialized",
		zap.Duration("retain_for", retainFor),
	)
	return &Service{
		runner:       runner,
		publisher:    publisher,
		auditService: auditService,
		retainFor:    retainFor,
		operations:   make(map[string]*entry),
		logger:       logger.With(zap.String("service", "operations")),
		now:          time.Now,
	}
}

// Start registers req and returns its ID without waiting for it to run. The
// run is detached from ctx cancellation: once accepted, an operation always
// produces a terminal result.
func (s *Service) Start(ctx context.Context, req archive.OperationRequest) (string, error) {
	if err := archive.ValidateRequest(req); err != nil {
		return "", err
	}

	operationID := uuid.New().String()
	e := &entry{
		Operation: Operation{
			ID:        operationID,
			Request:   req,
			StartTime: s.now(),
			Status:    StatusRunning,
		},
		broadcaster: NewBroadcaster(operationID, s.logger),
		done:        make(chan struct{}),
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return "", ErrShuttingDown
	}
	s.pruneLocked()
	s.operations[operationID] = e
	s.wg.Add(1)
	s.mutex.Unlock()

	s.logger.Info("operation started",
		zap.String("operation_id", operationID),
		zap.String("kind", string(req.Kind)),
		zap.String("source_path", req.SourcePath),
	)

	go s.execute(context.WithoutCancel(ctx), e)

	return operationID, nil
}

func (s *Service) execute(ctx context.Context, e *entry) {
	defer s.wg.Done()

	req := e.Request
	reporter := progress.NewAsync(progress.Multi(
		e.broadcaster,
		s.publisher.Reporter(e.ID, req.Kind),
	))

	result := s.runner.Run(ctx, req, reporter)

	// progress must be fully delivered before the terminal event
	reporter.Close()

	end := s.now()
	status := StatusCompleted
	if !result.Success {
		status = StatusFailed
	}

	// the terminal state is published before any consumer sees it, so no
	// stream or websocket client can hold Wait or Shutdown back
	s.mutex.Lock()
	e.EndTime = &end
	e.Status = status
	e.Result = &result
	s.mutex.Unlock()
	close(e.done)

	e.broadcaster.BroadcastComplete(result)
	s.publisher.BroadcastOperationComplete(e.ID, req.Kind, result)

	duration := end.Sub(e.StartTime)
	eventType := audit.EventOperationCompleted
	if !result.Success {
		eventType = audit.EventOperationFailed
	}
	s.auditService.LogOperationEvent(eventType, "", e.ID, string(req.Kind), req.SourcePath, result.OutputPath, result.Success, failureReason(result), duration.Milliseconds())

	s.logger.Info("operation finished",
		zap.String("operation_id", e.ID),
		zap.String("status", string(status)),
		zap.String("output_path", result.OutputPath),
		zap.Duration("duration", duration),
	)
}

func failureReason(result archive.OperationResult) string {
	if result.Success {
		return ""
	}
	return result.Message
}

func (s *Service) Get(operationID string) (Operation, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	e, ok := s.operations[operationID]
	if !ok {
		return Operation{}, false
	}
	return e.snapshot(), true
}

// List returns every retained operation, newest first.
func (s *Service) List() []Operation {
	s.mutex.RLock()
	out := make([]Operation, 0, len(s.operations))
	for _, e := range s.operations {
		out = append(out, e.snapshot())
	}
	s.mutex.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// Wait blocks until the operation has a terminal result or ctx ends.
func (s *Service) Wait(ctx context.Context, operationID string) (archive.OperationResult, error) {
	s.mutex.RLock()
	e, ok := s.operations[operationID]
	s.mutex.RUnlock()
	if !ok {
		return archive.OperationResult{}, ErrOperationNotFound
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return archive.OperationResult{}, ctx.Err()
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return *e.Result, nil
}

// Stream writes the operation's event history and then live events to w as
// server-sent events. It returns once the terminal event has been written,
// when w fell too far behind and was dropped, or when ctx ends. Writes to w
// happen on a separate goroutine; after cancellation Stream waits at most
// streamDrainTimeout for it, so a writer that blocks indefinitely is
// abandoned rather than waited on.
func (s *Service) Stream(ctx context.Context, operationID string, w io.Writer) error {
	s.mutex.RLock()
	e, ok := s.operations[operationID]
	s.mutex.RUnlock()
	if !ok {
		return ErrOperationNotFound
	}

	subscriberID := fmt.Sprintf("sub-%s", uuid.New().String())
	finished := e.broadcaster.Subscribe(subscriberID, w)

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		e.broadcaster.Unsubscribe(subscriberID)
		select {
		case <-finished:
		case <-time.After(streamDrainTimeout):
		}
		return ctx.Err()
	}
}

// Shutdown stops accepting operations and waits for running ones to finish
// or for ctx to end. Running operations are never aborted.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mutex.Lock()
	s.closed = true
	running := 0
	for _, e := range s.operations {
		if e.Status == StatusRunning {
			running++
		}
	}
	s.mutex.Unlock()

	if running > 0 {
		s.logger.Info("waiting for running operations", zap.Int("running", running))
	}

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) pruneLocked() {
	if s.retainFor <= 0 {
		return
	}
	cutoff := s.now().Add(-s.retainFor)
	for id, e := range s.operations {
		if e.EndTime != nil && e.EndTime.Before(cutoff) {
			delete(s.operations, id)
		}
	}
}

func (e *entry) snapshot() Operation {
	op := e.Operation
	if e.Result != nil {
		result := *e.Result
		op.Result = &result
	}
	if e.EndTime != nil {
		end := *e.EndTime
		op.EndTime = &end
	}
	return op
}
