package operations

import (
	"time"

	"github.com/tech-arch1tect/ziphub/internal/archive"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type OperationResponse struct {
	OperationID string `json:"operation_id"`
}

type StreamMessageType string

const (
	StreamTypeProgress StreamMessageType = "progress"
	StreamTypeComplete StreamMessageType = "complete"
)

type ProgressMessage struct {
	Type      StreamMessageType `json:"type"`
	Percent   int               `json:"percent"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
}

type CompleteMessage struct {
	Type      StreamMessageType       `json:"type"`
	Result    archive.OperationResult `json:"result"`
	Timestamp time.Time               `json:"timestamp"`
}

// Operation is a point-in-time view of one registered request.
type Operation struct {
	ID        string                   `json:"id"`
	Request   archive.OperationRequest `json:"request"`
	StartTime time.Time                `json:"start_time"`
	EndTime   *time.Time               `json:"end_time,omitempty"`
	Status    Status                   `json:"status"`
	Result    *archive.OperationResult `json:"result,omitempty"`
}

type entry struct {
	Operation
	broadcaster *Broadcaster
	done        chan struct{}
}
