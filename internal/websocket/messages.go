package websocket

import (
	"time"

	"github.com/tech-arch1tect/ziphub/internal/archive"
)

type MessageType string

const (
	MessageTypeOperationProgress MessageType = "operation_progress"
	MessageTypeOperationComplete MessageType = "operation_complete"
	MessageTypeNotification      MessageType = "notification"
)

type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

type OperationProgressEvent struct {
	BaseMessage
	OperationID string `json:"operation_id"`
	Kind        string `json:"kind"`
	Percent     int    `json:"percent"`
	Message     string `json:"message"`
}

type OperationCompleteEvent struct {
	BaseMessage
	OperationID string                  `json:"operation_id"`
	Kind        string                  `json:"kind"`
	Result      archive.OperationResult `json:"result"`
}

type NotificationEvent struct {
	BaseMessage
	Title string `json:"title"`
	Body  string `json:"body"`
}
