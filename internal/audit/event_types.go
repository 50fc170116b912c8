package audit

const (
	EventOperationStarted   = "operation.started"
	EventOperationCompleted = "operation.completed"
	EventOperationFailed    = "operation.failed"
	EventOperationStreamed  = "operation.streamed"
)

const (
	EventArchivePreview = "archive.preview"
)

const (
	EventAuthFailure = "auth.failure"
)

func GetEventCategory(eventType string) string {
	switch eventType {
	case EventOperationStarted, EventOperationCompleted, EventOperationFailed, EventOperationStreamed:
		return "operation"
	case EventArchivePreview:
		return "archive"
	case EventAuthFailure:
		return "auth"
	default:
		return "unknown"
	}
}

func GetEventSeverity(eventType string) string {
	switch eventType {
	case EventOperationFailed, EventAuthFailure:
		return "high"
	case EventOperationStarted, EventOperationCompleted:
		return "medium"
	default:
		return "low"
	}
}
