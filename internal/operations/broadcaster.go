package operations

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tech-arch1tect/ziphub/internal/archive"
	"github.com/tech-arch1tect/ziphub/internal/logging"
	"github.com/tech-arch1tect/ziphub/internal/progress"

	"go.uber.org/zap"
)

const subscriberBuffer = 64

// Subscriber owns one stream writer. Frames are queued on send and written
// by the subscriber's own goroutine, so a stalled writer never holds up the
// broadcaster or the operation feeding it.
type Subscriber struct {
	ID       string
	Writer   io.Writer
	send     chan []byte
	finished chan struct{}
}

func newSubscriber(id string, writer io.Writer, backlog int) *Subscriber {
	return &Subscriber{
		ID:       id,
		Writer:   writer,
		send:     make(chan []byte, backlog+subscriberBuffer),
		finished: make(chan struct{}),
	}
}

func (s *Subscriber) writeLoop(logger *logging.Logger) {
	defer close(s.finished)

	failed := false
	for frame := range s.send {
		if failed {
			continue
		}
		if err := writeFrame(s.Writer, frame); err != nil {
			logger.Debug("subscriber write failed",
				zap.String("subscriber_id", s.ID),
				zap.Error(err))
			failed = true
		}
	}
}

// Broadcaster keeps the server-sent event history of one operation and
// queues every new event to the current subscribers. Late subscribers get
// the full history first, so a stream opened after completion still sees
// every progress event and the terminal result.
type Broadcaster struct {
	operationID  string
	subscribers  map[string]*Subscriber
	messageLog   [][]byte
	mu           sync.Mutex
	completed    bool
	completeOnce sync.Once
	logger       *logging.Logger
	now          func() time.Time
}

func NewBroadcaster(operationID string, logger *logging.Logger) *Broadcaster {
	return &Broadcaster{
		operationID: operationID,
		subscribers: make(map[string]*Subscriber),
		messageLog:  make([][]byte, 0, 32),
		logger:      logger.With(zap.String("operation_id", operationID)),
		now:         time.Now,
	}
}

// Subscribe replays the history to writer and then follows live events. The
// returned channel is closed once the subscriber has nothing left to write:
// after the terminal event, after Unsubscribe, or after it fell too far behind
// and was dropped.
func (b *Broadcaster) Subscribe(subscriberID string, writer io.Writer) <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscriber(subscriberID, writer, len(b.messageLog))
	for _, frame := range b.messageLog {
		sub.send <- frame
	}
	go sub.writeLoop(b.logger)

	if b.completed {
		close(sub.send)
	} else {
		b.subscribers[subscriberID] = sub
	}

	b.logger.Debug("subscriber joined",
		zap.String("subscriber_id", subscriberID),
		zap.Int("replayed", len(b.messageLog)))
	return sub.finished
}

func (b *Broadcaster) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[subscriberID]; ok {
		delete(b.subscribers, subscriberID)
		close(sub.send)
	}
	b.logger.Debug("subscriber left",
		zap.String("subscriber_id", subscriberID),
		zap.Int("remaining", len(b.subscribers)))
}

// Report makes the broadcaster a progress sink.
func (b *Broadcaster) Report(e progress.Event) {
	b.broadcast(ProgressMessage{
		Type:      StreamTypeProgress,
		Percent:   e.Percent,
		Message:   e.Message,
		Timestamp: b.now().UTC(),
	}, false)
}

func (b *Broadcaster) BroadcastComplete(result archive.OperationResult) {
	b.completeOnce.Do(func() {
		b.broadcast(CompleteMessage{
			Type:      StreamTypeComplete,
			Result:    result,
			Timestamp: b.now().UTC(),
		}, true)
	})
}

func (b *Broadcaster) broadcast(message any, final bool) {
	data, err := json.Marshal(message)
	if err != nil {
		b.logger.Error("failed to marshal stream message", zap.Error(err))
		return
	}
	frame := fmt.Appendf(nil, "data: %s\n\n", data)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.completed {
		return
	}
	b.messageLog = append(b.messageLog, frame)

	for id, sub := range b.subscribers {
		select {
		case sub.send <- frame:
		default:
			b.logger.Warn("stream subscriber too slow, dropping it",
				zap.String("subscriber_id", id))
			delete(b.subscribers, id)
			close(sub.send)
		}
	}

	if final {
		b.completed = true
		b.logger.Debug("operation stream completed",
			zap.Int("subscribers", len(b.subscribers)))
		for id, sub := range b.subscribers {
			delete(b.subscribers, id)
			close(sub.send)
		}
	}
}

func writeFrame(writer io.Writer, frame []byte) error {
	if _, err := writer.Write(frame); err != nil {
		return err
	}
	if flusher, ok := writer.(interface{ Flush() }); ok {
		defer func() { _ = recover() }()
		flusher.Flush()
	}
	return nil
}
