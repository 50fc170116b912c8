package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tech-arch1tect/ziphub/internal/archive"
	"github.com/tech-arch1tect/ziphub/internal/logging"
	"github.com/tech-arch1tect/ziphub/internal/progress"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func startHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(logging.NewNop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	e := echo.New()
	e.GET("/ws/events", NewHandler(hub).HandleEvents)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return hub, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func TestHubDeliversOperationEvents(t *testing.T) {
	hub, conn := startHub(t)

	hub.Reporter("op-1", archive.KindCompress).Report(progress.Event{Percent: 40, Message: "Compressing docs.zip"})
	msg := readMessage(t, conn)
	if msg["type"] != string(MessageTypeOperationProgress) || msg["operation_id"] != "op-1" || msg["percent"] != float64(40) {
		t.Errorf("unexpected progress message %v", msg)
	}

	hub.BroadcastOperationComplete("op-1", archive.KindCompress, archive.OperationResult{Success: true, Message: "Saved docs.zip (0.01 MB)"})
	msg = readMessage(t, conn)
	if msg["type"] != string(MessageTypeOperationComplete) || msg["kind"] != "compress" {
		t.Errorf("unexpected completion message %v", msg)
	}

	if err := hub.Notify(context.Background(), "Compression complete", "Saved docs.zip"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	msg = readMessage(t, conn)
	if msg["type"] != string(MessageTypeNotification) || msg["title"] != "Compression complete" {
		t.Errorf("unexpected notification %v", msg)
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub(logging.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range broadcastBuffer * 2 {
			hub.BroadcastOperationProgress("op", archive.KindExtract, progress.Event{Percent: i % 100})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked without a running hub")
	}

	hub.Stop()
	hub.Stop()
}
