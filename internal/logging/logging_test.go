package logging

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"DEBUG", zapcore.DebugLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}

	if _, err := NewLogger("verbose"); err == nil {
		t.Error("expected NewLogger to reject an unknown level")
	}
}

func TestNewLoggerWithFormat(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatConsole, ""} {
		l, err := NewLoggerWithFormat("debug", format)
		if err != nil {
			t.Fatalf("format %q: %v", format, err)
		}
		if l.Named("test").Zap() == nil {
			t.Errorf("format %q: nil zap logger", format)
		}
	}
	if _, err := NewLoggerWithFormat("info", "xml"); err == nil {
		t.Error("expected an unknown format to be rejected")
	}
}

func TestRequestLoggingMiddlewareSetsRequestID(t *testing.T) {
	e := echo.New()
	mw := RequestLoggingMiddleware(NewNop())

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/preview", nil), rec)
	if err := mw(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })(c); err != nil {
		t.Fatal(err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a generated request ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	rec = httptest.NewRecorder()
	boom := errors.New("boom")
	err := mw(func(echo.Context) error { return boom })(e.NewContext(req, rec))
	if !errors.Is(err, boom) {
		t.Errorf("expected handler error to pass through, got %v", err)
	}
	if rec.Header().Get(RequestIDHeader) != "fixed-id" {
		t.Error("expected incoming request ID to be echoed")
	}
}
