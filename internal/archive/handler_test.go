package archive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tech-arch1tect/ziphub/internal/audit"
	"github.com/tech-arch1tect/ziphub/internal/logging"

	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T, outputDir string) *Handler {
	t.Helper()
	auditService, err := audit.NewService(false, "", 0, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return NewHandler(newTestService(t, outputDir, nil, nil, nil), auditService)
}

func doJSON(t *testing.T, handler echo.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func TestHandlerCompressAndExtract(t *testing.T) {
	src := filepath.Join(t.TempDir(), "docs")
	writeTree(t, src, map[string]string{"a.txt": "a"})
	out := t.TempDir()
	h := newTestHandler(t, out)

	body, _ := json.Marshal(PathRequest{SourcePath: src})
	rec := doJSON(t, h.Compress, http.MethodPost, "/api/compress", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var compressed OperationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &compressed); err != nil {
		t.Fatal(err)
	}
	if !compressed.Success || compressed.OutputPath != filepath.Join(out, "docs.zip") {
		t.Fatalf("unexpected compress result %+v", compressed)
	}

	body, _ = json.Marshal(PathRequest{SourcePath: compressed.OutputPath})
	rec = doJSON(t, h.Extract, http.MethodPost, "/api/extract", string(body))
	var extracted OperationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &extracted); err != nil {
		t.Fatal(err)
	}
	if !extracted.Success || extracted.OutputPath != filepath.Join(out, "docs") {
		t.Errorf("unexpected extract result %+v", extracted)
	}
}

func TestHandlerCompressSurvivesClientDisconnect(t *testing.T) {
	src := filepath.Join(t.TempDir(), "docs")
	writeTree(t, src, map[string]string{"a.txt": "alpha", "sub/b.txt": "beta"})
	out := t.TempDir()
	h := newTestHandler(t, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body, _ := json.Marshal(PathRequest{SourcePath: src})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/compress", strings.NewReader(string(body))).WithContext(ctx)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Compress(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	var result OperationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("expected success despite cancelled request, got %+v", result)
	}

	dest := filepath.Join(t.TempDir(), "check")
	if _, err := NewZipCodec(6).Extract(context.Background(), result.OutputPath, dest, func(EntryEvent) {}); err != nil {
		t.Fatal(err)
	}
	got := readTree(t, dest)
	if got["a.txt"] != "alpha" || got["sub/b.txt"] != "beta" {
		t.Errorf("archive incomplete: %v", got)
	}
}

func TestHandlerFailuresAreResults(t *testing.T) {
	h := newTestHandler(t, t.TempDir())

	body, _ := json.Marshal(PathRequest{SourcePath: filepath.Join(t.TempDir(), "missing.zip")})
	rec := doJSON(t, h.Extract, http.MethodPost, "/api/extract", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a failed operation, got %d", rec.Code)
	}
	var result OperationResult
	json.Unmarshal(rec.Body.Bytes(), &result)
	if result.Success || result.ErrorKind != "not_found" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestHandlerRequiresSourcePath(t *testing.T) {
	h := newTestHandler(t, t.TempDir())

	for _, body := range []string{`{}`, `{"source_path":""}`, `not json`} {
		rec := doJSON(t, h.Compress, http.MethodPost, "/api/compress", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestHandlerPreview(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bundle")
	writeTree(t, src, map[string]string{"x/y.txt": "y"})
	archivePath := filepath.Join(t.TempDir(), "bundle.zip")
	compressToFile(t, NewZipCodec(6), src, archivePath)

	h := newTestHandler(t, t.TempDir())

	rec := doJSON(t, h.Preview, http.MethodGet, "/api/preview?path="+url.QueryEscape(archivePath), "")
	var result PreviewResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if !result.Success || len(result.Files) != 1 || result.Files[0] != "x/y.txt" {
		t.Errorf("unexpected preview %+v", result)
	}

	rec = doJSON(t, h.Preview, http.MethodGet, "/api/preview", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without path, got %d", rec.Code)
	}
}
