package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"docextract-backend/internal/shared/telemetry"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	telemetry.Configure(&buf, "debug")
	t.Cleanup(func() { telemetry.Configure(nil, "info") })
	return &buf
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatalf("expected log output")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	return payload
}

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	router := gin.New()
	router.Use(RequestID(), Logging())
	router.GET("/test", func(c *gin.Context) {
		c.Set("operationId", "op-1")
		c.Set("statusTransition", "succeeded")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-Id", "req-123")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	payload := lastLogLine(t, buf)
	required := []string{"request_id", "operation_id", "duration_ms", "status", "status_transition", "method", "path"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected log field %q in %v", key, payload)
		}
	}
	if payload["request_id"] != "req-123" {
		t.Fatalf("expected inbound request id to be reused, got %v", payload["request_id"])
	}
	if payload["operation_id"] != "op-1" {
		t.Fatalf("expected operation id op-1, got %v", payload["operation_id"])
	}
}

func TestLoggingSkipsPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	router := gin.New()
	router.Use(Logging())
	router.OPTIONS("/test", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodOptions, "/test", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if strings.Contains(buf.String(), "request.complete") {
		t.Fatalf("expected no request log for OPTIONS, got %q", buf.String())
	}
}

func TestRequestIDRejectsUnsafeHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-Id", "bad id with spaces")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	got := resp.Header().Get("X-Request-Id")
	if got == "" || strings.Contains(got, " ") {
		t.Fatalf("expected generated request id, got %q", got)
	}
	if len(got) != 32 {
		t.Fatalf("expected 32 hex chars, got %q", got)
	}
}

func TestRecoveryReturns500WithMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captureLogs(t)

	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "internal_error" || body.Error.Message != "kaboom" {
		t.Fatalf("unexpected error body %+v", body.Error)
	}
}
