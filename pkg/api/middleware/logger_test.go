package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func serveWith(t *testing.T, status int, logBuf *bytes.Buffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(logBuf, nil))
	engine := gin.New()
	engine.Use(Logger(log))
	engine.GET("/trace-check", func(c *gin.Context) {
		c.Status(status)
	})

	req, err := http.NewRequest(http.MethodGet, "/trace-check", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.RemoteAddr = "203.0.113.9:4242"
	engine.ServeHTTP(httptest.NewRecorder(), req)
}

func TestLoggerRecordsStatusAndClient(t *testing.T) {
	var buf bytes.Buffer
	serveWith(t, http.StatusOK, &buf)

	line := buf.String()
	for _, want := range []string{"status=200", "client=203.0.113.9", "path=/trace-check", "level=INFO"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %q: %s", want, line)
		}
	}
}

func TestLoggerElevatesServerErrors(t *testing.T) {
	var buf bytes.Buffer
	serveWith(t, http.StatusBadGateway, &buf)

	line := buf.String()
	if !strings.Contains(line, "level=ERROR") || !strings.Contains(line, "status=502") {
		t.Fatalf("expected error-level line with status 502: %s", line)
	}
}
