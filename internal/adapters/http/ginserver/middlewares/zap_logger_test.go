package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(ZapLogger(zap.New(core), "/metrics"))
	r.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	tests := []struct {
		path  string
		level zapcore.Level
		code  int
	}{
		{"/metrics", zapcore.DebugLevel, http.StatusOK},
		{"/missing", zapcore.InfoLevel, http.StatusNotFound},
		{"/boom", zapcore.ErrorLevel, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.code {
			t.Fatalf("%s: code %d, want %d", tt.path, w.Code, tt.code)
		}
	}

	entries := logs.All()
	if len(entries) != len(tests) {
		t.Fatalf("got %d log entries, want %d", len(entries), len(tests))
	}
	for i, tt := range tests {
		e := entries[i]
		if e.Level != tt.level {
			t.Errorf("%s: level %s, want %s", tt.path, e.Level, tt.level)
		}
		fields := e.ContextMap()
		if fields["path"] != tt.path {
			t.Errorf("path field = %v", fields["path"])
		}
		if fields["status"] != int64(tt.code) {
			t.Errorf("status field = %v", fields["status"])
		}
	}
}
