package webui

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRateLimiter_RefillsOverWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(3, 3*time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("10.0.0.1"); !ok {
			t.Fatalf("request %d rejected", i)
		}
	}
	ok, wait := l.Allow("10.0.0.1")
	if ok {
		t.Fatal("fourth request allowed")
	}
	if wait <= 0 || wait > time.Minute {
		t.Errorf("wait = %v, want (0, 1m]", wait)
	}

	now = now.Add(time.Minute)
	if ok, _ := l.Allow("10.0.0.1"); !ok {
		t.Error("one token should have refilled after a minute")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(10, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(30 * time.Second)
	l.Allow("b")
	now = now.Add(45 * time.Second)

	if removed := l.Cleanup(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if l.Count() != 1 {
		t.Errorf("count = %d, want 1", l.Count())
	}
}

func TestFormatRetryAfter(t *testing.T) {
	tests := map[time.Duration]string{
		0:                      "1",
		200 * time.Millisecond: "1",
		9 * time.Second:        "9",
		9*time.Second + 1:      "10",
		15 * time.Minute:       "900",
	}
	for d, want := range tests {
		if got := formatRetryAfter(d); got != want {
			t.Errorf("formatRetryAfter(%v) = %s, want %s", d, got, want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")

	if got := getClientIP(req, false); got != "203.0.113.9" {
		t.Errorf("untrusted = %s", got)
	}
	if got := getClientIP(req, true); got != "198.51.100.1" {
		t.Errorf("trusted = %s", got)
	}
}

func TestLoggingMiddleware_LevelsAndRoute(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mw := NewLoggingMiddlewareWithConfig(LoggingMiddlewareConfig{
		Logger:    &ZapRequestLogger{Logger: zap.New(core)},
		SkipPaths: []string{"/metrics"},
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ok", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	mux.HandleFunc("GET /api/fail", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) })
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {})
	h := mw.Handler(mux)

	for _, path := range []string{"/api/ok", "/api/fail", "/metrics", "/nowhere"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3 (metrics skipped)", len(entries))
	}

	ok := entries[0].ContextMap()
	if entries[0].Level != zapcore.InfoLevel || ok["route"] != "/api/ok" || ok["bytes"] != int64(2) {
		t.Errorf("ok entry = %v %v", entries[0].Level, ok)
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["status"] != int64(http.StatusBadGateway) {
		t.Errorf("fail entry = %v %v", entries[1].Level, entries[1].ContextMap())
	}
	if entries[2].Level != zapcore.WarnLevel || entries[2].ContextMap()["route"] != "unmatched" {
		t.Errorf("404 entry = %v %v", entries[2].Level, entries[2].ContextMap())
	}
}

func TestSplitOrigins(t *testing.T) {
	got := SplitOrigins(" http://localhost:3000, https://app.example.com ,")
	if len(got) != 2 || got[0] != "http://localhost:3000" || got[1] != "https://app.example.com" {
		t.Errorf("SplitOrigins = %v", got)
	}
}
