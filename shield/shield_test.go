package shield

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAllowAnyOriginPreflight(t *testing.T) {
	called := false
	h := AllowAnyOrigin(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/attack", nil)
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent || called {
		t.Errorf("preflight: code %d, handler called %v", rec.Code, called)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing allow-origin")
	}
}

func TestAllowAnyOriginPassThrough(t *testing.T) {
	h := AllowAnyOrigin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/monster", nil))

	if rec.Code != http.StatusTeapot || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("code %d, headers %v", rec.Code, rec.Header())
	}
}

func TestMaxBody(t *testing.T) {
	var readErr error
	h := MaxBody(8)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("short")))
	if readErr != nil {
		t.Errorf("small body: %v", readErr)
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("far too long a body")))
	if readErr == nil {
		t.Error("oversized body read without error")
	}
}

func TestRequestLogInjectsLogger(t *testing.T) {
	base := slog.New(slog.NewTextHandler(io.Discard, nil))
	var got *slog.Logger
	h := RequestLog(base)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = Logger(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user", nil))

	if got == nil || got == slog.Default() {
		t.Error("request logger not injected")
	}
	if len(rec.Header().Get("X-Trace-ID")) != 8 {
		t.Errorf("trace id = %q", rec.Header().Get("X-Trace-ID"))
	}
}
