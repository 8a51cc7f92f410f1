package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
)

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
		level     string
	}{
		{"success hidden at info", http.StatusOK, "", "info"},
		{"client error is info", http.StatusNotFound, `"level":"info"`, "info"},
		{"server error is error", http.StatusInternalServerError, `"level":"error"`, "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := common.NewLoggerWithOutput(tt.level, &buf)

			handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

			out := buf.String()
			if tt.wantLevel == "" {
				if out != "" {
					t.Errorf("expected no log output, got %q", out)
				}
				return
			}
			if !strings.Contains(out, tt.wantLevel) {
				t.Errorf("expected %s in %q", tt.wantLevel, out)
			}
			if !strings.Contains(out, `"path":"/api/health"`) {
				t.Errorf("expected path in log output, got %q", out)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(common.NewSilentLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestCorrelationIDMiddleware(t *testing.T) {
	var seen string
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = common.CorrelationID(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "req-123" {
		t.Errorf("expected propagated id req-123, got %q", got)
	}
	if seen != "req-123" {
		t.Errorf("expected id in context, got %q", seen)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("X-Correlation-ID"); len(got) != 8 {
		t.Errorf("expected generated 8 char id, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AllowedOrigins = []string{"https://dash.example.com"}
	handler := applyMiddleware(http.NotFoundHandler(), common.NewSilentLogger(), cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/portfolios", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/portfolios", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected disallowed origin to get no CORS header, got %q", got)
	}
}

func TestBearerTokenMiddleware(t *testing.T) {
	cfg := testConfig()
	var admin bool
	handler := bearerTokenMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin = common.IsAdmin(r.Context())
	}))

	otherCfg := testConfig()
	nonAdmin, _, err := signJWT("guest", &otherCfg.Auth)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}

	tests := []struct {
		name      string
		header    string
		wantCode  int
		wantAdmin bool
	}{
		{"anonymous", "", http.StatusOK, false},
		{"basic auth ignored", "Basic YWRtaW46aHVudGVyMg==", http.StatusOK, false},
		{"admin token", "Bearer " + adminToken(t), http.StatusOK, true},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, false},
		{"non-admin subject", "Bearer " + nonAdmin, http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admin = false
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if admin != tt.wantAdmin {
				t.Errorf("expected admin=%v, got %v", tt.wantAdmin, admin)
			}
			if tt.wantCode == http.StatusUnauthorized && !strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer") {
				t.Errorf("expected Bearer challenge, got %q", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	rec := httptest.NewRecorder()
	if requireAdmin(rec, httptest.NewRequest(http.MethodPost, "/", nil)) {
		t.Fatal("expected anonymous request to be rejected")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(common.WithAdmin(req.Context(), &common.AdminContext{Subject: "admin"}))
	if !requireAdmin(httptest.NewRecorder(), req) {
		t.Error("expected admin request to pass")
	}
}
