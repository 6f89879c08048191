package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"course-advisor/backend/config"
	"course-advisor/backend/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ── fakes ──

type fakeChecker struct {
	revoked map[string]bool
	err     error
}

func (f *fakeChecker) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], f.err
}

type fakeLimiter struct {
	calls int
	limit int
	keys  []string
	err   error
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, int, error) {
	f.calls++
	f.keys = append(f.keys, key)
	if f.err != nil {
		return false, 0, f.err
	}
	if f.calls > limit {
		return false, 0, nil
	}
	return true, limit - f.calls, nil
}

func newManager() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{JWTSecret: "middleware-test-secret", AccessTokenTTL: time.Hour})
}

func ok(c *gin.Context) { c.String(http.StatusOK, "ok") }

// ═══════════════════════════════════════════════════════════
// JWTAuth
// ═══════════════════════════════════════════════════════════

func TestJWTAuth(t *testing.T) {
	mgr := newManager()
	token, err := mgr.GenerateAccessToken("stu-1", "abc123", "student")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	claims, _ := mgr.ParseToken(token)

	tests := []struct {
		name       string
		header     string
		checker    TokenChecker
		wantStatus int
	}{
		{"MissingHeader", "", nil, 401},
		{"BadScheme", "Token " + token, nil, 401},
		{"InvalidToken", "Bearer garbage", nil, 401},
		{"Valid", "Bearer " + token, nil, 200},
		{"Revoked", "Bearer " + token, &fakeChecker{revoked: map[string]bool{claims.ID: true}}, 401},
		{"CheckerError", "Bearer " + token, &fakeChecker{err: errors.New("redis down")}, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/me", JWTAuth(mgr, tt.checker), func(c *gin.Context) {
				if c.GetString("student_id") != "stu-1" || c.GetString("role") != "student" {
					t.Error("expected student_id and role in context")
				}
				if _, exists := c.Get("claims"); !exists {
					t.Error("expected claims in context")
				}
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestRoleAuth(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		wantStatus int
	}{
		{"Admin", "admin", 200},
		{"Student", "student", 403},
		{"Missing", "", 401},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/admin", func(c *gin.Context) {
				if tt.role != "" {
					c.Set("role", tt.role)
				}
				c.Next()
			}, RoleAuth("admin"), ok)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", "/admin", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// RateLimit
// ═══════════════════════════════════════════════════════════

func TestRateLimit_BlocksAfterLimit(t *testing.T) {
	limiter := &fakeLimiter{}
	r := gin.New()
	r.POST("/generate", func(c *gin.Context) {
		c.Set("student_id", "stu-1")
		c.Next()
	}, RateLimit(limiter, 2, time.Minute), ok)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/generate", nil))
		codes = append(codes, w.Code)
		if i == 0 && w.Header().Get("X-RateLimit-Remaining") != "1" {
			t.Errorf("unexpected remaining header: %q", w.Header().Get("X-RateLimit-Remaining"))
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != 429 {
		t.Errorf("unexpected status sequence: %v", codes)
	}
	if limiter.keys[0] != "/generate:stu-1" {
		t.Errorf("expected key per route and student, got %q", limiter.keys[0])
	}
}

func TestRateLimit_Degrades(t *testing.T) {
	tests := []struct {
		name    string
		limiter RateLimiter
	}{
		{"NilLimiter", nil},
		{"LimiterError", &fakeLimiter{err: errors.New("redis down")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/generate", RateLimit(tt.limiter, 1, time.Minute), ok)
			for i := 0; i < 3; i++ {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest("POST", "/generate", nil))
				if w.Code != http.StatusOK {
					t.Fatalf("expected 200, got %d", w.Code)
				}
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// BodyLimit / RequestID / CORS
// ═══════════════════════════════════════════════════════════

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/upload", ok)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/upload", strings.NewReader("tiny")))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/upload", strings.NewReader("definitely too large")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", ok)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "trace-1")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "trace-1" {
		t.Errorf("expected incoming id to be kept, got %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", requestIDMaxLen+1))
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("expected generated uuid, got %q", got)
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173/"}))
	r.GET("/", ok)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Error("expected allowed origin to be echoed")
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unexpected CORS header for unknown origin")
	}
}
