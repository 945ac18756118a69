package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/pomon/internal/middleware"
	"github.com/hitoshi/pomon/internal/model"
)

// mockSessionFinder はmiddleware.SessionFinderのモック実装。
type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

// mockPinger はDBPingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

// newTestRouterDeps はテスト用の依存一式を構築する。
// 返り値のcleanupはレートリミッターのバックグラウンドループを停止する。
func newTestRouterDeps(t *testing.T) (*RouterDeps, func()) {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())

	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session" {
				return &model.Session{
					ID:        id,
					UserID:    "user-123",
					ExpiresAt: time.Now().Add(time.Hour),
				}, nil
			}
			return nil, nil
		},
	}

	now := time.Now()
	deps := &RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		SessionFinder:     finder,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		CSRFConfig:        middleware.CSRFConfig{},
		AuthService:       &mockAuthService{},
		AuthConfig:        testAuthConfig(),
		UnitService: &mockUnitService{
			currentFn: func(ctx context.Context, userID string) (*model.Unit, error) {
				return testUnit(now), nil
			},
		},
		TagService:  &mockTagService{},
		UserService: &mockUserService{},
		DB:          &mockPinger{},
	}

	return deps, rl.Stop
}

func TestNewRouter_HealthEndpoint(t *testing.T) {
	deps, cleanup := newTestRouterDeps(t)
	defer cleanup()

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestNewRouter_HealthEndpoint_DBUnreachable(t *testing.T) {
	deps, cleanup := newTestRouterDeps(t)
	defer cleanup()
	deps.DB = &mockPinger{err: context.DeadlineExceeded}

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusServiceUnavailable)
	}
}

func TestNewRouter_CSRFTokenEndpoint(t *testing.T) {
	deps, cleanup := newTestRouterDeps(t)
	defer cleanup()

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if findCookie(w.Result(), "csrf_token") == nil {
		t.Error("expected csrf_token cookie to be set")
	}
}

func TestNewRouter_ProtectedRoute_NoSession_ReturnsUnauthorized(t *testing.T) {
	deps, cleanup := newTestRouterDeps(t)
	defer cleanup()

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/units/ongoing", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestNewRouter_ProtectedRoute_ValidSession_Succeeds(t *testing.T) {
	deps, cleanup := newTestRouterDeps(t)
	defer cleanup()

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/units/ongoing", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestNewRouter_ProtectedPost_WithoutCSRFToken_ReturnsForbidden(t *testing.T) {
	deps, cleanup := newTestRouterDeps(t)
	defer cleanup()

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/api/units", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestNewRouter_CORSHeaders(t *testing.T) {
	deps, cleanup := newTestRouterDeps(t)
	defer cleanup()

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want http://localhost:3000", got)
	}
}

func TestNewRouter_MetricsEndpoint_NotMountedWhenNil(t *testing.T) {
	deps, cleanup := newTestRouterDeps(t)
	defer cleanup()

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestNewRouter_MetricsEndpoint_MountedWhenProvided(t *testing.T) {
	deps, cleanup := newTestRouterDeps(t)
	defer cleanup()
	deps.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestNewRouter_LoginRoute_Reachable(t *testing.T) {
	deps, cleanup := newTestRouterDeps(t)
	defer cleanup()

	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/login/google", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	// モックは常にURLを返すためリダイレクトになる
	if w.Result().StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTemporaryRedirect)
	}
}
