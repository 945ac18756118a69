package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pomon/internal/middleware"
)

// DBPinger はヘルスチェックでのDB疎通確認に必要なインターフェース。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	HTTPMetrics       middleware.HTTPMetricsRecorder

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユニット
	UnitService UnitServiceInterface
	TagService  TagServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// ヘルスチェック
	DB DBPinger

	// メトリクス公開エンドポイント。nilの場合は公開しない。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全ルート共通のミドルウェアスタック（実行順）:
//
//	CORS → SecurityHeaders → Logging → Recovery
//
// 認証必須ルートにはさらに Session → CSRF → RateLimit(General) を重ね、
// ユニット開始（POST /api/units）には開始専用レート制限を追加する。
// 認証ルート（/api/login/*）とヘルスチェックはセッション検証の外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.HTTPMetrics))
	r.Use(middleware.NewRecoveryMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	unitHandler := NewUnitHandler(deps.UnitService, deps.TagService)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.DB))

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// CSRFトークン取得
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// 認証ルート（OAuthフロー）
	r.Route("/api/login/{provider}", func(r chi.Router) {
		r.Get("/", authHandler.Login)
		r.Get("/callback", authHandler.Callback)
	})
	r.Post("/api/logout", authHandler.Logout)
	r.Get("/api/me", authHandler.Me)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユニットライフサイクル
		r.Route("/api/units", func(r chi.Router) {
			// POST /api/units - ユニット開始（開始専用レート制限を追加）
			r.With(deps.RateLimiter.UnitCreationMiddleware()).Post("/", unitHandler.StartUnit)

			// GET /api/units?from=...&to=... - 期間指定の履歴一覧
			r.Get("/", unitHandler.ListUnits)

			// 進行中ユニット
			r.Get("/ongoing", unitHandler.GetOngoing)
			r.Delete("/ongoing", unitHandler.CancelOngoing)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", unitHandler.GetUnit)
				r.Put("/complete", unitHandler.CompleteUnit)
				r.Put("/tags", unitHandler.SetTags)
			})
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}

// healthHandler はDB疎通を含むヘルスチェックハンドラーを返す。
func healthHandler(db DBPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "unhealthy",
					"db":     "unreachable",
				})
				return
			}
		}

		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	}
}
