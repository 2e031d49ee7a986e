package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/linkedout/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter

	// ディレクトリ
	Store     DirectoryStore
	Validator DraftValidator
	Filters   FilterCompiler

	// 画像アップロード（無効の場合はnil可）
	Uploader ImageUploader

	// 運用
	Pinger         Pinger
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → RateLimit
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	userHandler := NewUserHandler(deps.Store, deps.Validator, deps.Filters)
	expHandler := NewExperienceHandler(deps.Store, deps.Validator)
	imageHandler := NewImageHandler(deps.Uploader)
	healthHandler := NewHealthHandler(deps.Store, deps.Pinger)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- API ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", userHandler.ListUsers)
			r.Post("/", userHandler.CreateUser)
			r.Post("/refresh", userHandler.RefreshUsers)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.GetUser)
				r.Put("/", userHandler.UpdateUser)
				r.Delete("/", userHandler.DeleteUser)

				// POST /api/users/{id}/experiences - 職歴の追加
				r.Post("/experiences", expHandler.CreateExperience)
			})
		})

		// 職歴管理
		r.Route("/api/experiences/{id}", func(r chi.Router) {
			r.Put("/", expHandler.UpdateExperience)
			r.Delete("/", expHandler.DeleteExperience)
		})

		// 画像アップロード
		r.Post("/api/images", imageHandler.UploadImage)
	})

	return r
}
