package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/rsscast/internal/middleware"
	"github.com/hitoshi/rsscast/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// フィード
	FeedService FeedServiceInterface
	Checker     CheckRunner

	// 分類
	CategoryService CategoryServiceInterface

	// 配信先
	DestinationRepo repository.DestinationRepository

	// スケジューラ状態
	Scheduler SchedulerStatus

	// ボットイベント
	CommandRouter CommandRouter

	// メトリクス
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → CORS → RateLimit
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	feedHandler := NewFeedHandler(deps.FeedService, deps.Checker)
	categoryHandler := NewCategoryHandler(deps.CategoryService)
	destinationHandler := NewDestinationHandler(deps.DestinationRepo)
	statusHandler := NewStatusHandler(deps.FeedService, deps.Scheduler)
	eventHandler := NewEventHandler(deps.CommandRouter, deps.Logger)

	// --- レート制限の外のルート ---

	r.Get("/health", statusHandler.GetHealth)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- レート制限付きのルート ---

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.Middleware())

		r.Route("/api/feeds", func(r chi.Router) {
			r.Post("/", feedHandler.CreateFeed)
			r.Get("/", feedHandler.ListFeeds)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", feedHandler.GetFeed)
				r.Patch("/", feedHandler.UpdateFeed)
				r.Delete("/", feedHandler.DeleteFeed)
				r.Post("/check", feedHandler.CheckFeed)
				r.Post("/test", feedHandler.TestFeed)
			})
		})

		r.Route("/api/categories", func(r chi.Router) {
			r.Post("/", categoryHandler.CreateCategory)
			r.Get("/", categoryHandler.ListCategories)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", categoryHandler.UpdateCategory)
				r.Delete("/", categoryHandler.DeleteCategory)
			})
		})

		r.Route("/api/destinations", func(r chi.Router) {
			r.Get("/", destinationHandler.ListDestinations)
			r.Put("/{id}", destinationHandler.UpsertDestination)
		})

		r.Get("/status", statusHandler.GetStatus)

		r.Post("/event", eventHandler.HandleEvent)
	})

	return r
}
