// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/rsscast/internal/bot"
	"github.com/hitoshi/rsscast/internal/command"
	"github.com/hitoshi/rsscast/internal/config"
	"github.com/hitoshi/rsscast/internal/database"
	"github.com/hitoshi/rsscast/internal/delivery"
	"github.com/hitoshi/rsscast/internal/feed"
	"github.com/hitoshi/rsscast/internal/fetch"
	"github.com/hitoshi/rsscast/internal/handler"
	"github.com/hitoshi/rsscast/internal/logger"
	"github.com/hitoshi/rsscast/internal/metrics"
	"github.com/hitoshi/rsscast/internal/middleware"
	"github.com/hitoshi/rsscast/internal/render"
	"github.com/hitoshi/rsscast/internal/repository"
	"github.com/hitoshi/rsscast/internal/scheduler"
	"github.com/hitoshi/rsscast/internal/security"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、スケジューラとHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	feedRepo := repository.NewPostgresFeedRepo(db)
	categoryRepo := repository.NewPostgresCategoryRepo(db)
	destRepo := repository.NewPostgresDestinationRepo(db)

	// 3. セキュリティとフェッチャーの初期化
	ssrfValidator := security.NewSSRFValidator()
	sanitizer := security.NewContentSanitizer()
	fetcher := fetch.NewClient(
		ssrfValidator, sanitizer,
		slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize,
	)

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. 配信クライアントの初期化
	botClient := bot.NewClient(
		&http.Client{Timeout: 10 * time.Second},
		slog.Default(), cfg.BotEndpoint, cfg.BotAccessToken,
	)
	renderClient := render.NewClient(
		&http.Client{Timeout: 30 * time.Second},
		slog.Default(), cfg.RenderEndpoint,
	)
	dispatcher := delivery.NewDispatcher(
		botClient, renderClient, destRepo, collector, slog.Default(),
	)

	// 6. スケジューラとサービスの初期化
	sched := scheduler.NewScheduler(
		feedRepo, fetcher, dispatcher, collector,
		slog.Default(), cfg.InitialCheckDelay,
	)
	feedService := feed.NewService(
		feedRepo, categoryRepo, sched, ssrfValidator, fetcher,
		slog.Default(), cfg.DefaultUpdateIntervalMinutes,
	)
	categoryService := feed.NewCategoryService(categoryRepo, feedRepo, slog.Default())

	// 7. コマンドルーターの初期化
	cmdRouter := command.NewRouter(
		feedService, categoryService, sched, destRepo, botClient,
		slog.Default(), cfg.CommandPrefix, cfg.CooldownSeconds,
	)

	// 8. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		FeedService:     feedService,
		Checker:         sched,
		CategoryService: categoryService,
		DestinationRepo: destRepo,
		Scheduler:       sched,
		CommandRouter:   cmdRouter,
		MetricsHandler:  metrics.Handler(registry),
	})

	// 9. 有効フィードの全タイマーを起動
	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()

	if err := sched.StartAll(schedulerCtx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// 10. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down...")

	// タイマーを先に止めてから、実行中のチェックとHTTP処理の完了を待つ
	sched.StopAll()
	cancelScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
