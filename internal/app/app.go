// Package app はアプリケーションの起動・初期化・ワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/chirp/internal/auth"
	"github.com/hitoshi/chirp/internal/config"
	"github.com/hitoshi/chirp/internal/database"
	"github.com/hitoshi/chirp/internal/handler"
	"github.com/hitoshi/chirp/internal/logger"
	"github.com/hitoshi/chirp/internal/metrics"
	"github.com/hitoshi/chirp/internal/middleware"
	"github.com/hitoshi/chirp/internal/profile"
	"github.com/hitoshi/chirp/internal/realtime"
	"github.com/hitoshi/chirp/internal/repository"
	"github.com/hitoshi/chirp/internal/security"
	"github.com/hitoshi/chirp/internal/tweet"
	"github.com/hitoshi/chirp/internal/view"
	"github.com/hitoshi/chirp/internal/worker/cleanup"
)

// sessionCleanupInterval は期限切れセッション削除の実行間隔。
const sessionCleanupInterval = 24 * time.Hour

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
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
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCleanup:
		return runCleanup(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
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
	profileRepo := repository.NewPostgresProfileRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	tweetRepo := repository.NewPostgresTweetRepo(db)
	likeRepo := repository.NewPostgresLikeRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)

	// 3. セキュリティサービスとメトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 認証イベントブローカーの初期化
	broker := realtime.NewBroker()

	// 5. ドメインサービスの初期化
	var providers []auth.OAuthProvider
	if cfg.GoogleEnabled() {
		providers = append(providers, auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
		}))
	}
	if cfg.GitHubEnabled() {
		providers = append(providers, auth.NewGitHubOAuthProvider(auth.GitHubOAuthConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
		}))
	}

	avatarFetcher := profile.NewAvatarFetcher(ssrfGuard, profile.AvatarFetcherConfig{
		Timeout: cfg.AvatarFetchTimeout,
		MaxSize: cfg.AvatarMaxSize,
	})

	authService := auth.NewService(
		providers, profileRepo, identRepo, sessionRepo, avatarFetcher, broker,
		auth.ServiceConfig{
			SessionMaxAge:        cfg.SessionMaxAge,
			SessionRefreshWindow: cfg.SessionRefreshWindow,
		},
	)

	tweetService := tweet.NewService(tweetRepo, likeRepo, commentRepo, sanitizer, collector)
	profileService := profile.NewService(profileRepo, sanitizer, ssrfGuard, avatarFetcher)

	// 6. テンプレートレンダラーの初期化
	renderer, err := view.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}

	// 7. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.TweetRate = rate.Limit(float64(cfg.RateLimitTweet) / 60.0)
	rateLimiterCfg.TweetBurst = cfg.RateLimitTweet

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	cookieConfig := middleware.SessionCookieConfig{
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
		MaxAge: cfg.SessionMaxAge,
	}

	deps := &handler.RouterDeps{
		HealthChecker: db,
		SessionLoader: authService,
		CookieConfig:  cookieConfig,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		Logger:      slog.Default(),
		Collector:   collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
			GoogleEnabled: cfg.GoogleEnabled(),
			GitHubEnabled: cfg.GitHubEnabled(),
		},

		TweetService:   tweetService,
		ProfileService: profileService,

		Broker:   broker,
		Renderer: renderer,

		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 8. バックグラウンドジョブの起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleanupJob := cleanup.NewCleanupJob(sessionRepo, slog.Default())
	go cleanupJob.Start(ctx, sessionCleanupInterval)

	// 9. HTTPサーバーの起動
	server := newHTTPServer(cfg.ServerPort, router, ctx)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down web server...")

	// バックグラウンドジョブとSSE接続を先に止める。
	// BaseContext経由で全リクエストコンテキストがキャンセルされるため、
	// SSEハンドラーも終了し、Shutdownが接続待ちで固まらない。
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// newHTTPServer はHTTPサーバーを構成する。
// baseCtxは全リクエストコンテキストの親になる。シャットダウン時に
// キャンセルすることで、SSEのような長時間接続もハンドラー側から終了する。
func newHTTPServer(port string, router http.Handler, baseCtx context.Context) *http.Server {
	return &http.Server{
		Addr:        ":" + port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// SSEの長時間接続があるためWriteTimeoutは設定しない
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}
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

// runCleanup は期限切れセッションの削除を1回実行して終了する。
// サーバー内の定期実行とは別に、運用上手動で実行したい場合に使う。
func runCleanup(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sessionRepo := repository.NewPostgresSessionRepo(db)
	job := cleanup.NewCleanupJob(sessionRepo, slog.Default())
	return job.Run(context.Background())
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
