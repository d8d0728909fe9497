package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/chirp/internal/metrics"
	"github.com/hitoshi/chirp/internal/middleware"
	"github.com/hitoshi/chirp/internal/realtime"
	"github.com/hitoshi/chirp/internal/view"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker HealthChecker
	SessionLoader middleware.SessionLoader
	CookieConfig  middleware.SessionCookieConfig
	CSRFConfig    middleware.CSRFConfig
	RateLimiter   *middleware.RateLimiter
	Logger        *slog.Logger
	Collector     metrics.MetricsCollector

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメインサービス
	TweetService   TweetServiceInterface
	ProfileService ProfileUpdateServiceInterface

	// 認証イベント配信
	Broker *realtime.Broker

	// 描画
	Renderer *view.Renderer

	// Prometheusスクレイプ用ハンドラー。nilなら/metricsは公開しない
	MetricsHandler http.Handler
}

// NewRouter は全ルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CSRF → Session → RateLimit(General)
//
// セッションミドルウェアは全ルートに適用し、認証済みなら注入する。
// 認証を必須にするのはRequireSessionを適用する保護ルートグループ。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
	r.Use(middleware.NewSessionMiddleware(deps.SessionLoader, deps.CookieConfig))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.Renderer, deps.Collector, deps.AuthConfig)
	homeHandler := NewHomeHandler(deps.TweetService, deps.ProfileService, deps.Renderer)
	tweetHandler := NewTweetHandler(deps.TweetService, deps.ProfileService, deps.Renderer)
	profileHandler := NewProfileHandler(deps.ProfileService, deps.TweetService, deps.Renderer)
	eventsHandler := NewEventsHandler(deps.Broker, deps.Collector)
	themeHandler := NewThemeHandler(deps.AuthConfig.CookieSecure)

	// --- 認証不要のルート ---

	// ルートはログインページと同じ扱い（認証済みなら/homeへ）
	r.Get("/", authHandler.LoginForm)
	r.Get("/health", newHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Get("/login", authHandler.LoginForm)

	r.Route("/auth", func(r chi.Router) {
		// メール+パスワード認証
		r.Post("/login", authHandler.Login)
		r.Post("/signup", authHandler.SignUp)

		// OAuthフロー
		r.Get("/google/login", authHandler.OAuthLogin("google"))
		r.Get("/github/login", authHandler.OAuthLogin("github"))
		r.Get("/callback", authHandler.Callback)

		// セッション管理
		r.Post("/logout", authHandler.Logout)
	})

	r.Post("/theme", themeHandler.Toggle)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession)

		r.Get("/home", homeHandler.Home)
		r.Post("/home", homeHandler.ToggleLike)
		r.Get("/tweet/{tweetID}", tweetHandler.Show)
		r.Get("/profile/{profileID}", profileHandler.Show)

		// 投稿作成（投稿専用レート制限を追加）
		r.With(deps.RateLimiter.TweetMiddleware()).Post("/api/tweet/new", tweetHandler.Create)

		r.Patch("/api/profile", profileHandler.Update)

		// 認証イベントのSSE
		r.Get("/auth/events", eventsHandler.Stream)
	})

	return r
}
