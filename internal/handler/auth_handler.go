// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/chirp/internal/metrics"
	"github.com/hitoshi/chirp/internal/middleware"
	"github.com/hitoshi/chirp/internal/model"
	"github.com/hitoshi/chirp/internal/view"
)

const (
	oauthStateCookie    = "oauth_state"
	oauthProviderCookie = "oauth_provider"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, email, password string) (*model.Session, error)
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	OAuthLoginURL(provider, state string) (string, error)
	HandleCallback(ctx context.Context, provider, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
	GoogleEnabled bool
	GitHubEnabled bool
}

// AuthHandler はログイン・登録・OAuth・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	renderer  *view.Renderer
	collector metrics.MetricsCollector
	config    AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, renderer *view.Renderer, collector metrics.MetricsCollector, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		renderer:  renderer,
		collector: collector,
		config:    config,
	}
}

// sessionCookieConfig はミドルウェアのCookie設定に変換する。
func (h *AuthHandler) sessionCookieConfig() middleware.SessionCookieConfig {
	return middleware.SessionCookieConfig{
		Secure: h.config.CookieSecure,
		Domain: h.config.CookieDomain,
		MaxAge: h.config.SessionMaxAge,
	}
}

// LoginForm はログインページを表示する。
// GET /login
// ログイン済みの場合は/homeへリダイレクトする。
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.SessionFromContext(r.Context()); err == nil {
		http.Redirect(w, r, "/home", http.StatusFound)
		return
	}

	h.renderer.Render(w, http.StatusOK, "login", view.LoginPage{
		BasePage: view.BasePage{
			Title:     "ログイン",
			CSRFToken: middleware.CSRFTokenFromRequest(r),
			Theme:     themeFromRequest(r),
		},
		ErrorMessage:  loginErrorMessage(r.URL.Query().Get("error")),
		GoogleEnabled: h.config.GoogleEnabled,
		GitHubEnabled: h.config.GitHubEnabled,
	})
}

// Login はメール+パスワードでログインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	session, err := h.service.SignIn(r.Context(), email, password)
	if err != nil {
		h.recordLogin("failure")
		redirectLoginError(w, r, err)
		return
	}

	h.recordLogin("success")
	middleware.SetSessionCookie(w, session.ID, h.sessionCookieConfig())
	http.Redirect(w, r, "/home", http.StatusFound)
}

// SignUp はメール+パスワードで新規登録する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	session, err := h.service.SignUp(r.Context(), email, password)
	if err != nil {
		h.recordLogin("failure")
		redirectLoginError(w, r, err)
		return
	}

	h.recordLogin("success")
	middleware.SetSessionCookie(w, session.ID, h.sessionCookieConfig())
	http.Redirect(w, r, "/home", http.StatusFound)
}

// OAuthLogin はOAuthフローを開始する。
// GET /auth/{provider}/login
// stateと使用プロバイダーをCookieに保存してからプロバイダーへリダイレクトする。
// コールバックは全プロバイダー共通の/auth/callbackで受けるため、
// プロバイダー名もCookieで往復させる。
func (h *AuthHandler) OAuthLogin(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := generateState()
		if err != nil {
			slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		loginURL, err := h.service.OAuthLoginURL(provider, state)
		if err != nil {
			slog.Error("failed to build oauth login url",
				slog.String("provider", provider),
				slog.String("error", err.Error()),
			)
			http.Redirect(w, r, "/login?error=oauth_failed", http.StatusFound)
			return
		}

		// stateをCookieに保存（CSRF対策）
		h.setFlowCookie(w, oauthStateCookie, state)
		h.setFlowCookie(w, oauthProviderCookie, provider)

		http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
	}
}

// Callback はOAuthコールバックを処理する。
// GET /auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	providerCookie, err := r.Cookie(oauthProviderCookie)
	if err != nil || providerCookie.Value == "" {
		http.Error(w, "missing oauth provider", http.StatusBadRequest)
		return
	}

	// フローCookieを削除
	h.clearFlowCookie(w, oauthStateCookie)
	h.clearFlowCookie(w, oauthProviderCookie)

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	// 3. 認証処理
	session, err := h.service.HandleCallback(r.Context(), providerCookie.Value, code)
	if err != nil {
		slog.Error("oauth callback failed",
			slog.String("provider", providerCookie.Value),
			slog.String("error", err.Error()),
		)
		h.recordLogin("failure")
		http.Redirect(w, r, "/login?error=oauth_failed", http.StatusFound)
		return
	}

	// 4. セッションCookieを設定（HTTP Only）
	h.recordLogin("success")
	middleware.SetSessionCookie(w, session.ID, h.sessionCookieConfig())

	http.Redirect(w, r, "/home", http.StatusFound)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		// セッションをDBから削除
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	middleware.ClearSessionCookie(w, h.sessionCookieConfig())
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *AuthHandler) recordLogin(result string) {
	if h.collector != nil {
		h.collector.RecordLoginAttempt(result)
	}
}

func (h *AuthHandler) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectLoginError は認証エラーをエラーコード付きで/loginへ戻す。
// APIError以外の内部エラーは詳細を出さず汎用コードにする。
func redirectLoginError(w http.ResponseWriter, r *http.Request, err error) {
	code := "internal"
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.Code
	} else {
		slog.Error("authentication failed", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/login?error="+url.QueryEscape(code), http.StatusFound)
}

// loginErrorMessage はエラーコードを表示用メッセージに変換する。
func loginErrorMessage(code string) string {
	switch code {
	case "":
		return ""
	case model.ErrCodeInvalidCredential:
		return model.NewInvalidCredentialError().Message
	case model.ErrCodeEmailTaken:
		return model.NewEmailTakenError().Message
	case "oauth_failed":
		return "ソーシャルログインに失敗しました。再度お試しください。"
	default:
		return "エラーが発生しました。再度お試しください。"
	}
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
