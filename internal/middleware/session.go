// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/chirp/internal/model"
)

// SessionCookieName はセッションIDを保持するHTTP Only Cookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionLoader はセッションの取得に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
// refreshed=trueはトークンが回転されたことを示し、呼び出し側は
// セッションCookieを書き直して有効期限を延長する。
type SessionLoader interface {
	LoadSession(ctx context.Context, sessionID string) (session *model.Session, refreshed bool, err error)
}

// SessionCookieConfig はセッションCookieの属性設定。
type SessionCookieConfig struct {
	Secure bool
	Domain string
	MaxAge int // 秒
}

// NewSessionMiddleware はリクエストごとにHTTP Only Cookieからセッションを読み取り、
// 有効なセッションをリクエストコンテキストに注入するミドルウェアを返す。
//
// セッションの取得は毎リクエスト行い、前回リクエストの結果を使い回さない。
// トークンが回転された場合はレスポンスのセッションCookieを書き直す。
// セッションが無い・無効な場合でもリクエストは通過させる。
// 認証を必須にするのはRequireSessionの責務。
func NewSessionMiddleware(loader SessionLoader, config SessionCookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			// 2. セッションを取得。必要ならトークンを回転する
			session, refreshed, err := loader.LoadSession(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to load session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if session == nil {
				// 無効なCookieは削除する
				ClearSessionCookie(w, config)
				next.ServeHTTP(w, r)
				return
			}

			// 3. トークン回転時はCookieを書き直して有効期限を延長
			if refreshed {
				SetSessionCookie(w, session.ID, config)
			}

			// 4. セッションをコンテキストに注入
			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession は認証済みセッションを必須とするミドルウェアを返す。
// 未認証のリクエストは/loginへリダイレクトする。
// NewSessionMiddlewareの後に配置する。
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := SessionFromContext(r.Context()); err != nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションミドルウェアを通過した認証済みリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*model.Session, error) {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	if !ok || session == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return session, nil
}

// ProfileIDFromContext はリクエストコンテキストから認証済みユーザーのプロフィールIDを取得する。
func ProfileIDFromContext(ctx context.Context) (string, error) {
	session, err := SessionFromContext(ctx)
	if err != nil {
		return "", err
	}
	return session.ProfileID, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SetSessionCookie はセッションCookieをレスポンスに設定する。
func SetSessionCookie(w http.ResponseWriter, sessionID string, config SessionCookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.MaxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, config SessionCookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
