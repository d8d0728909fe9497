package handler

import (
	"net/http"
)

const themeCookieName = "theme"

// isValidTheme は保存を許可するテーマ値かどうかを判定する。
func isValidTheme(v string) bool {
	return v == "system" || v == "light" || v == "dark"
}

// themeFromRequest はテーマCookieを読み取る。未設定・不正値はlight。
func themeFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(themeCookieName)
	if err == nil && isValidTheme(cookie.Value) {
		return cookie.Value
	}
	return "light"
}

// ThemeHandler は表示テーマ切り替えのHTTPハンドラー。
type ThemeHandler struct {
	cookieSecure bool
}

// NewThemeHandler はThemeHandlerを生成する。
func NewThemeHandler(cookieSecure bool) *ThemeHandler {
	return &ThemeHandler{cookieSecure: cookieSecure}
}

// Toggle はテーマをlight/dark間で切り替えて元のページへ戻す。
// POST /theme
func (h *ThemeHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	next := r.PostFormValue("theme")
	if !isValidTheme(next) {
		// フォーム値が不正・欠落なら現在値から反転する
		next = "dark"
		if themeFromRequest(r) == "dark" {
			next = "light"
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     themeCookieName,
		Value:    next,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	referer := r.Header.Get("Referer")
	if referer == "" {
		referer = "/home"
	}
	http.Redirect(w, r, referer, http.StatusSeeOther)
}
