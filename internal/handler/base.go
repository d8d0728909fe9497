package handler

import (
	"net/http"

	"github.com/hitoshi/chirp/internal/middleware"
	"github.com/hitoshi/chirp/internal/model"
	"github.com/hitoshi/chirp/internal/view"
)

// basePage は全ページ共通の描画データを組み立てる。
// SessionTokenには描画時点のアクセストークンが入り、画面側の
// セッション同期（トークン回転の検知）に使われる。
func basePage(r *http.Request, title string, currentUser *model.Profile) view.BasePage {
	page := view.BasePage{
		Title:       title,
		CurrentUser: currentUser,
		CSRFToken:   middleware.CSRFTokenFromRequest(r),
		Theme:       themeFromRequest(r),
	}
	if session, err := middleware.SessionFromContext(r.Context()); err == nil {
		page.SessionToken = session.Token
	}
	return page
}

// renderErrorPage はエラーページを描画する。
// APIErrorの場合はメッセージと対処方法をそのまま表示する。
func renderErrorPage(w http.ResponseWriter, r *http.Request, renderer *view.Renderer, statusCode int, currentUser *model.Profile, err error) {
	message := "エラーが発生しました。"
	action := "時間をおいて再度お試しください。"
	if apiErr, ok := err.(*model.APIError); ok {
		message = apiErr.Message
		action = apiErr.Action
	}
	renderer.Render(w, statusCode, "error", view.ErrorPage{
		BasePage: basePage(r, "エラー", currentUser),
		Message:  message,
		Action:   action,
	})
}
