// Package view は埋め込みHTMLテンプレートの描画を提供する。
package view

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/chirp/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageTemplates は各ページ名とコンテンツテンプレートファイルの対応。
var pageTemplates = map[string]string{
	"login":   "templates/login.html",
	"home":    "templates/home.html",
	"tweet":   "templates/tweet.html",
	"profile": "templates/profile.html",
	"error":   "templates/error.html",
}

// BasePage は全ページ共通の描画データ。
type BasePage struct {
	Title        string
	CurrentUser  *model.Profile // 未ログインならnil
	SessionToken string         // 描画時点のアクセストークン。未ログインなら空
	CSRFToken    string
	Theme        string // "light" または "dark"
}

// LoginPage はログインページの描画データ。
type LoginPage struct {
	BasePage
	ErrorMessage  string
	GoogleEnabled bool
	GitHubEnabled bool
}

// HomePage はホームタイムラインの描画データ。
type HomePage struct {
	BasePage
	Tweets []model.TweetWithMeta
}

// TweetPage は投稿詳細ページの描画データ。
type TweetPage struct {
	BasePage
	Tweet    model.TweetWithMeta
	Comments []model.CommentWithAuthor
}

// ProfilePage はプロフィールページの描画データ。
type ProfilePage struct {
	BasePage
	Profile *model.Profile
	Tweets  []model.TweetWithMeta
	IsOwner bool
}

// ErrorPage はエラーページの描画データ。
type ErrorPage struct {
	BasePage
	Message string
	Action  string
}

// Renderer は埋め込みテンプレートを描画する。
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer は全ページテンプレートをパースしてRendererを生成する。
// パースは起動時に一度だけ行い、不正なテンプレートは起動エラーにする。
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"formatTime": formatTime,
	}

	templates := make(map[string]*template.Template, len(pageTemplates))
	for name, file := range pageTemplates {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		templates[name] = t
	}

	return &Renderer{templates: templates}, nil
}

// Render は指定ページを描画する。
func (r *Renderer) Render(w http.ResponseWriter, statusCode int, page string, data any) {
	t, ok := r.templates[page]
	if !ok {
		slog.Error("unknown template", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := t.ExecuteTemplate(w, "layout.html", data); err != nil {
		// ヘッダー送信後のためステータスは変えられない。ログのみ
		slog.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}

// formatTime は表示用の日時フォーマットを返す。
func formatTime(t time.Time) string {
	return t.Local().Format("2006/01/02 15:04")
}
