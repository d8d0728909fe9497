package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/chirp/internal/middleware"
	"github.com/hitoshi/chirp/internal/model"
	"github.com/hitoshi/chirp/internal/view"
)

// TweetServiceInterface はハンドラーが必要とする投稿サービスインターフェース。
type TweetServiceInterface interface {
	Create(ctx context.Context, profileID, content string) (*model.Tweet, error)
	Feed(ctx context.Context, viewerID string) ([]model.TweetWithMeta, error)
	ListByProfile(ctx context.Context, viewerID, profileID string) ([]model.TweetWithMeta, error)
	Get(ctx context.Context, viewerID, tweetID string) (*model.TweetWithMeta, []model.CommentWithAuthor, error)
	ToggleLike(ctx context.Context, profileID, tweetID string, clientHasLiked *bool) (string, error)
}

// ProfileServiceInterface はハンドラーが必要とするプロフィールサービスインターフェース。
type ProfileServiceInterface interface {
	Get(ctx context.Context, profileID string) (*model.Profile, error)
}

// HomeHandler はホームタイムラインのHTTPハンドラー。
type HomeHandler struct {
	tweets   TweetServiceInterface
	profiles ProfileServiceInterface
	renderer *view.Renderer
}

// NewHomeHandler はHomeHandlerを生成する。
func NewHomeHandler(tweets TweetServiceInterface, profiles ProfileServiceInterface, renderer *view.Renderer) *HomeHandler {
	return &HomeHandler{
		tweets:   tweets,
		profiles: profiles,
		renderer: renderer,
	}
}

// Home はタイムラインを表示する。
// GET /home
func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	profileID, err := middleware.ProfileIDFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	currentUser := h.currentProfile(r)

	tweets, err := h.tweets.Feed(r.Context(), profileID)
	if err != nil {
		slog.Error("failed to load feed",
			slog.String("profile_id", profileID),
			slog.String("error", err.Error()),
		)
		renderErrorPage(w, r, h.renderer, http.StatusInternalServerError, currentUser, err)
		return
	}

	h.renderer.Render(w, http.StatusOK, "home", view.HomePage{
		BasePage: basePage(r, "ホーム", currentUser),
		Tweets:   tweets,
	})
}

// ToggleLike はいいねの有無を切り替える。
// POST /home
//
// 失敗してもエラーページは出さずログに残すだけで、常に/homeへ戻す。
// 再描画すればサーバー側の正しい状態が表示される。
func (h *HomeHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	profileID, err := middleware.ProfileIDFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	tweetID := r.PostFormValue("tweet_id")
	clientHasLiked := parseHasLiked(r.PostFormValue("has_liked"))

	if tweetID == "" {
		slog.Warn("like toggle without tweet_id",
			slog.String("profile_id", profileID),
		)
	} else if _, err := h.tweets.ToggleLike(r.Context(), profileID, tweetID, clientHasLiked); err != nil {
		slog.Error("failed to toggle like",
			slog.String("profile_id", profileID),
			slog.String("tweet_id", tweetID),
			slog.String("error", err.Error()),
		)
	}

	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

// currentProfile は認証済みユーザーのプロフィールを取得する。
// 表示用のため、失敗してもnilを返してページ自体は描画させる。
func (h *HomeHandler) currentProfile(r *http.Request) *model.Profile {
	profileID, err := middleware.ProfileIDFromContext(r.Context())
	if err != nil {
		return nil
	}
	profile, err := h.profiles.Get(r.Context(), profileID)
	if err != nil {
		slog.Warn("failed to load current profile",
			slog.String("profile_id", profileID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return profile
}

// parseHasLiked は画面が申告するいいね状態を解釈する。
// 値が無い・不正な場合はnil（申告なし）として扱う。
func parseHasLiked(value string) *bool {
	switch value {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}
