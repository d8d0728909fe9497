package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/chirp/internal/middleware"
	"github.com/hitoshi/chirp/internal/model"
	"github.com/hitoshi/chirp/internal/view"
)

// TweetHandler は投稿のHTTPハンドラー。
type TweetHandler struct {
	tweets   TweetServiceInterface
	profiles ProfileServiceInterface
	renderer *view.Renderer
}

// NewTweetHandler はTweetHandlerを生成する。
func NewTweetHandler(tweets TweetServiceInterface, profiles ProfileServiceInterface, renderer *view.Renderer) *TweetHandler {
	return &TweetHandler{
		tweets:   tweets,
		profiles: profiles,
		renderer: renderer,
	}
}

// Show は投稿詳細とコメント一覧を表示する。
// GET /tweet/{tweetID}
func (h *TweetHandler) Show(w http.ResponseWriter, r *http.Request) {
	profileID, err := middleware.ProfileIDFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	tweetID := chi.URLParam(r, "tweetID")

	currentUser := h.currentProfile(r, profileID)

	tweet, comments, err := h.tweets.Get(r.Context(), profileID, tweetID)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeTweetNotFound {
			renderErrorPage(w, r, h.renderer, http.StatusNotFound, currentUser, err)
			return
		}
		slog.Error("failed to load tweet",
			slog.String("tweet_id", tweetID),
			slog.String("error", err.Error()),
		)
		renderErrorPage(w, r, h.renderer, http.StatusInternalServerError, currentUser, err)
		return
	}

	h.renderer.Render(w, http.StatusOK, "tweet", view.TweetPage{
		BasePage: basePage(r, "投稿", currentUser),
		Tweet:    *tweet,
		Comments: comments,
	})
}

// Create は新しい投稿を作成する。
// POST /api/tweet/new
//
// 空本文などで失敗してもログに残すだけで、常に/homeへ戻す。
func (h *TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	profileID, err := middleware.ProfileIDFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	content := r.PostFormValue("content")
	if _, err := h.tweets.Create(r.Context(), profileID, content); err != nil {
		slog.Error("failed to create tweet",
			slog.String("profile_id", profileID),
			slog.String("error", err.Error()),
		)
	}

	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

func (h *TweetHandler) currentProfile(r *http.Request, profileID string) *model.Profile {
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
