package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/chirp/internal/middleware"
	"github.com/hitoshi/chirp/internal/model"
	"github.com/hitoshi/chirp/internal/profile"
	"github.com/hitoshi/chirp/internal/view"
)

// ProfileUpdateServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileUpdateServiceInterface interface {
	Get(ctx context.Context, profileID string) (*model.Profile, error)
	Update(ctx context.Context, profileID string, input profile.UpdateInput) (*model.Profile, error)
}

// profileUpdateRequest はプロフィール更新APIのリクエストボディ。
// 対象ユーザーはセッションから導出するため、ボディには含めない。
type profileUpdateRequest struct {
	Name        string `json:"name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Username    string `json:"username"`
	Description string `json:"description"`
	Website     string `json:"website"`
	AvatarURL   string `json:"avatar_url"`
}

// ProfileHandler はプロフィールのHTTPハンドラー。
type ProfileHandler struct {
	profiles ProfileUpdateServiceInterface
	tweets   TweetServiceInterface
	renderer *view.Renderer
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(profiles ProfileUpdateServiceInterface, tweets TweetServiceInterface, renderer *view.Renderer) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		tweets:   tweets,
		renderer: renderer,
	}
}

// Show はプロフィールページを表示する。
// GET /profile/{profileID}
func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	viewerID, err := middleware.ProfileIDFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	profileID := chi.URLParam(r, "profileID")

	currentUser, err := h.profiles.Get(r.Context(), viewerID)
	if err != nil {
		slog.Warn("failed to load current profile",
			slog.String("profile_id", viewerID),
			slog.String("error", err.Error()),
		)
	}

	target, err := h.profiles.Get(r.Context(), profileID)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeProfileNotFound {
			renderErrorPage(w, r, h.renderer, http.StatusNotFound, currentUser, err)
			return
		}
		slog.Error("failed to load profile",
			slog.String("profile_id", profileID),
			slog.String("error", err.Error()),
		)
		renderErrorPage(w, r, h.renderer, http.StatusInternalServerError, currentUser, err)
		return
	}

	tweets, err := h.tweets.ListByProfile(r.Context(), viewerID, profileID)
	if err != nil {
		slog.Error("failed to list tweets by profile",
			slog.String("profile_id", profileID),
			slog.String("error", err.Error()),
		)
		renderErrorPage(w, r, h.renderer, http.StatusInternalServerError, currentUser, err)
		return
	}

	h.renderer.Render(w, http.StatusOK, "profile", view.ProfilePage{
		BasePage: basePage(r, target.Name, currentUser),
		Profile:  target,
		Tweets:   tweets,
		IsOwner:  viewerID == profileID,
	})
}

// Update は認証済みユーザー自身のプロフィールを更新する。
// PATCH /api/profile
//
// 更新対象はセッションから導出する。リクエストボディでユーザーIDを
// 指定することはできない。
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	profileID, err := middleware.ProfileIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "入力内容を確認して再度お試しください。",
		})
		return
	}

	_, err = h.profiles.Update(r.Context(), profileID, profile.UpdateInput{
		Name:        req.Name,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Username:    req.Username,
		Description: req.Description,
		Website:     req.Website,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			middleware.WriteErrorResponse(w, updateErrorStatus(apiErr), apiErr)
			return
		}
		slog.Error("failed to update profile",
			slog.String("profile_id", profileID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	middleware.WriteOKResponse(w)
}

// updateErrorStatus は更新エラーのHTTPステータスを決める。
func updateErrorStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUsernameImmutable:
		return http.StatusForbidden
	case model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeProfileNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
