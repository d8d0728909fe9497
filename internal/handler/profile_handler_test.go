package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/chirp/internal/middleware"
	"github.com/hitoshi/chirp/internal/model"
	"github.com/hitoshi/chirp/internal/profile"
)

func emptyTweetList() *mockTweetService {
	return &mockTweetService{
		listByProfileFunc: func(ctx context.Context, viewerID, profileID string) ([]model.TweetWithMeta, error) {
			return nil, nil
		},
	}
}

// --- Show ---

func TestProfileShow_OwnProfile_RendersEditForm(t *testing.T) {
	profiles := &mockProfileService{
		getFunc: func(ctx context.Context, profileID string) (*model.Profile, error) {
			return &model.Profile{ID: profileID, Name: "本人", Username: "hitoshi"}, nil
		},
	}
	h := NewProfileHandler(profiles, emptyTweetList(), testRenderer(t))

	req := authenticatedRequest(http.MethodGet, "/profile/profile-1", "")
	req = withURLParam(req, "profileID", "profile-1")
	w := httptest.NewRecorder()
	h.Show(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "プロフィールを編集") {
		t.Error("edit form should be rendered for the owner")
	}
}

func TestProfileShow_OtherProfile_HidesEditForm(t *testing.T) {
	profiles := &mockProfileService{
		getFunc: func(ctx context.Context, profileID string) (*model.Profile, error) {
			return &model.Profile{ID: profileID, Name: "他人"}, nil
		},
	}
	h := NewProfileHandler(profiles, emptyTweetList(), testRenderer(t))

	req := authenticatedRequest(http.MethodGet, "/profile/profile-2", "")
	req = withURLParam(req, "profileID", "profile-2")
	w := httptest.NewRecorder()
	h.Show(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if strings.Contains(w.Body.String(), "プロフィールを編集") {
		t.Error("edit form should not be rendered for other users")
	}
}

func TestProfileShow_NotFound_Renders404(t *testing.T) {
	profiles := &mockProfileService{
		getFunc: func(ctx context.Context, profileID string) (*model.Profile, error) {
			if profileID == "profile-1" {
				// 閲覧者自身のプロフィール
				return &model.Profile{ID: profileID, Name: "本人"}, nil
			}
			return nil, model.NewProfileNotFoundError(profileID)
		},
	}
	h := NewProfileHandler(profiles, emptyTweetList(), testRenderer(t))

	req := authenticatedRequest(http.MethodGet, "/profile/gone", "")
	req = withURLParam(req, "profileID", "gone")
	w := httptest.NewRecorder()
	h.Show(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// --- Update ---

func TestProfileUpdate_Success_ReturnsOK(t *testing.T) {
	var gotProfileID string
	var gotInput profile.UpdateInput
	profiles := &mockProfileService{
		updateFunc: func(ctx context.Context, profileID string, input profile.UpdateInput) (*model.Profile, error) {
			gotProfileID = profileID
			gotInput = input
			return &model.Profile{ID: profileID}, nil
		},
	}
	h := NewProfileHandler(profiles, emptyTweetList(), testRenderer(t))

	body := `{"name":"新しい名前","username":"hitoshi","website":"https://example.com"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/profile", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.ContextWithSession(req.Context(), testSession()))
	w := httptest.NewRecorder()
	h.Update(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	// 更新対象はボディではなくセッションから導出される
	if gotProfileID != "profile-1" {
		t.Errorf("profileID = %q, want profile-1", gotProfileID)
	}
	if gotInput.Name != "新しい名前" || gotInput.Website != "https://example.com" {
		t.Errorf("unexpected input: %+v", gotInput)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if resp["ok"] != true {
		t.Error("ok should be true")
	}
	if resp["error"] != nil {
		t.Errorf("error should be null, got %v", resp["error"])
	}
}

func TestProfileUpdate_Unauthenticated_Returns401(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{}, emptyTweetList(), testRenderer(t))

	req := httptest.NewRequest(http.MethodPatch, "/api/profile", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.Update(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	var resp middleware.ErrorResponseBody
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if resp.OK {
		t.Error("ok should be false")
	}
	if resp.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeUnauthorized)
	}
}

func TestProfileUpdate_UsernameImmutable_Returns403(t *testing.T) {
	profiles := &mockProfileService{
		updateFunc: func(ctx context.Context, profileID string, input profile.UpdateInput) (*model.Profile, error) {
			return nil, model.NewUsernameImmutableError()
		},
	}
	h := NewProfileHandler(profiles, emptyTweetList(), testRenderer(t))

	req := httptest.NewRequest(http.MethodPatch, "/api/profile", strings.NewReader(`{"username":"changed"}`))
	req = req.WithContext(middleware.ContextWithSession(req.Context(), testSession()))
	w := httptest.NewRecorder()
	h.Update(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	var resp middleware.ErrorResponseBody
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if resp.Code != model.ErrCodeUsernameImmutable {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeUsernameImmutable)
	}
}

func TestProfileUpdate_InvalidURL_Returns400(t *testing.T) {
	profiles := &mockProfileService{
		updateFunc: func(ctx context.Context, profileID string, input profile.UpdateInput) (*model.Profile, error) {
			return nil, model.NewInvalidURLError("scheme must be http or https")
		},
	}
	h := NewProfileHandler(profiles, emptyTweetList(), testRenderer(t))

	req := httptest.NewRequest(http.MethodPatch, "/api/profile", strings.NewReader(`{"website":"ftp://example.com"}`))
	req = req.WithContext(middleware.ContextWithSession(req.Context(), testSession()))
	w := httptest.NewRecorder()
	h.Update(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestProfileUpdate_MalformedBody_Returns400(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{}, emptyTweetList(), testRenderer(t))

	req := httptest.NewRequest(http.MethodPatch, "/api/profile", strings.NewReader(`{not json`))
	req = req.WithContext(middleware.ContextWithSession(req.Context(), testSession()))
	w := httptest.NewRecorder()
	h.Update(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
