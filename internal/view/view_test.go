package view

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/chirp/internal/model"
)

func TestNewRenderer_ParsesAllTemplates(t *testing.T) {
	if _, err := NewRenderer(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRender_LoginPage(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := httptest.NewRecorder()
	r.Render(w, 200, "login", LoginPage{
		BasePage:      BasePage{Title: "ログイン", CSRFToken: "csrf-1", Theme: "light"},
		ErrorMessage:  "メールアドレスまたはパスワードが正しくありません。",
		GoogleEnabled: true,
	})

	body := w.Body.String()
	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(body, "メールアドレスまたはパスワードが正しくありません。") {
		t.Error("error message should be rendered")
	}
	if !strings.Contains(body, "Googleでログイン") {
		t.Error("google login link should be rendered when enabled")
	}
	if strings.Contains(body, "GitHubでログイン") {
		t.Error("github login link should not be rendered when disabled")
	}
	if !strings.Contains(body, `value="csrf-1"`) {
		t.Error("csrf token should be embedded in forms")
	}
}

func TestRender_HomePage_EscapesContent(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := httptest.NewRecorder()
	r.Render(w, 200, "home", HomePage{
		BasePage: BasePage{
			Title:       "ホーム",
			CurrentUser: &model.Profile{ID: "profile-1", Name: "User"},
			Theme:       "dark",
		},
		Tweets: []model.TweetWithMeta{
			{
				Tweet:     model.Tweet{ID: "t1", Content: "<b>bold</b>", CreatedAt: time.Now()},
				Author:    model.Profile{ID: "profile-2", Name: "Author"},
				LikeCount: 2,
				HasLiked:  true,
			},
		},
	})

	body := w.Body.String()
	// html/templateが自動エスケープする
	if strings.Contains(body, "<b>bold</b>") {
		t.Error("tweet content should be escaped")
	}
	if !strings.Contains(body, "&lt;b&gt;bold&lt;/b&gt;") {
		t.Error("escaped content should be present")
	}
	if !strings.Contains(body, `data-theme="dark"`) {
		t.Error("theme should be applied to layout")
	}
}

func TestRender_ProfilePage_UsernameReadonlyOnceSet(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := httptest.NewRecorder()
	r.Render(w, 200, "profile", ProfilePage{
		BasePage: BasePage{Title: "プロフィール", CurrentUser: &model.Profile{ID: "p1"}},
		Profile:  &model.Profile{ID: "p1", Name: "User", Username: "hitoshi"},
		IsOwner:  true,
	})

	body := w.Body.String()
	if !strings.Contains(body, "readonly") {
		t.Error("username input should be readonly once set")
	}
	if !strings.Contains(body, "ユーザー名は変更できません") {
		t.Error("immutability hint should be rendered")
	}
}

func TestRender_UnknownPage_Returns500(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := httptest.NewRecorder()
	r.Render(w, 200, "no-such-page", nil)

	if w.Code != 500 {
		t.Errorf("status = %d, want 500", w.Code)
	}
}
