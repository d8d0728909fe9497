package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/chirp/internal/model"
)

// --- モック定義 ---

type mockSessionLoader struct {
	loadSessionFn func(ctx context.Context, sessionID string) (*model.Session, bool, error)
}

func (m *mockSessionLoader) LoadSession(ctx context.Context, sessionID string) (*model.Session, bool, error) {
	if m.loadSessionFn != nil {
		return m.loadSessionFn(ctx, sessionID)
	}
	return nil, false, nil
}

func testCookieConfig() SessionCookieConfig {
	return SessionCookieConfig{Secure: false, MaxAge: 86400}
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsSession(t *testing.T) {
	loader := &mockSessionLoader{
		loadSessionFn: func(ctx context.Context, sessionID string) (*model.Session, bool, error) {
			if sessionID == "valid-session-id" {
				return &model.Session{
					ID:        "valid-session-id",
					ProfileID: "profile-123",
					Token:     "token-a",
					ExpiresAt: time.Now().Add(1 * time.Hour),
				}, false, nil
			}
			return nil, false, nil
		},
	}

	mw := NewSessionMiddleware(loader, testCookieConfig())

	var capturedProfileID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profileID, err := ProfileIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedProfileID = profileID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if capturedProfileID != "profile-123" {
		t.Errorf("profileID = %q, want %q", capturedProfileID, "profile-123")
	}
}

func TestSessionMiddleware_NoCookie_PassesThroughWithoutSession(t *testing.T) {
	loader := &mockSessionLoader{}
	mw := NewSessionMiddleware(loader, testCookieConfig())

	var handlerCalled bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if _, err := SessionFromContext(r.Context()); err == nil {
			t.Error("expected no session in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Error("handler should be called for anonymous request")
	}
}

func TestSessionMiddleware_RefreshedSession_RewritesCookie(t *testing.T) {
	loader := &mockSessionLoader{
		loadSessionFn: func(ctx context.Context, sessionID string) (*model.Session, bool, error) {
			return &model.Session{
				ID:        sessionID,
				ProfileID: "profile-123",
				Token:     "token-rotated",
				ExpiresAt: time.Now().Add(24 * time.Hour),
			}, true, nil
		},
	}

	mw := NewSessionMiddleware(loader, testCookieConfig())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-1"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			found = c
		}
	}
	if found == nil {
		t.Fatal("expected session cookie to be rewritten on refresh")
	}
	if found.Value != "session-1" {
		t.Errorf("cookie value = %q, want %q", found.Value, "session-1")
	}
	if found.MaxAge != 86400 {
		t.Errorf("cookie MaxAge = %d, want %d", found.MaxAge, 86400)
	}
	if !found.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
}

func TestSessionMiddleware_NotRefreshed_DoesNotRewriteCookie(t *testing.T) {
	loader := &mockSessionLoader{
		loadSessionFn: func(ctx context.Context, sessionID string) (*model.Session, bool, error) {
			return &model.Session{
				ID:        sessionID,
				ProfileID: "profile-123",
				ExpiresAt: time.Now().Add(24 * time.Hour),
			}, false, nil
		},
	}

	mw := NewSessionMiddleware(loader, testCookieConfig())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-1"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			t.Errorf("session cookie should not be rewritten without refresh, got %+v", c)
		}
	}
}

func TestSessionMiddleware_InvalidSession_ClearsCookie(t *testing.T) {
	loader := &mockSessionLoader{
		loadSessionFn: func(ctx context.Context, sessionID string) (*model.Session, bool, error) {
			// 期限切れでnilを返すローダーの動作をシミュレート
			return nil, false, nil
		},
	}

	mw := NewSessionMiddleware(loader, testCookieConfig())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "expired-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			found = c
		}
	}
	if found == nil {
		t.Fatal("expected session cookie to be cleared")
	}
	if found.MaxAge >= 0 {
		t.Errorf("expected negative MaxAge to clear cookie, got %d", found.MaxAge)
	}
}

func TestSessionMiddleware_LoaderError_PassesThroughWithoutSession(t *testing.T) {
	loader := &mockSessionLoader{
		loadSessionFn: func(ctx context.Context, sessionID string) (*model.Session, bool, error) {
			return nil, false, context.DeadlineExceeded
		},
	}

	mw := NewSessionMiddleware(loader, testCookieConfig())

	var handlerCalled bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if _, err := SessionFromContext(r.Context()); err == nil {
			t.Error("expected no session in context after loader error")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "some-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Error("handler should be called even when loader fails")
	}
}

func TestRequireSession_NoSession_RedirectsToLogin(t *testing.T) {
	handler := RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
}

func TestRequireSession_WithSession_CallsHandler(t *testing.T) {
	var handlerCalled bool
	handler := RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	session := &model.Session{ID: "s1", ProfileID: "profile-1"}
	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req = req.WithContext(ContextWithSession(req.Context(), session))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Error("handler should be called for authenticated request")
	}
}

func TestProfileIDFromContext_NoValue_ReturnsError(t *testing.T) {
	ctx := context.Background()
	if _, err := ProfileIDFromContext(ctx); err == nil {
		t.Error("expected error for missing session in context")
	}
}

func TestProfileIDFromContext_ValidValue_ReturnsProfileID(t *testing.T) {
	ctx := ContextWithSession(context.Background(), &model.Session{ID: "s1", ProfileID: "profile-456"})
	profileID, err := ProfileIDFromContext(ctx)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if profileID != "profile-456" {
		t.Errorf("profileID = %q, want %q", profileID, "profile-456")
	}
}
