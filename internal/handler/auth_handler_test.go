package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/chirp/internal/middleware"
	"github.com/hitoshi/chirp/internal/model"
	"github.com/hitoshi/chirp/internal/view"
)

// --- モック定義 ---

type mockAuthService struct {
	signUpFunc         func(ctx context.Context, email, password string) (*model.Session, error)
	signInFunc         func(ctx context.Context, email, password string) (*model.Session, error)
	oauthLoginURLFunc  func(provider, state string) (string, error)
	handleCallbackFunc func(ctx context.Context, provider, code string) (*model.Session, error)
	logoutFunc         func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	return m.signUpFunc(ctx, email, password)
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	return m.signInFunc(ctx, email, password)
}

func (m *mockAuthService) OAuthLoginURL(provider, state string) (string, error) {
	return m.oauthLoginURLFunc(provider, state)
}

func (m *mockAuthService) HandleCallback(ctx context.Context, provider, code string) (*model.Session, error) {
	return m.handleCallbackFunc(ctx, provider, code)
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	return m.logoutFunc(ctx, sessionID)
}

func testRenderer(t *testing.T) *view.Renderer {
	t.Helper()
	r, err := view.NewRenderer()
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	return r
}

func testSession() *model.Session {
	return &model.Session{
		ID:        "session-1",
		Token:     "token-1",
		ProfileID: "profile-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func findCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- LoginForm ---

func TestLoginForm_RendersLoginPage(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testRenderer(t), nil, AuthHandlerConfig{GoogleEnabled: true})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()
	h.LoginForm(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `action="/auth/login"`) {
		t.Error("login form should be rendered")
	}
}

func TestLoginForm_AlreadyAuthenticated_RedirectsHome(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testRenderer(t), nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req = req.WithContext(middleware.ContextWithSession(req.Context(), testSession()))
	w := httptest.NewRecorder()
	h.LoginForm(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/home" {
		t.Errorf("Location = %q, want /home", loc)
	}
}

func TestLoginForm_ShowsErrorMessageFromCode(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testRenderer(t), nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/login?error="+model.ErrCodeInvalidCredential, nil)
	w := httptest.NewRecorder()
	h.LoginForm(w, req)

	if !strings.Contains(w.Body.String(), "メールアドレスまたはパスワードが正しくありません。") {
		t.Error("error message should be rendered")
	}
}

// --- Login / SignUp ---

func TestLogin_Success_SetsSessionCookieAndRedirects(t *testing.T) {
	service := &mockAuthService{
		signInFunc: func(ctx context.Context, email, password string) (*model.Session, error) {
			if email != "user@example.com" || password != "secret" {
				t.Errorf("unexpected credentials: %s / %s", email, password)
			}
			return testSession(), nil
		},
	}
	h := NewAuthHandler(service, testRenderer(t), nil, AuthHandlerConfig{SessionMaxAge: 3600})

	form := url.Values{"email": {"user@example.com"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/home" {
		t.Errorf("Location = %q, want /home", loc)
	}

	cookie := findCookie(t, w, middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("session cookie should be set")
	}
	if cookie.Value != "session-1" {
		t.Errorf("cookie value = %q, want session-1", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
}

func TestLogin_InvalidCredential_RedirectsWithErrorCode(t *testing.T) {
	service := &mockAuthService{
		signInFunc: func(ctx context.Context, email, password string) (*model.Session, error) {
			return nil, model.NewInvalidCredentialError()
		},
	}
	h := NewAuthHandler(service, testRenderer(t), nil, AuthHandlerConfig{})

	form := url.Values{"email": {"user@example.com"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?error="+model.ErrCodeInvalidCredential {
		t.Errorf("Location = %q", loc)
	}
	if findCookie(t, w, middleware.SessionCookieName) != nil {
		t.Error("session cookie should not be set on failure")
	}
}

func TestSignUp_EmailTaken_RedirectsWithErrorCode(t *testing.T) {
	service := &mockAuthService{
		signUpFunc: func(ctx context.Context, email, password string) (*model.Session, error) {
			return nil, model.NewEmailTakenError()
		},
	}
	h := NewAuthHandler(service, testRenderer(t), nil, AuthHandlerConfig{})

	form := url.Values{"email": {"taken@example.com"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.SignUp(w, req)

	if loc := w.Header().Get("Location"); loc != "/login?error="+model.ErrCodeEmailTaken {
		t.Errorf("Location = %q", loc)
	}
}

// --- OAuth ---

func TestOAuthLogin_SetsFlowCookiesAndRedirects(t *testing.T) {
	service := &mockAuthService{
		oauthLoginURLFunc: func(provider, state string) (string, error) {
			if provider != "google" {
				t.Errorf("provider = %q, want google", provider)
			}
			if state == "" {
				t.Error("state should not be empty")
			}
			return "https://accounts.google.com/o/oauth2/v2/auth?state=" + state, nil
		},
	}
	h := NewAuthHandler(service, testRenderer(t), nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	w := httptest.NewRecorder()
	h.OAuthLogin("google")(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", w.Code)
	}

	stateCookie := findCookie(t, w, oauthStateCookie)
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("oauth state cookie should be set")
	}
	providerCookie := findCookie(t, w, oauthProviderCookie)
	if providerCookie == nil || providerCookie.Value != "google" {
		t.Fatal("oauth provider cookie should be set")
	}
	if !strings.Contains(w.Header().Get("Location"), "state="+stateCookie.Value) {
		t.Error("redirect URL should carry the same state as the cookie")
	}
}

func TestCallback_StateMismatch_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testRenderer(t), nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=c&state=query-state", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "cookie-state"})
	w := httptest.NewRecorder()
	h.Callback(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCallback_Success_SetsSessionCookieAndRedirects(t *testing.T) {
	service := &mockAuthService{
		handleCallbackFunc: func(ctx context.Context, provider, code string) (*model.Session, error) {
			if provider != "github" {
				t.Errorf("provider = %q, want github", provider)
			}
			if code != "auth-code" {
				t.Errorf("code = %q, want auth-code", code)
			}
			return testSession(), nil
		},
	}
	h := NewAuthHandler(service, testRenderer(t), nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=auth-code&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s1"})
	req.AddCookie(&http.Cookie{Name: oauthProviderCookie, Value: "github"})
	w := httptest.NewRecorder()
	h.Callback(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/home" {
		t.Errorf("Location = %q, want /home", loc)
	}
	cookie := findCookie(t, w, middleware.SessionCookieName)
	if cookie == nil || cookie.Value != "session-1" {
		t.Fatal("session cookie should be set")
	}
}

func TestCallback_ServiceError_RedirectsToLogin(t *testing.T) {
	service := &mockAuthService{
		handleCallbackFunc: func(ctx context.Context, provider, code string) (*model.Session, error) {
			return nil, context.DeadlineExceeded
		},
	}
	h := NewAuthHandler(service, testRenderer(t), nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=c&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s1"})
	req.AddCookie(&http.Cookie{Name: oauthProviderCookie, Value: "google"})
	w := httptest.NewRecorder()
	h.Callback(w, req)

	if loc := w.Header().Get("Location"); loc != "/login?error=oauth_failed" {
		t.Errorf("Location = %q", loc)
	}
}

// --- Logout ---

func TestLogout_DeletesSessionAndClearsCookie(t *testing.T) {
	var deletedSessionID string
	service := &mockAuthService{
		logoutFunc: func(ctx context.Context, sessionID string) error {
			deletedSessionID = sessionID
			return nil
		},
	}
	h := NewAuthHandler(service, testRenderer(t), nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-1"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if deletedSessionID != "session-1" {
		t.Errorf("deleted session = %q, want session-1", deletedSessionID)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
	cookie := findCookie(t, w, middleware.SessionCookieName)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Error("session cookie should be cleared")
	}
}

func TestLogout_WithoutCookie_StillRedirects(t *testing.T) {
	called := false
	service := &mockAuthService{
		logoutFunc: func(ctx context.Context, sessionID string) error {
			called = true
			return nil
		},
	}
	h := NewAuthHandler(service, testRenderer(t), nil, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if called {
		t.Error("logout should not be called without a session cookie")
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}
