package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/chirp/internal/model"
)

func authedRequest(method, target, profileID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	session := &model.Session{ID: "s-" + profileID, ProfileID: profileID}
	return req.WithContext(ContextWithSession(req.Context(), session))
}

func TestGeneralMiddleware_UnderLimit_Passes(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(10),
		GeneralBurst:    5,
		TweetRate:       rate.Limit(1),
		TweetBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodGet, "/home", "profile-1"))
		if w.Result().StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}
}

func TestGeneralMiddleware_OverLimit_Returns429(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01),
		GeneralBurst:    2,
		TweetRate:       rate.Limit(1),
		TweetBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// バーストを使い切る
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(http.MethodGet, "/home", "profile-1"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(http.MethodGet, "/home", "profile-1"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestGeneralMiddleware_LimitsArePerUser(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01),
		GeneralBurst:    1,
		TweetRate:       rate.Limit(1),
		TweetBurst:      1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// profile-1 がバーストを使い切る
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(http.MethodGet, "/home", "profile-1"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(http.MethodGet, "/home", "profile-1"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("profile-1 should be limited, got %d", w.Result().StatusCode)
	}

	// profile-2 は影響を受けない
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(http.MethodGet, "/home", "profile-2"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("profile-2 should not be limited, got %d", w.Result().StatusCode)
	}
}

func TestGeneralMiddleware_AnonymousRequest_UsesRemoteAddr(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("anonymous request should pass, got %d", w.Result().StatusCode)
	}
	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("expected 1 limiter entry, got %d", rl.GeneralLimiterCount())
	}
}

func TestTweetMiddleware_NoSession_Returns401(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	handler := rl.TweetMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/tweet/new", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestTweetMiddleware_IndependentFromGeneralLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.01),
		GeneralBurst:    1,
		TweetRate:       rate.Limit(10),
		TweetBurst:      5,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	generalHandler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	tweetHandler := rl.TweetMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// 全般リミットを使い切る
	w := httptest.NewRecorder()
	generalHandler.ServeHTTP(w, authedRequest(http.MethodGet, "/home", "profile-1"))
	w = httptest.NewRecorder()
	generalHandler.ServeHTTP(w, authedRequest(http.MethodGet, "/home", "profile-1"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("general limit should be exhausted, got %d", w.Result().StatusCode)
	}

	// 投稿リミットは独立している
	w = httptest.NewRecorder()
	tweetHandler.ServeHTTP(w, authedRequest(http.MethodPost, "/api/tweet/new", "profile-1"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("tweet limiter should be independent, got %d", w.Result().StatusCode)
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(10),
		GeneralBurst:    10,
		TweetRate:       rate.Limit(10),
		TweetBurst:      10,
		CleanupInterval: 10 * time.Millisecond,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest(http.MethodGet, "/home", "profile-1"))
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("expected 1 limiter entry, got %d", rl.GeneralLimiterCount())
	}

	// TTL（CleanupInterval * 2）経過後にクリーンアップされる
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rl.GeneralLimiterCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("stale limiter entry was not cleaned up")
}
