package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/chirp/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // リクエスト全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // リクエスト全般のバーストサイズ
	TweetRate       rate.Limit    // 投稿作成のレート（req/sec）。15/60
	TweetBurst      int           // 投稿作成のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// リクエスト全般 120 req/min/user、投稿作成 15 req/min/user
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0), // 2 req/sec
		GeneralBurst:    120,
		TweetRate:       rate.Limit(15.0 / 60.0), // 0.25 req/sec
		TweetBurst:      15,
		CleanupInterval: 5 * time.Minute,
	}
}

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はユーザーごとのレート制限を管理する。
// リクエスト全般のレート制限と投稿作成のレート制限の2種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.RWMutex
	generalLimiters map[string]*userLimiter

	tweetMu       sync.RWMutex
	tweetLimiters map[string]*userLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		generalLimiters: make(map[string]*userLimiter),
		tweetLimiters:   make(map[string]*userLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はリクエスト全般のレート制限ミドルウェアを返す。
// 認証済みユーザーはプロフィールID、未認証リクエストはリモートアドレスをキーにする。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limiterKey(r)

			limiter := rl.getOrCreateGeneralLimiter(key)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// TweetMiddleware は投稿作成専用のレート制限ミドルウェアを返す。
// リクエスト全般のレート制限とは独立に動作する。
// リクエストコンテキストにセッションが含まれている必要がある
// （SessionMiddlewareとRequireSessionの後に配置）。
func (rl *RateLimiter) TweetMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profileID, err := ProfileIDFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			limiter := rl.getOrCreateTweetLimiter(profileID)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.TweetRate)
				slog.Warn("rate limit exceeded",
					slog.String("key", profileID),
					slog.String("limit_type", "tweet"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているリクエスト全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	rl.generalMu.RLock()
	defer rl.generalMu.RUnlock()
	return len(rl.generalLimiters)
}

// TweetLimiterCount は現在管理されている投稿作成リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) TweetLimiterCount() int {
	rl.tweetMu.RLock()
	defer rl.tweetMu.RUnlock()
	return len(rl.tweetLimiters)
}

// limiterKey はレート制限のキーを決定する。
// 認証済みならプロフィールID、未認証ならリモートアドレス。
func limiterKey(r *http.Request) string {
	if profileID, err := ProfileIDFromContext(r.Context()); err == nil {
		return profileID
	}
	return r.RemoteAddr
}

// getOrCreateGeneralLimiter はキーのリクエスト全般リミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateGeneralLimiter(key string) *rate.Limiter {
	rl.generalMu.RLock()
	ul, exists := rl.generalLimiters[key]
	rl.generalMu.RUnlock()

	if exists {
		rl.generalMu.Lock()
		ul.lastAccess = time.Now()
		rl.generalMu.Unlock()
		return ul.limiter
	}

	rl.generalMu.Lock()
	defer rl.generalMu.Unlock()

	// ダブルチェック
	if ul, exists := rl.generalLimiters[key]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(rl.config.GeneralRate, rl.config.GeneralBurst)
	rl.generalLimiters[key] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// getOrCreateTweetLimiter はユーザーの投稿作成リミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateTweetLimiter(profileID string) *rate.Limiter {
	rl.tweetMu.RLock()
	ul, exists := rl.tweetLimiters[profileID]
	rl.tweetMu.RUnlock()

	if exists {
		rl.tweetMu.Lock()
		ul.lastAccess = time.Now()
		rl.tweetMu.Unlock()
		return ul.limiter
	}

	rl.tweetMu.Lock()
	defer rl.tweetMu.Unlock()

	// ダブルチェック
	if ul, exists := rl.tweetLimiters[profileID]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(rl.config.TweetRate, rl.config.TweetBurst)
	rl.tweetLimiters[profileID] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.generalMu.Lock()
	for key, ul := range rl.generalLimiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.generalLimiters, key)
		}
	}
	rl.generalMu.Unlock()

	rl.tweetMu.Lock()
	for key, ul := range rl.tweetLimiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.tweetLimiters, key)
		}
	}
	rl.tweetMu.Unlock()
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
