package profile

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/chirp/internal/security"
)

// AvatarFetcherService はアバター画像取得のインターフェース。
// OAuthプロバイダーが返すアバターURLの検証・取得に使用する。
type AvatarFetcherService interface {
	// FetchAvatar は指定URLからアバター画像を取得する。
	// 取得失敗時はnilデータと空MIMEを返す（エラーは返さない）。
	FetchAvatar(ctx context.Context, avatarURL string) (data []byte, mimeType string, err error)
}

// AvatarFetcherConfig はアバター取得の設定。
type AvatarFetcherConfig struct {
	Timeout time.Duration // 取得タイムアウト
	MaxSize int64         // 最大サイズ（バイト）
}

// AvatarFetcher はアバター画像取得機能の実装。
type AvatarFetcher struct {
	ssrfGuard security.SSRFGuardService
	config    AvatarFetcherConfig
}

// NewAvatarFetcher はAvatarFetcherの新しいインスタンスを生成する。
func NewAvatarFetcher(ssrfGuard security.SSRFGuardService, config AvatarFetcherConfig) *AvatarFetcher {
	return &AvatarFetcher{
		ssrfGuard: ssrfGuard,
		config:    config,
	}
}

// FetchAvatar は指定URLからアバター画像を取得する。
// アバターは表示の補助情報であり、取得失敗がOAuthログインを
// 妨げてはならないため、失敗はすべてnilデータとして返す。
func (f *AvatarFetcher) FetchAvatar(ctx context.Context, avatarURL string) ([]byte, string, error) {
	if avatarURL == "" {
		return nil, "", nil
	}

	// SSRF検証
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(avatarURL); err != nil {
			slog.Warn("avatar fetch blocked by ssrf guard",
				slog.String("url", avatarURL),
				slog.String("error", err.Error()),
			)
			return nil, "", nil
		}
	}

	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		slog.Warn("failed to build avatar fetch request",
			slog.String("url", avatarURL),
			slog.String("error", err.Error()),
		)
		return nil, "", nil
	}
	req.Header.Set("User-Agent", "Chirp/1.0")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("avatar fetch request failed",
			slog.String("url", avatarURL),
			slog.String("error", err.Error()),
		)
		return nil, "", nil
	}
	defer resp.Body.Close()

	// 2xx以外は取得失敗として扱う
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("avatar fetch returned non-2xx status",
			slog.String("url", avatarURL),
			slog.Int("status", resp.StatusCode),
		)
		return nil, "", nil
	}

	// レスポンスボディを読み込み（最大サイズ+1で超過を検知）
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxSize+1))
	if err != nil {
		slog.Warn("failed to read avatar response",
			slog.String("url", avatarURL),
			slog.String("error", err.Error()),
		)
		return nil, "", nil
	}

	if int64(len(body)) > f.config.MaxSize {
		slog.Warn("avatar exceeds size limit",
			slog.String("url", avatarURL),
			slog.Int("size", len(body)),
		)
		return nil, "", nil
	}

	contentType := resp.Header.Get("Content-Type")
	mimeType := extractMimeType(contentType)

	// 画像でない場合はnilを返す
	if !isImageMime(mimeType) {
		slog.Warn("avatar content type is not an image",
			slog.String("url", avatarURL),
			slog.String("content_type", contentType),
		)
		return nil, "", nil
	}

	return body, mimeType, nil
}

// getHTTPClient はHTTPクライアントを取得する。
func (f *AvatarFetcher) getHTTPClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(f.config.Timeout, f.config.MaxSize)
	}
	return &http.Client{Timeout: f.config.Timeout}
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	// セミコロンの前の部分（charset等を除去）
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// compile-time interface check
var _ AvatarFetcherService = (*AvatarFetcher)(nil)
