// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/chirp/internal/model"
)

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// FindByEmail はメールアドレスでプロフィールを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Profile, error)

	// Create はプロフィールを作成する。
	Create(ctx context.Context, profile *model.Profile) error

	// CreateWithIdentity はプロフィールとidentityを同一トランザクションで作成する。
	// OAuth初回ログイン時に使用する。
	CreateWithIdentity(ctx context.Context, profile *model.Profile, identity *model.Identity) error

	// Update はプロフィールの編集可能フィールドを更新する。
	// 更新対象はname, first_name, last_name, username, avatar_url, description, website。
	// id, email, password_hashは変更しない。
	Update(ctx context.Context, profile *model.Profile) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Refresh はセッションのトークンを回転し、有効期限を延長する。
	Refresh(ctx context.Context, id, newToken string, expiresAt time.Time) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// TweetRepository は投稿データの永続化インターフェース。
type TweetRepository interface {
	// Create は投稿を作成する。
	Create(ctx context.Context, tweet *model.Tweet) error

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Tweet, error)

	// ListWithMeta は全投稿をcreated_at降順で、投稿者プロフィール・いいね数・
	// コメント数・viewerUserIDのいいね有無と結合して返す。
	ListWithMeta(ctx context.Context, viewerID string) ([]model.TweetWithMeta, error)

	// ListByProfileWithMeta は指定プロフィールの投稿をcreated_at降順で
	// 付随情報と結合して返す。has_likedはviewerID視点で算出する。
	ListByProfileWithMeta(ctx context.Context, viewerID, profileID string) ([]model.TweetWithMeta, error)

	// FindByIDWithMeta は指定IDの投稿を付随情報と結合して返す。
	// has_likedはviewerID視点で算出する。見つからない場合はnilを返す。
	FindByIDWithMeta(ctx context.Context, viewerID, id string) (*model.TweetWithMeta, error)
}

// LikeRepository はいいねデータの永続化インターフェース。
type LikeRepository interface {
	// Exists は(profileID, tweetID)のいいねが存在するかを返す。
	Exists(ctx context.Context, profileID, tweetID string) (bool, error)

	// Create はいいねを作成する。既に存在する場合は何もしない（冪等）。
	Create(ctx context.Context, profileID, tweetID string) error

	// Delete はいいねを削除する。存在しない場合は何もしない（冪等）。
	Delete(ctx context.Context, profileID, tweetID string) error
}

// CommentRepository はコメントデータの永続化インターフェース。
// コメント作成UIは未配線のため読み取りのみを提供する。
type CommentRepository interface {
	// ListByTweet は指定投稿のコメントをcreated_at降順で
	// コメント投稿者プロフィールと結合して返す。
	ListByTweet(ctx context.Context, tweetID string) ([]model.CommentWithAuthor, error)
}
