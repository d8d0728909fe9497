// Package tweet は投稿・いいね・コメント閲覧のドメインロジックを提供する。
package tweet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/chirp/internal/metrics"
	"github.com/hitoshi/chirp/internal/model"
	"github.com/hitoshi/chirp/internal/repository"
	"github.com/hitoshi/chirp/internal/security"
)

// Service は投稿に関するビジネスロジックを提供する。
type Service struct {
	tweetRepo   repository.TweetRepository
	likeRepo    repository.LikeRepository
	commentRepo repository.CommentRepository
	sanitizer   security.ContentSanitizerService
	collector   metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	tweetRepo repository.TweetRepository,
	likeRepo repository.LikeRepository,
	commentRepo repository.CommentRepository,
	sanitizer security.ContentSanitizerService,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		tweetRepo:   tweetRepo,
		likeRepo:    likeRepo,
		commentRepo: commentRepo,
		sanitizer:   sanitizer,
		collector:   collector,
	}
}

// Create は新しい投稿を作成する。
// 本文はサニタイズされ、サニタイズ後に空になる入力は拒否される。
// 投稿者は認証済みセッションから導出されたprofileIDであり、
// フォームの値から取ることはない。
func (s *Service) Create(ctx context.Context, profileID, content string) (*model.Tweet, error) {
	sanitized := s.sanitizer.SanitizeText(content)
	if sanitized == "" {
		return nil, model.NewEmptyContentError()
	}

	tweet := &model.Tweet{
		ID:        uuid.New().String(),
		ProfileID: profileID,
		Content:   sanitized,
		CreatedAt: time.Now(),
	}

	if err := s.tweetRepo.Create(ctx, tweet); err != nil {
		return nil, fmt.Errorf("failed to create tweet: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordTweetCreated()
	}

	slog.Info("tweet created",
		slog.String("tweet_id", tweet.ID),
		slog.String("profile_id", profileID),
	)

	return tweet, nil
}

// Feed は全投稿を新しい順に、閲覧者視点のメタ情報付きで返す。
// viewerIDが空の場合、has_likedはすべてfalseになる。
func (s *Service) Feed(ctx context.Context, viewerID string) ([]model.TweetWithMeta, error) {
	tweets, err := s.tweetRepo.ListWithMeta(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tweets: %w", err)
	}
	return tweets, nil
}

// ListByProfile は指定ユーザーの投稿を新しい順に返す。
func (s *Service) ListByProfile(ctx context.Context, viewerID, profileID string) ([]model.TweetWithMeta, error) {
	tweets, err := s.tweetRepo.ListByProfileWithMeta(ctx, viewerID, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tweets by profile: %w", err)
	}
	return tweets, nil
}

// Get は単一投稿をメタ情報とコメント一覧付きで返す。
// 投稿が存在しない場合はTWEET_NOT_FOUNDエラーを返す。
func (s *Service) Get(ctx context.Context, viewerID, tweetID string) (*model.TweetWithMeta, []model.CommentWithAuthor, error) {
	tweet, err := s.tweetRepo.FindByIDWithMeta(ctx, viewerID, tweetID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find tweet: %w", err)
	}
	if tweet == nil {
		return nil, nil, model.NewTweetNotFoundError(tweetID)
	}

	comments, err := s.commentRepo.ListByTweet(ctx, tweetID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return tweet, comments, nil
}

// ToggleLike はいいねの有無を切り替え、実行した操作（"like", "unlike"）を返す。
//
// 切り替えの判定はデータベースの現在状態で行う。クライアントが申告する
// 表示上のいいね状態（clientHasLiked）は判定に使わず、サーバー状態と
// 食い違っている場合にログへ記録するだけにとどめる。申告値を信じると、
// 古い画面からの操作でいいねの作成と削除が逆転する。
func (s *Service) ToggleLike(ctx context.Context, profileID, tweetID string, clientHasLiked *bool) (string, error) {
	tweet, err := s.tweetRepo.FindByID(ctx, tweetID)
	if err != nil {
		return "", fmt.Errorf("failed to find tweet: %w", err)
	}
	if tweet == nil {
		return "", model.NewTweetNotFoundError(tweetID)
	}

	exists, err := s.likeRepo.Exists(ctx, profileID, tweetID)
	if err != nil {
		return "", fmt.Errorf("failed to check like existence: %w", err)
	}

	if clientHasLiked != nil && *clientHasLiked != exists {
		slog.Warn("client like state diverged from server state",
			slog.String("profile_id", profileID),
			slog.String("tweet_id", tweetID),
			slog.Bool("client_has_liked", *clientHasLiked),
			slog.Bool("server_has_liked", exists),
		)
	}

	action := "like"
	if exists {
		action = "unlike"
		if err := s.likeRepo.Delete(ctx, profileID, tweetID); err != nil {
			return "", fmt.Errorf("failed to delete like: %w", err)
		}
	} else {
		if err := s.likeRepo.Create(ctx, profileID, tweetID); err != nil {
			return "", fmt.Errorf("failed to create like: %w", err)
		}
	}

	if s.collector != nil {
		s.collector.RecordLikeToggle(action)
	}

	return action, nil
}
