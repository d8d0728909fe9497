package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/chirp/internal/model"
)

// PostgresTweetRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresTweetRepo struct {
	db *sql.DB
}

// NewPostgresTweetRepo はPostgresTweetRepoを生成する。
func NewPostgresTweetRepo(db *sql.DB) *PostgresTweetRepo {
	return &PostgresTweetRepo{db: db}
}

// Create は投稿を作成する。
func (r *PostgresTweetRepo) Create(ctx context.Context, tweet *model.Tweet) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tweets (id, profile_id, content, created_at)
		 VALUES ($1, $2, $3, $4)`,
		tweet.ID, tweet.ProfileID, tweet.Content, tweet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tweet: %w", err)
	}
	return nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresTweetRepo) FindByID(ctx context.Context, id string) (*model.Tweet, error) {
	tweet := &model.Tweet{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, profile_id, content, created_at FROM tweets WHERE id = $1`,
		id,
	).Scan(&tweet.ID, &tweet.ProfileID, &tweet.Content, &tweet.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tweet: %w", err)
	}

	return tweet, nil
}

// tweetMetaQuery は投稿に投稿者プロフィール・いいね数・コメント数・
// 閲覧ユーザーのいいね有無を結合する共通クエリ。
// $1 = viewerID。追加条件はWHERE句として連結する。
const tweetMetaQuery = `
	SELECT t.id, t.profile_id, t.content, t.created_at,
	       p.id, p.email, p.name, p.first_name, p.last_name,
	       COALESCE(p.username, ''), p.avatar_url, p.description, p.website,
	       p.created_at, p.updated_at,
	       (SELECT COUNT(*) FROM likes l WHERE l.tweet_id = t.id) AS like_count,
	       (SELECT COUNT(*) FROM comments c WHERE c.tweet_id = t.id) AS comment_count,
	       EXISTS (SELECT 1 FROM likes l WHERE l.tweet_id = t.id AND l.profile_id = $1) AS has_liked
	FROM tweets t
	JOIN profiles p ON p.id = t.profile_id`

// scanTweetWithMeta は1行をmodel.TweetWithMetaに読み込む。
func scanTweetWithMeta(rows *sql.Rows) (model.TweetWithMeta, error) {
	var tw model.TweetWithMeta
	err := rows.Scan(
		&tw.ID, &tw.ProfileID, &tw.Content, &tw.CreatedAt,
		&tw.Author.ID, &tw.Author.Email, &tw.Author.Name, &tw.Author.FirstName, &tw.Author.LastName,
		&tw.Author.Username, &tw.Author.AvatarURL, &tw.Author.Description, &tw.Author.Website,
		&tw.Author.CreatedAt, &tw.Author.UpdatedAt,
		&tw.LikeCount, &tw.CommentCount, &tw.HasLiked,
	)
	return tw, err
}

// ListWithMeta は全投稿をcreated_at降順で付随情報と結合して返す。
func (r *PostgresTweetRepo) ListWithMeta(ctx context.Context, viewerID string) ([]model.TweetWithMeta, error) {
	rows, err := r.db.QueryContext(ctx,
		tweetMetaQuery+` ORDER BY t.created_at DESC`,
		viewerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tweets: %w", err)
	}
	defer rows.Close()

	return collectTweetsWithMeta(rows)
}

// ListByProfileWithMeta は指定プロフィールの投稿をcreated_at降順で付随情報と結合して返す。
// $1にviewerID、$2に絞り込み対象のprofileIDを束縛する。
func (r *PostgresTweetRepo) ListByProfileWithMeta(ctx context.Context, viewerID, profileID string) ([]model.TweetWithMeta, error) {
	rows, err := r.db.QueryContext(ctx,
		tweetMetaQuery+` WHERE t.profile_id = $2 ORDER BY t.created_at DESC`,
		viewerID, profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tweets by profile: %w", err)
	}
	defer rows.Close()

	return collectTweetsWithMeta(rows)
}

// FindByIDWithMeta は指定IDの投稿を付随情報と結合して返す。見つからない場合はnilを返す。
// $1にviewerID、$2に対象の投稿IDを束縛する。
func (r *PostgresTweetRepo) FindByIDWithMeta(ctx context.Context, viewerID, id string) (*model.TweetWithMeta, error) {
	rows, err := r.db.QueryContext(ctx,
		tweetMetaQuery+` WHERE t.id = $2`,
		viewerID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find tweet with meta: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to find tweet with meta: %w", err)
		}
		return nil, nil
	}

	tw, err := scanTweetWithMeta(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tweet with meta: %w", err)
	}
	return &tw, nil
}

// collectTweetsWithMeta は結果セット全体をスライスに読み込む。
func collectTweetsWithMeta(rows *sql.Rows) ([]model.TweetWithMeta, error) {
	var tweets []model.TweetWithMeta
	for rows.Next() {
		tw, err := scanTweetWithMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tweet: %w", err)
		}
		tweets = append(tweets, tw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tweets: %w", err)
	}
	return tweets, nil
}

// compile-time interface check
var _ TweetRepository = (*PostgresTweetRepo)(nil)
