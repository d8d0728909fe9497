package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/chirp/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// ListByTweet は指定投稿のコメントをcreated_at降順で
// コメント投稿者プロフィールと結合して返す。
func (r *PostgresCommentRepo) ListByTweet(ctx context.Context, tweetID string) ([]model.CommentWithAuthor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.tweet_id, c.profile_id, c.content, c.created_at,
		        p.id, p.email, p.name, p.first_name, p.last_name,
		        COALESCE(p.username, ''), p.avatar_url, p.description, p.website,
		        p.created_at, p.updated_at
		 FROM comments c
		 JOIN profiles p ON p.id = c.profile_id
		 WHERE c.tweet_id = $1
		 ORDER BY c.created_at DESC`,
		tweetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []model.CommentWithAuthor
	for rows.Next() {
		var c model.CommentWithAuthor
		err := rows.Scan(
			&c.ID, &c.TweetID, &c.ProfileID, &c.Content, &c.CreatedAt,
			&c.Author.ID, &c.Author.Email, &c.Author.Name, &c.Author.FirstName, &c.Author.LastName,
			&c.Author.Username, &c.Author.AvatarURL, &c.Author.Description, &c.Author.Website,
			&c.Author.CreatedAt, &c.Author.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}

	return comments, nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
