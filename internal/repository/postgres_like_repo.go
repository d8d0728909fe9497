package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresLikeRepo はPostgreSQLを使用したいいねリポジトリ。
// 一意性は(profile_id, tweet_id)の複合主キーに委譲する。
type PostgresLikeRepo struct {
	db *sql.DB
}

// NewPostgresLikeRepo はPostgresLikeRepoを生成する。
func NewPostgresLikeRepo(db *sql.DB) *PostgresLikeRepo {
	return &PostgresLikeRepo{db: db}
}

// Exists は(profileID, tweetID)のいいねが存在するかを返す。
func (r *PostgresLikeRepo) Exists(ctx context.Context, profileID, tweetID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM likes WHERE profile_id = $1 AND tweet_id = $2)`,
		profileID, tweetID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check like existence: %w", err)
	}
	return exists, nil
}

// Create はいいねを作成する。
// 同時実行で既に行が存在する場合はON CONFLICT DO NOTHINGで吸収する（冪等）。
func (r *PostgresLikeRepo) Create(ctx context.Context, profileID, tweetID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO likes (profile_id, tweet_id, created_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (profile_id, tweet_id) DO NOTHING`,
		profileID, tweetID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert like: %w", err)
	}
	return nil
}

// Delete はいいねを削除する。存在しない場合は何もしない（冪等）。
func (r *PostgresLikeRepo) Delete(ctx context.Context, profileID, tweetID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM likes WHERE profile_id = $1 AND tweet_id = $2`,
		profileID, tweetID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	return nil
}

// compile-time interface check
var _ LikeRepository = (*PostgresLikeRepo)(nil)
