package model

import "time"

// Tweet は投稿を表す。作成後は不変（編集・削除経路はない）。
type Tweet struct {
	ID        string
	ProfileID string
	Content   string
	CreatedAt time.Time
}

// Like はユーザーの投稿への「いいね」を表す。
// (ProfileID, TweetID) の複合キーで一意。行の存在 = いいね済み。
type Like struct {
	ProfileID string
	TweetID   string
	CreatedAt time.Time
}

// Comment は投稿へのコメントを表す。本システムでは読み取り専用。
type Comment struct {
	ID        string
	TweetID   string
	ProfileID string
	Content   string
	CreatedAt time.Time
}

// TweetWithMeta はフィード表示用に投稿へ付随情報を結合したビュー。
// LikeCount・CommentCountは集計値、HasLikedは閲覧ユーザー自身の状態。
type TweetWithMeta struct {
	Tweet
	Author       Profile
	LikeCount    int
	CommentCount int
	HasLiked     bool
}

// CommentWithAuthor はコメントと投稿者プロフィールを結合したビュー。
type CommentWithAuthor struct {
	Comment
	Author Profile
}
