// Package model はドメインモデルを定義する。
package model

import "time"

// Profile はサービス利用ユーザーのプロフィールを表す。
// 認証の主体（= Supabase互換で言うuser）とプロフィール情報を兼ねる。
// Usernameは一度設定されると変更不可（サーバー側で強制する）。
type Profile struct {
	ID           string
	Email        string
	Name         string
	FirstName    string
	LastName     string
	Username     string // 空文字列は未設定を表す
	AvatarURL    string
	Description  string
	Website      string
	PasswordHash string // OAuthのみのユーザーは空
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasUsername はusernameが設定済みかを返す。
func (p *Profile) HasUsername() bool {
	return p.Username != ""
}

// Identity は外部IdPとの紐付け情報を表す。
// google, githubの複数IdPに対応する。
type Identity struct {
	ID             string
	ProfileID      string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
// IDはCookie値、Tokenはアクセストークンでリフレッシュのたびに回転する。
// サーバーレンダリング時点のTokenとクライアントが観測するTokenの
// 不一致（divergence）をSession Synchronizerが検出する。
type Session struct {
	ID          string
	ProfileID   string
	Token       string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	RefreshedAt time.Time
}
