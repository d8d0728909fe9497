package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, tweet, profile, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidCredential = "INVALID_CREDENTIAL"
	ErrCodeEmailTaken        = "EMAIL_TAKEN"
	ErrCodeTweetNotFound     = "TWEET_NOT_FOUND"
	ErrCodeProfileNotFound   = "PROFILE_NOT_FOUND"
	ErrCodeEmptyContent      = "EMPTY_CONTENT"
	ErrCodeUsernameImmutable = "USERNAME_IMMUTABLE"
	ErrCodeInvalidURL        = "INVALID_URL"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialError は認証情報不一致エラーを生成する。
// メールアドレスの存在有無を区別しないメッセージを返す。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスをお使いください。",
	}
}

// NewTweetNotFoundError は投稿未検出エラーを生成する。
func NewTweetNotFoundError(tweetID string) *APIError {
	return &APIError{
		Code:     ErrCodeTweetNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", tweetID),
		Category: "tweet",
		Action:   "投稿が削除されていないか確認してください。",
	}
}

// NewProfileNotFoundError はプロフィール未検出エラーを生成する。
func NewProfileNotFoundError(profileID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("指定されたプロフィールが見つかりません: %s", profileID),
		Category: "profile",
		Action:   "URLを確認してください。",
	}
}

// NewEmptyContentError は本文が空の投稿エラーを生成する。
func NewEmptyContentError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyContent,
		Message:  "本文が空の投稿はできません。",
		Category: "validation",
		Action:   "本文を入力してください。",
	}
}

// NewUsernameImmutableError はusername変更拒否エラーを生成する。
func NewUsernameImmutableError() *APIError {
	return &APIError{
		Code:     ErrCodeUsernameImmutable,
		Message:  "usernameは一度設定すると変更できません。",
		Category: "profile",
		Action:   "現在のusernameのまま保存してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}
