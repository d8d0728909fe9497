// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザー入力（投稿本文、コメント、プロフィール）を
// サニタイズし、XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なコンテンツのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー入力のサニタイズ機能のインターフェースを定義する。
// 投稿・プロフィール更新の保存前に使用される。
type ContentSanitizerService interface {
	// SanitizeText はプレーンテキスト入力からHTMLタグをすべて除去する。
	// 投稿本文、コメント、表示名、ユーザー名に使用する。
	// 前後の空白は除去される。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string

	// SanitizeBio は自己紹介文をサニタイズして安全なHTMLを返す。
	// 許可タグ（br, a, strong, em）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	SanitizeBio(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	textPolicy *bluemonday.Policy
	bioPolicy  *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - テキスト: すべてのタグを除去（StrictPolicy）
//   - 自己紹介文: br, a, strong, em のみ許可
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
func NewContentSanitizer() *contentSanitizer {
	bio := bluemonday.NewPolicy()
	bio.AllowElements("br", "strong", "em")

	// aタグの設定:
	// - href属性を許可、相対URLは不許可
	// - target="_blank"を全リンクに強制付与
	// - rel="noreferrer noopener"を強制付与
	bio.AllowAttrs("href").OnElements("a")
	bio.AllowRelativeURLs(false)
	bio.AddTargetBlankToFullyQualifiedLinks(true)
	bio.RequireNoReferrerOnLinks(true)
	bio.AllowURLSchemes("https", "http")

	return &contentSanitizer{
		textPolicy: bluemonday.StrictPolicy(),
		bioPolicy:  bio,
	}
}

// SanitizeText はプレーンテキスト入力からHTMLタグをすべて除去する。
func (s *contentSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(s.textPolicy.Sanitize(raw))
}

// SanitizeBio は自己紹介文をサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) SanitizeBio(raw string) string {
	return strings.TrimSpace(s.bioPolicy.Sanitize(raw))
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
