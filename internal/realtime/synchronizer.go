package realtime

// Directive は同期判定の結果、クライアントに指示する動作。
type Directive string

const (
	// DirectiveNone は何もしない。表示中のセッションと一致している。
	DirectiveNone Directive = ""
	// DirectiveRefresh は表示中のセッションが古いため再取得を指示する。
	DirectiveRefresh Directive = "refresh"
	// DirectiveSignedOut はセッションが破棄されたことを指示する。
	DirectiveSignedOut Directive = "signed_out"
)

// Synchronizer はページ描画時のトークンとライブイベントのトークンを比較し、
// 表示中のセッション状態が古くなったかを判定する。
//
// 購読開始直後のスナップショットイベントは状態変更ではないため読み飛ばす。
// スナップショットを変更として扱うと、購読のたびに無条件の再取得が走る。
type Synchronizer struct {
	renderToken string
	sawInitial  bool
}

// NewSynchronizer はSynchronizerを生成する。
// renderTokenはページ描画時点のアクセストークン。未ログイン描画なら空。
func NewSynchronizer(renderToken string) *Synchronizer {
	return &Synchronizer{renderToken: renderToken}
}

// Evaluate はイベントを評価し、クライアントへの指示を返す。
func (s *Synchronizer) Evaluate(ev Event) Directive {
	// 最初のスナップショットイベントは読み飛ばす
	if !s.sawInitial && ev.Type == EventInitial {
		s.sawInitial = true
		return DirectiveNone
	}
	s.sawInitial = true

	if ev.Type == EventSignOut {
		s.renderToken = ""
		return DirectiveSignedOut
	}

	// トークンが描画時と一致するなら表示は最新。
	// 一致しないならサーバー側でセッションが変わっており再取得が必要。
	if ev.Token == s.renderToken {
		return DirectiveNone
	}
	s.renderToken = ev.Token
	return DirectiveRefresh
}
