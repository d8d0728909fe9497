// Package realtime は認証状態変更イベントのプロセス内Pub/Subと、
// 描画時セッションとライブセッションの同期判定を提供する。
package realtime

import (
	"sync"
)

// EventType は認証状態変更イベントの種別。
type EventType string

const (
	// EventInitial は購読開始直後に配信される現在状態のスナップショット。
	// 状態変更を表すものではないため、同期判定では読み飛ばす。
	EventInitial EventType = "initial"
	// EventSignIn は新しいセッションの発行。
	EventSignIn EventType = "signed_in"
	// EventSignOut はセッションの破棄。
	EventSignOut EventType = "signed_out"
	// EventTokenRefresh はトークン回転。セッション自体は継続する。
	EventTokenRefresh EventType = "token_refreshed"
)

// Event は特定ユーザーの認証状態変更を表す。
type Event struct {
	Type  EventType
	Token string // サインアウト時は空
}

// Subscription は単一ユーザーの認証イベント購読を表す。
type Subscription struct {
	broker    *Broker
	profileID string
	ch        chan Event
	once      sync.Once
}

// C はイベント受信チャネルを返す。Unsubscribe時にクローズされる。
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Unsubscribe は購読を解除しチャネルをクローズする。
// 複数回呼んでも解除処理は一度しか実行されない。
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.ch)
	})
}

// Broker はユーザーごとの認証イベントを購読者に配信する。
// auth.ServiceのEventPublisherとして動作する。
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewBroker はBrokerを生成する。
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe は指定ユーザーのイベント購読を開始する。
// 購読開始直後、現在のトークンを載せたスナップショットイベントを一度配信する。
func (b *Broker) Subscribe(profileID, currentToken string) *Subscription {
	sub := &Subscription{
		broker:    b,
		profileID: profileID,
		ch:        make(chan Event, 8),
	}

	b.mu.Lock()
	set, ok := b.subs[profileID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[profileID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	sub.ch <- Event{Type: EventInitial, Token: currentToken}
	return sub
}

// SubscriberCount は現在の購読数を返す。
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}

// PublishSignIn はサインインイベントを配信する。
func (b *Broker) PublishSignIn(profileID, token string) {
	b.publish(profileID, Event{Type: EventSignIn, Token: token})
}

// PublishSignOut はサインアウトイベントを配信する。
func (b *Broker) PublishSignOut(profileID string) {
	b.publish(profileID, Event{Type: EventSignOut})
}

// PublishTokenRefresh はトークン回転イベントを配信する。
func (b *Broker) PublishTokenRefresh(profileID, token string) {
	b.publish(profileID, Event{Type: EventTokenRefresh, Token: token})
}

// publish はイベントを該当ユーザーの全購読者に配信する。
// 受信が追いつかない購読者にはブロックせずイベントを破棄する。
func (b *Broker) publish(profileID string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[profileID] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// remove は購読者を登録から外す。Subscription.Unsubscribeから呼ばれる。
func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[sub.profileID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.profileID)
	}
}
