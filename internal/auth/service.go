// Package auth はメール+パスワード認証、OAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/chirp/internal/model"
	"github.com/hitoshi/chirp/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
	Provider       string // "google", "github"
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダー名（"google", "github"）を返す。
	Name() string
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// AvatarFetcher は外部アバター画像の検証取得インターフェース。
// profile.AvatarFetcherが実装する。
type AvatarFetcher interface {
	FetchAvatar(ctx context.Context, avatarURL string) (data []byte, mimeType string, err error)
}

// EventPublisher は認証状態変更イベントの発行インターフェース。
// realtime.Brokerが実装する。セッションの発行・破棄・トークン回転の
// すべてがイベントとして該当ユーザーの購読者に配信される。
type EventPublisher interface {
	PublishSignIn(profileID, token string)
	PublishSignOut(profileID string)
	PublishTokenRefresh(profileID, token string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge        int           // セッション有効期間（秒）
	SessionRefreshWindow time.Duration // 残り有効期間がこの値を下回るとトークンを回転する
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	providers   map[string]OAuthProvider
	profileRepo repository.ProfileRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	avatars     AvatarFetcher
	events      EventPublisher
	config      ServiceConfig
}

// NewService はServiceを生成する。
// avatarsとeventsはnilを許容する（無効化される）。
func NewService(
	providers []OAuthProvider,
	profileRepo repository.ProfileRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	avatars AvatarFetcher,
	events EventPublisher,
	config ServiceConfig,
) *Service {
	m := make(map[string]OAuthProvider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Service{
		providers:   m,
		profileRepo: profileRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		avatars:     avatars,
		events:      events,
		config:      config,
	}
}

// SignUp はメール+パスワードで新規ユーザーを登録し、セッションを発行する。
// プロフィール行はセッションと同時に自動作成される。
func (s *Service) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialError()
	}

	existing, err := s.profileRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	profile := &model.Profile{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	slog.Info("new user signed up",
		slog.String("profile_id", profile.ID),
	)

	return s.issueSession(ctx, profile.ID)
}

// SignIn はメール+パスワードでログインし、セッションを発行する。
// メールアドレスの存在有無を区別しないエラーを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialError()
	}

	profile, err := s.profileRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by email: %w", err)
	}
	// OAuthのみのユーザー（PasswordHash空）はパスワードログイン不可
	if profile == nil || profile.PasswordHash == "" {
		return nil, model.NewInvalidCredentialError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialError()
	}

	slog.Info("user signed in",
		slog.String("profile_id", profile.ID),
	)

	return s.issueSession(ctx, profile.ID)
}

// OAuthLoginURL は指定プロバイダーのOAuth認証URLを生成する。
func (s *Service) OAuthLoginURL(provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", fmt.Errorf("unknown oauth provider: %s", provider)
	}
	return p.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 未登録ユーザーの場合はprofilesレコードとidentitiesレコードを同時に自動作成する。
// 登録済みユーザーの場合はidentitiesテーブルで既存ユーザーを特定しログインする。
func (s *Service) HandleCallback(ctx context.Context, provider, code string) (*model.Session, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown oauth provider: %s", provider)
	}

	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. identitiesテーブルで既存ユーザーを検索
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var profileID string

	if identity != nil {
		// 3a. 既存ユーザー: identityからプロフィールIDを取得
		profileID = identity.ProfileID
		slog.Info("existing user logged in",
			slog.String("profile_id", profileID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		// 3b. 新規ユーザー: profilesレコードとidentitiesレコードを同時に作成

		// プロバイダー申告のアバターURLは取得できることを確認してから保存する
		if s.avatars != nil && userInfo.AvatarURL != "" {
			if data, _, _ := s.avatars.FetchAvatar(ctx, userInfo.AvatarURL); data == nil {
				slog.Warn("avatar url rejected",
					slog.String("provider", userInfo.Provider),
					slog.String("avatar_url", userInfo.AvatarURL),
				)
				userInfo.AvatarURL = ""
			}
		}

		now := time.Now()
		newProfile := &model.Profile{
			ID:        uuid.New().String(),
			Email:     userInfo.Email,
			Name:      userInfo.Name,
			AvatarURL: userInfo.AvatarURL,
			CreatedAt: now,
			UpdatedAt: now,
		}
		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			ProfileID:      newProfile.ID,
			Provider:       userInfo.Provider,
			ProviderUserID: userInfo.ProviderUserID,
			CreatedAt:      now,
		}

		if err := s.profileRepo.CreateWithIdentity(ctx, newProfile, newIdentity); err != nil {
			return nil, fmt.Errorf("failed to create profile and identity: %w", err)
		}

		profileID = newProfile.ID
		slog.Info("new user created",
			slog.String("profile_id", profileID),
			slog.String("provider", userInfo.Provider),
		)
	}

	// 4. セッションを発行
	return s.issueSession(ctx, profileID)
}

// LoadSession はセッションIDからセッションを取得する。
// 残り有効期間がSessionRefreshWindowを下回る場合はトークンを回転し、
// 有効期限を延長した上でrefreshed=trueを返す。呼び出し側は
// refreshed=trueのときレスポンスのセッションCookieを書き直す。
// セッションが存在しない・期限切れの場合は(nil, false, nil)を返す。
func (s *Service) LoadSession(ctx context.Context, sessionID string) (session *model.Session, refreshed bool, err error) {
	if sessionID == "" {
		return nil, false, nil
	}

	sess, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find session: %w", err)
	}
	if sess == nil {
		return nil, false, nil
	}

	if time.Until(sess.ExpiresAt) >= s.config.SessionRefreshWindow {
		return sess, false, nil
	}

	// トークン回転。失敗してもセッション自体は有効なので現状のまま返す。
	newToken, err := generateToken()
	if err != nil {
		slog.Error("failed to generate refresh token", slog.String("error", err.Error()))
		return sess, false, nil
	}
	newExpiry := time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second)
	if err := s.sessionRepo.Refresh(ctx, sess.ID, newToken, newExpiry); err != nil {
		slog.Error("failed to refresh session", slog.String("error", err.Error()))
		return sess, false, nil
	}

	sess.Token = newToken
	sess.ExpiresAt = newExpiry
	sess.RefreshedAt = time.Now()

	if s.events != nil {
		s.events.PublishTokenRefresh(sess.ProfileID, sess.Token)
	}

	slog.Info("session token refreshed",
		slog.String("profile_id", sess.ProfileID),
	)

	return sess, true, nil
}

// Logout はセッションを破棄し、サインアウトイベントを発行する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	// イベント発行のためにプロフィールIDを先に取得する
	sess, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if sess != nil && s.events != nil {
		s.events.PublishSignOut(sess.ProfileID)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// issueSession はセッションを作成・永続化し、サインインイベントを発行する。
func (s *Service) issueSession(ctx context.Context, profileID string) (*model.Session, error) {
	sessionID, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		ProfileID: profileID,
		Token:     token,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if s.events != nil {
		s.events.PublishSignIn(profileID, session.Token)
	}

	return session, nil
}

// generateToken は暗号的に安全なランダムトークンを生成する。
// セッションIDとアクセストークンの両方に使用する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
