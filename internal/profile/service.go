// Package profile はプロフィールの閲覧・更新のドメインロジックを提供する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/chirp/internal/model"
	"github.com/hitoshi/chirp/internal/repository"
	"github.com/hitoshi/chirp/internal/security"
)

// UpdateInput はプロフィール更新の入力。
// 対象ユーザーは認証済みセッションから導出され、入力には含まれない。
type UpdateInput struct {
	Name        string
	FirstName   string
	LastName    string
	Username    string
	Description string
	Website     string
	AvatarURL   string
}

// Service はプロフィールに関するビジネスロジックを提供する。
type Service struct {
	profileRepo repository.ProfileRepository
	sanitizer   security.ContentSanitizerService
	ssrfGuard   security.SSRFGuardService
	avatars     AvatarFetcherService
}

// NewService はServiceを生成する。
func NewService(
	profileRepo repository.ProfileRepository,
	sanitizer security.ContentSanitizerService,
	ssrfGuard security.SSRFGuardService,
	avatars AvatarFetcherService,
) *Service {
	return &Service{
		profileRepo: profileRepo,
		sanitizer:   sanitizer,
		ssrfGuard:   ssrfGuard,
		avatars:     avatars,
	}
}

// Get は指定IDのプロフィールを返す。
// 存在しない場合はPROFILE_NOT_FOUNDエラーを返す。
func (s *Service) Get(ctx context.Context, profileID string) (*model.Profile, error) {
	profile, err := s.profileRepo.FindByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if profile == nil {
		return nil, model.NewProfileNotFoundError(profileID)
	}
	return profile, nil
}

// Update は認証済みユーザー自身のプロフィールを更新する。
//
// usernameは一度設定すると変更できない。変更の拒否はここで、つまり
// サーバー側の現在値との比較で行う。画面側の入力制御は補助にすぎず、
// 直接APIを叩くリクエストには効かない。
func (s *Service) Update(ctx context.Context, profileID string, input UpdateInput) (*model.Profile, error) {
	current, err := s.profileRepo.FindByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if current == nil {
		return nil, model.NewProfileNotFoundError(profileID)
	}

	username := s.sanitizer.SanitizeText(input.Username)
	if current.HasUsername() && username != current.Username {
		slog.Warn("username change rejected",
			slog.String("profile_id", profileID),
		)
		return nil, model.NewUsernameImmutableError()
	}

	website := s.sanitizer.SanitizeText(input.Website)
	if website != "" {
		if err := s.ssrfGuard.ValidateURL(website); err != nil {
			return nil, model.NewInvalidURLError(err.Error())
		}
	}

	avatarURL := s.sanitizer.SanitizeText(input.AvatarURL)
	if avatarURL != "" && avatarURL != current.AvatarURL {
		if err := s.ssrfGuard.ValidateURL(avatarURL); err != nil {
			return nil, model.NewInvalidURLError(err.Error())
		}
		// 取得確認は補助的なチェック。新URLが画像として取得できない場合は
		// 更新自体は続行し、アバターだけ従来の値を維持する。
		if s.avatars != nil {
			if data, _, _ := s.avatars.FetchAvatar(ctx, avatarURL); data == nil {
				slog.Warn("avatar url unreachable, keeping previous avatar",
					slog.String("profile_id", profileID),
				)
				avatarURL = current.AvatarURL
			}
		}
	}

	current.Name = s.sanitizer.SanitizeText(input.Name)
	current.FirstName = s.sanitizer.SanitizeText(input.FirstName)
	current.LastName = s.sanitizer.SanitizeText(input.LastName)
	current.Username = username
	current.Description = s.sanitizer.SanitizeBio(input.Description)
	current.Website = website
	current.AvatarURL = avatarURL
	current.UpdatedAt = time.Now()

	if err := s.profileRepo.Update(ctx, current); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	slog.Info("profile updated",
		slog.String("profile_id", profileID),
	)

	return current, nil
}
